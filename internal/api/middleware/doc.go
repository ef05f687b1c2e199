// Package middleware provides the gin middleware of the status API: CORS for
// browser dashboards and per-client rate limiting of polling and control calls.
package middleware
