// Package http provides the status and control handlers of a running coordinator.
//
// Endpoints:
//   - GET  /health: liveness and run phase
//   - GET  /status: coordinator snapshot plus metric counters
//   - GET  /metrics: Prometheus exposition of the run registry
//   - GET  /stream: WebSocket pushing a snapshot per interval
//   - POST /control/:action: pause, resume or terminate, forwarded to workers
//
// Example Usage:
//
//	handlers := http.NewHandlers(coord, metrics, logger)
//	router.GET("/status", handlers.Status)
//	router.GET("/stream", handlers.NewStream(time.Second, nil).HandleConnection)
package http
