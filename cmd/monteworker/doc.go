// Command monteworker is spawned by montemaster, one process per worker.
//
// Usage:
//
//	monteworker <seed>
//
// The IPC namespace comes from the MONTE_IPC_* environment the coordinator
// passes down. The worker exits 0 after a stop message, a terminate signal or
// removal of the resources, and 1 when the resources do not exist.
package main
