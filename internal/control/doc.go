// Package control holds the per-process run state shared by the coordinator and
// the workers.
//
// A State is changed only by the signal watcher and the status API:
//
//	SIGINT, SIGTERM  terminate (sticky)
//	SIGUSR1          pause
//	SIGUSR2          resume
//
// Main loops read it at their safe points. Pausing is a condition wait on
// Changed, and Interruptible turns every transition into a cancelled context so
// blocking IPC calls return and re-check the state.
package control
