// Package ipc defines the three shared resources of a run and their lifecycle.
//
// A run shares exactly three named resources between the coordinator and its
// workers:
//   - Accumulator: one int64 success counter
//   - Lock: a binary semaphore guarding the Accumulator
//   - Channel: a bounded FIFO of TaskMessage, each message delivered to one consumer
//
// Ownership is asymmetric. Only the coordinator calls Transport.Create and
// Transport.Remove; workers only Attach and Close their Set. Attaching before
// Create fails with ErrNotFound, while any operation on a resource removed after
// a successful attach fails with ErrRemoved. Workers treat the latter as an
// implicit stop.
//
// Backends live in subpackages: memory (goroutines in one process) and sysv
// (System V shared memory, semaphore and message queue).
package ipc
