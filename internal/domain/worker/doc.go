// Package worker implements the consumer side of a run.
//
// A Worker attaches to resources the coordinator created, takes one task at a
// time from the channel, executes it with its own seeded generator and adds the
// hits to the shared accumulator under the lock. It exits on a stop message,
// on terminate, or when the channel disappears underneath it; pause suspends it
// without consuming anything.
package worker
