// Package coordinator implements the producer side of a run.
//
// Components:
//   - Coordinator: creates the resources, spawns workers, distributes chunks,
//     waits for the workers and reads the accumulator once
//   - Registry: ordered list of spawned workers and their exits
//   - ProcessSpawner: re-executes the worker binary per seed
//   - GoroutineSpawner: runs workers in-process for the memory transport
//
// Lifecycle:
//
//	Start → Distribute → AwaitCompletion → Finalize → Shutdown
//
// Shutdown runs on every exit route, including terminate and setup failure,
// and removes every resource even when removing one of them fails.
package coordinator
