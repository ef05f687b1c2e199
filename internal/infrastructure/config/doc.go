// Package config provides 12-factor configuration for the coordinator and workers.
//
// Configuration is loaded from environment variables with defaults, optionally
// overlaid with a YAML or TOML file, and finally overridden by command-line flags.
//
// Configuration Sections:
//   - Run: worker count, total trials, chunk size, seed base
//   - IPC: transport and the named resource keys (key path + project ids)
//   - Worker: worker binary and the terminate grace period
//   - Logging: log level and output format
//   - Status: optional HTTP status/control API
//
// Workers never read the Run section. The coordinator hands its IPC and Logging
// sections to each spawned worker through WorkerEnv, so both sides derive the
// same resource keys.
//
// Environment Variables:
//   - MONTE_WORKERS, MONTE_TRIALS, MONTE_CHUNK, MONTE_SEED
//   - MONTE_TRANSPORT, MONTE_IPC_KEY_PATH, MONTE_IPC_{SHM,SEM,MSG}_ID, MONTE_IPC_POLL
//   - MONTE_WORKER_BIN, MONTE_WORKER_STOP_GRACE
//   - LOG_LEVEL, LOG_DEV
//   - MONTE_STATUS_ADDR, MONTE_STATUS_ORIGINS, RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
