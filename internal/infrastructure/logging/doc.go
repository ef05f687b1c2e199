// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Both modes write to stderr by default. The coordinator prints the run result on
// stdout, and worker processes inherit the coordinator's stderr, so a single terminal
// shows the interleaved log of the whole process tree. Every entry carries the pid.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	log := logger.ForWorker(seed)
//	log.Info("chunk merged", zap.Uint64("trials", n))
package logging
