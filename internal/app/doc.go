// Package app wires the configuration, logging, metrics, transport and control
// layers into the two programs of the system.
//
// Transports:
//   - sysv: workers are separate monteworker processes attached to System V
//     resources named by the configured key path and project ids
//   - memory: workers are goroutines sharing an in-process namespace
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	if err := app.RunMaster(ctx, cfg, report.FormatText, os.Stdout); err != nil {
//	    os.Exit(1)
//	}
package app
