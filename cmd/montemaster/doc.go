// Command montemaster estimates pi by distributing Monte Carlo trials to a pool
// of workers over shared IPC resources.
//
// Usage:
//
//	montemaster -M 4 -N 10000000 -C 100000 -S 1
//	montemaster -M 8 -N 100000000 -transport memory -json
//	montemaster -config monte.yaml -status 127.0.0.1:8080
//
// SIGUSR1 pauses the run, SIGUSR2 resumes it and SIGINT or SIGTERM terminate it.
// Flags override the config file, which overrides the environment.
package main
