// Package sysv implements the ipc resources with System V primitives: a shared
// memory segment holding the accumulator, a one-element semaphore set as the
// lock, and a message queue as the task channel. Keys are derived from a
// filesystem path and small project ids the same way ftok(3) derives them, so
// every process configured with the same path and ids meets the same resources.
package sysv

import (
	"errors"
	"time"
)

// ErrUnsupported is returned on platforms without the raw System V syscalls.
var ErrUnsupported = errors.New("sysv transport is not supported on this platform")

// Options locate the resources and tune the non-blocking wait loops.
type Options struct {
	KeyPath      string
	ShmID        int
	SemID        int
	MsgID        int
	PollInterval time.Duration
	// Mode holds the permission bits of created resources; zero means 0600.
	Mode uint32
	// OnStale is called when Create finds and removes a leftover resource.
	OnStale func(resource string, id int)
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Millisecond
	}
	if o.Mode == 0 {
		o.Mode = 0o600
	}
	return o
}
