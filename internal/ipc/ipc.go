package ipc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound reports that the coordinator has not created the resources yet.
	ErrNotFound = errors.New("resources not found")
	// ErrRemoved reports that a resource was removed while attached.
	ErrRemoved = errors.New("resource removed")
	// ErrInterrupted reports that a blocking call was interrupted before completing.
	ErrInterrupted = errors.New("interrupted")
	// ErrNotHeld reports a Release without a matching Acquire.
	ErrNotHeld = errors.New("lock not held")
	// ErrExists reports that Create found the resources already present.
	ErrExists = errors.New("resources already exist")
)

// Kind distinguishes work from the stop sentinel.
type Kind uint8

const (
	KindWork Kind = iota + 1
	KindStop
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindWork:
		return "work"
	case KindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// TaskMessage is one entry of the task channel. A zero ChunkSize is the stop sentinel.
type TaskMessage struct {
	Kind      Kind
	ChunkSize uint64
}

// Work returns a work message for n trials.
func Work(n uint64) TaskMessage {
	return TaskMessage{Kind: KindWork, ChunkSize: n}
}

// Stop returns the stop sentinel.
func Stop() TaskMessage {
	return TaskMessage{Kind: KindStop}
}

// IsStop reports whether the message asks the receiver to exit.
func (m TaskMessage) IsStop() bool {
	return m.Kind == KindStop || m.ChunkSize == 0
}

// Accumulator is the shared success counter. Mutations must happen under the Lock.
type Accumulator interface {
	Add(delta int64) error
	Load() (int64, error)
	Store(v int64) error
}

// Lock is a binary mutual-exclusion primitive shared across processes.
type Lock interface {
	Acquire(ctx context.Context) error
	Release() error
}

// Channel is a bounded multi-consumer FIFO. Send blocks while full and Receive
// blocks while empty; both return ErrInterrupted when ctx ends first. A Send
// that finds room completes even if ctx is already done.
type Channel interface {
	Send(ctx context.Context, msg TaskMessage) error
	Receive(ctx context.Context) (TaskMessage, error)
}

// Set is one process's handle on the three resources.
type Set struct {
	Accumulator Accumulator
	Lock        Lock
	Channel     Channel

	detach func() error
}

// NewSet bundles attached resources with the function that releases them.
func NewSet(acc Accumulator, lock Lock, ch Channel, detach func() error) *Set {
	return &Set{Accumulator: acc, Lock: lock, Channel: ch, detach: detach}
}

// Close detaches this process from the resources without destroying them.
func (s *Set) Close() error {
	if s == nil || s.detach == nil {
		return nil
	}
	detach := s.detach
	s.detach = nil
	return detach()
}

// Transport creates, attaches to and removes one namespace of resources.
type Transport interface {
	// Name identifies the backend in logs.
	Name() string
	// Create makes the resources with a zeroed accumulator and an unlocked lock.
	// On failure nothing created so far is left behind.
	Create() (*Set, error)
	// Attach opens existing resources, failing with ErrNotFound if absent.
	Attach() (*Set, error)
	// Remove destroys every resource. Each removal is attempted regardless of
	// the others; repeated calls return nil.
	Remove() error
}

// Merge adds delta to the accumulator inside the smallest possible critical
// section and returns how long the lock acquisition waited. The lock is always
// released before Merge returns.
func Merge(ctx context.Context, lock Lock, acc Accumulator, delta int64) (wait time.Duration, err error) {
	start := time.Now()
	if err := lock.Acquire(ctx); err != nil {
		return time.Since(start), fmt.Errorf("acquire lock: %w", err)
	}
	wait = time.Since(start)

	defer func() {
		if relErr := lock.Release(); relErr != nil && err == nil {
			err = fmt.Errorf("release lock: %w", relErr)
		}
	}()

	if err := acc.Add(delta); err != nil {
		return wait, fmt.Errorf("add to accumulator: %w", err)
	}
	return wait, nil
}
