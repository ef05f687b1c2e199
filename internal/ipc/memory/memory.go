// Package memory implements the ipc resources for workers running as goroutines
// inside the coordinator process. Resources are registered by name in a
// Namespace, which plays the role the kernel plays for the sysv backend: a
// worker can only attach to what the coordinator created under the same name.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
)

// Namespace holds named resource sets.
type Namespace struct {
	mu      sync.Mutex
	entries map[string]*resources
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{entries: make(map[string]*resources)}
}

type resources struct {
	count   atomic.Int64
	sem     chan struct{}
	queue   chan ipc.TaskMessage
	removed chan struct{}
}

func (r *resources) gone() bool {
	select {
	case <-r.removed:
		return true
	default:
		return false
	}
}

// Transport is the in-process ipc.Transport.
type Transport struct {
	ns    *Namespace
	name  string
	depth int
}

// New returns a transport for the resource set called name. depth bounds the
// task channel; values below 1 are raised to 1.
func New(ns *Namespace, name string, depth int) *Transport {
	if depth < 1 {
		depth = 1
	}
	return &Transport{ns: ns, name: name, depth: depth}
}

// Name identifies the backend.
func (t *Transport) Name() string { return "memory" }

// Create registers a fresh resource set with a zero count and one lock permit.
func (t *Transport) Create() (*ipc.Set, error) {
	t.ns.mu.Lock()
	defer t.ns.mu.Unlock()

	if _, ok := t.ns.entries[t.name]; ok {
		return nil, fmt.Errorf("%w: %s", ipc.ErrExists, t.name)
	}

	r := &resources{
		sem:     make(chan struct{}, 1),
		queue:   make(chan ipc.TaskMessage, t.depth),
		removed: make(chan struct{}),
	}
	r.sem <- struct{}{}
	t.ns.entries[t.name] = r
	return newSet(r), nil
}

// Attach opens the set created under the same name.
func (t *Transport) Attach() (*ipc.Set, error) {
	t.ns.mu.Lock()
	r, ok := t.ns.entries[t.name]
	t.ns.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: memory namespace %q", ipc.ErrNotFound, t.name)
	}
	return newSet(r), nil
}

// Remove unregisters the set and wakes every blocked caller with ErrRemoved.
func (t *Transport) Remove() error {
	t.ns.mu.Lock()
	r, ok := t.ns.entries[t.name]
	delete(t.ns.entries, t.name)
	t.ns.mu.Unlock()

	if ok {
		close(r.removed)
	}
	return nil
}

func newSet(r *resources) *ipc.Set {
	return ipc.NewSet(accumulator{r}, lock{r}, channel{r}, func() error { return nil })
}

type accumulator struct{ r *resources }

func (a accumulator) Add(delta int64) error {
	if a.r.gone() {
		return ipc.ErrRemoved
	}
	a.r.count.Add(delta)
	return nil
}

func (a accumulator) Load() (int64, error) {
	if a.r.gone() {
		return 0, ipc.ErrRemoved
	}
	return a.r.count.Load(), nil
}

func (a accumulator) Store(v int64) error {
	if a.r.gone() {
		return ipc.ErrRemoved
	}
	a.r.count.Store(v)
	return nil
}

type lock struct{ r *resources }

func (l lock) Acquire(ctx context.Context) error {
	if l.r.gone() {
		return ipc.ErrRemoved
	}
	select {
	case <-l.r.sem:
		return nil
	case <-l.r.removed:
		return ipc.ErrRemoved
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ipc.ErrInterrupted, ctx.Err())
	}
}

func (l lock) Release() error {
	select {
	case l.r.sem <- struct{}{}:
		return nil
	default:
		return ipc.ErrNotHeld
	}
}

type channel struct{ r *resources }

func (c channel) Send(ctx context.Context, msg ipc.TaskMessage) error {
	if c.r.gone() {
		return ipc.ErrRemoved
	}
	select {
	case c.r.queue <- msg:
		return nil
	default:
	}
	select {
	case c.r.queue <- msg:
		return nil
	case <-c.r.removed:
		return ipc.ErrRemoved
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ipc.ErrInterrupted, ctx.Err())
	}
}

func (c channel) Receive(ctx context.Context) (ipc.TaskMessage, error) {
	if c.r.gone() {
		return ipc.TaskMessage{}, ipc.ErrRemoved
	}
	select {
	case msg := <-c.r.queue:
		return msg, nil
	case <-c.r.removed:
		return ipc.TaskMessage{}, ipc.ErrRemoved
	case <-ctx.Done():
		return ipc.TaskMessage{}, fmt.Errorf("%w: %w", ipc.ErrInterrupted, ctx.Err())
	}
}
