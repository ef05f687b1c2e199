package coordinator

import (
	"errors"
	"os/exec"
	"sync"

	"github.com/GriffinCanCode/MonteIPC/internal/domain/worker"
)

// Outcome classifies a worker exit.
type Outcome string

const (
	OutcomeClean    Outcome = "clean"
	OutcomeAbnormal Outcome = "abnormal"
)

// Exit records how one worker ended.
type Exit struct {
	ID      string  `json:"id"`
	Seed    int64   `json:"seed"`
	Outcome Outcome `json:"outcome"`
	Code    int     `json:"code"`
	Error   string  `json:"error,omitempty"`
}

// WorkerStatus is the per-worker part of a Snapshot.
type WorkerStatus struct {
	ID    string        `json:"id"`
	Seed  int64         `json:"seed"`
	Alive bool          `json:"alive"`
	Exit  *Exit         `json:"exit,omitempty"`
	Stats *worker.Stats `json:"stats,omitempty"`
}

type entry struct {
	handle Handle
	exit   *Exit
}

// Registry is the ordered list of spawned workers. It closes AllExited once it
// is sealed and every registered worker has exited.
type Registry struct {
	mu        sync.Mutex
	entries   []*entry
	alive     int
	sealed    bool
	allExited chan struct{}
	closed    bool
	onExit    func(Exit)
}

// NewRegistry creates an empty registry. onExit may be nil.
func NewRegistry(onExit func(Exit)) *Registry {
	return &Registry{allExited: make(chan struct{}), onExit: onExit}
}

// Add registers h and starts watching for its exit.
func (r *Registry) Add(h Handle) {
	e := &entry{handle: h}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.alive++
	r.mu.Unlock()

	go r.watch(e)
}

func (r *Registry) watch(e *entry) {
	<-e.handle.Done()
	exit := exitOf(e.handle)

	r.mu.Lock()
	e.exit = &exit
	r.alive--
	r.maybeCloseLocked()
	r.mu.Unlock()

	if r.onExit != nil {
		r.onExit(exit)
	}
}

func exitOf(h Handle) Exit {
	exit := Exit{ID: h.ID(), Seed: h.Seed(), Outcome: OutcomeClean}
	err := h.Err()
	if err == nil {
		return exit
	}

	exit.Outcome = OutcomeAbnormal
	exit.Error = err.Error()
	exit.Code = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exit.Code = exitErr.ExitCode()
	}
	return exit
}

// Seal marks the end of registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.maybeCloseLocked()
	r.mu.Unlock()
}

func (r *Registry) maybeCloseLocked() {
	if r.sealed && r.alive == 0 && !r.closed {
		r.closed = true
		close(r.allExited)
	}
}

// AllExited is closed once the registry is sealed and no worker is alive.
func (r *Registry) AllExited() <-chan struct{} {
	return r.allExited
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Alive returns the number of workers that have not exited.
func (r *Registry) Alive() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive
}

// Running returns the handles of workers that have not exited, in spawn order.
func (r *Registry) Running() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Handle
	for _, e := range r.entries {
		if e.exit == nil {
			out = append(out, e.handle)
		}
	}
	return out
}

// Exits returns the recorded exits in spawn order.
func (r *Registry) Exits() []Exit {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Exit, 0, len(r.entries))
	for _, e := range r.entries {
		if e.exit != nil {
			out = append(out, *e.exit)
		}
	}
	return out
}

// Statuses returns a view of every registered worker.
func (r *Registry) Statuses() []WorkerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]WorkerStatus, 0, len(r.entries))
	for _, e := range r.entries {
		st := WorkerStatus{
			ID:    e.handle.ID(),
			Seed:  e.handle.Seed(),
			Alive: e.exit == nil,
			Exit:  e.exit,
		}
		if sr, ok := e.handle.(statsReporter); ok {
			stats := sr.Stats()
			st.Stats = &stats
		}
		out = append(out, st)
	}
	return out
}
