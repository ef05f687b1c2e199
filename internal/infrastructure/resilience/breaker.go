package resilience

import (
	"errors"
	"sync"
)

// ErrCircuitOpen is returned by Execute once the breaker has tripped.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// ReadyToTrip is called with counts after every failure while closed
	ReadyToTrip func(counts Counts) bool
	// OnTrip is called once, when the breaker opens
	OnTrip func(name string, counts Counts)
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Requests            uint32
	TotalSuccesses      uint32
	TotalFailures       uint32
	ConsecutiveFailures uint32
	// Rejected counts calls refused while open.
	Rejected uint32
}

// Breaker guards a batch of similar operations, such as spawning the workers
// of one run. It never closes again after tripping: a run is one batch.
type Breaker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	return &Breaker{name: name, settings: settings, state: StateClosed}
}

// TripWhenNothingWorks trips after n consecutive failures, but only if no call
// has succeeded yet. A fault that hits every call is tripped; a flaky one is not.
func TripWhenNothingWorks(n uint32) func(Counts) bool {
	return func(c Counts) bool {
		return c.TotalSuccesses == 0 && c.ConsecutiveFailures >= n
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs req unless the breaker is open. A panic in req counts as a
// failure and is re-raised.
func (b *Breaker) Execute(req func() error) (err error) {
	if !b.before() {
		return ErrCircuitOpen
	}

	defer func() {
		if e := recover(); e != nil {
			b.after(false)
			panic(e)
		}
	}()

	err = req()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		b.counts.Rejected++
		return false
	}
	b.counts.Requests++
	return true
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()

	if success {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveFailures = 0
		b.mu.Unlock()
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	tripped := b.state == StateClosed && b.settings.ReadyToTrip(b.counts)
	if tripped {
		b.state = StateOpen
	}
	counts := b.counts
	b.mu.Unlock()

	if tripped && b.settings.OnTrip != nil {
		b.settings.OnTrip(b.name, counts)
	}
}
