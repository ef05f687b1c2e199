package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Action is an operator request delivered by a signal or the control API.
type Action string

const (
	ActionPause     Action = "pause"
	ActionResume    Action = "resume"
	ActionTerminate Action = "terminate"
)

var (
	// ErrTerminated is returned by waits that end because the run is terminating.
	ErrTerminated = errors.New("terminated")
	// ErrUnknownAction is returned by Apply for names other than pause, resume and terminate.
	ErrUnknownAction = errors.New("unknown control action")
)

// ParseAction converts a name to an Action.
func ParseAction(name string) (Action, error) {
	switch a := Action(name); a {
	case ActionPause, ActionResume, ActionTerminate:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

// State is the per-process run state. Only the signal path and the control API
// change it; main loops read it at their safe points. Once terminating is set it
// stays set.
type State struct {
	mu          sync.Mutex
	paused      bool
	terminating bool
	changed     chan struct{}
	done        chan struct{}
	listeners   []func(Action)
}

// New returns a running, unpaused state.
func New() *State {
	return &State{
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnChange registers fn to be called after every effective transition.
func (s *State) OnChange(fn func(Action)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Pause stops distribution and consumption. It reports whether the state changed.
func (s *State) Pause() bool {
	return s.transition(ActionPause, func() bool {
		if s.paused || s.terminating {
			return false
		}
		s.paused = true
		return true
	})
}

// Resume undoes Pause. It reports whether the state changed.
func (s *State) Resume() bool {
	return s.transition(ActionResume, func() bool {
		if !s.paused || s.terminating {
			return false
		}
		s.paused = false
		return true
	})
}

// Terminate marks the run as terminating. Only the first call has an effect.
func (s *State) Terminate() bool {
	return s.transition(ActionTerminate, func() bool {
		if s.terminating {
			return false
		}
		s.terminating = true
		close(s.done)
		return true
	})
}

// Apply performs the given action.
func (s *State) Apply(a Action) (bool, error) {
	switch a {
	case ActionPause:
		return s.Pause(), nil
	case ActionResume:
		return s.Resume(), nil
	case ActionTerminate:
		return s.Terminate(), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
}

func (s *State) transition(a Action, apply func() bool) bool {
	s.mu.Lock()
	if !apply() {
		s.mu.Unlock()
		return false
	}
	close(s.changed)
	s.changed = make(chan struct{})
	listeners := append([]func(Action){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(a)
	}
	return true
}

// Paused reports whether the run is paused.
func (s *State) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Terminating reports whether termination was requested.
func (s *State) Terminating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminating
}

// Changed returns a channel closed at the next transition.
func (s *State) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Done is closed when termination is requested.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// WaitWhilePaused blocks until the run is neither paused nor terminating. It
// returns ErrTerminated on terminate and ctx.Err() if ctx ends first.
func (s *State) WaitWhilePaused(ctx context.Context) error {
	for {
		s.mu.Lock()
		terminating, paused, changed := s.terminating, s.paused, s.changed
		s.mu.Unlock()

		if terminating {
			return ErrTerminated
		}
		if !paused {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Interruptible derives a context that is cancelled at the next transition, so a
// blocking receive or send returns and the caller re-checks the state. The
// context is already cancelled if the run is paused or terminating.
func (s *State) Interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	s.mu.Lock()
	stopped, changed := s.paused || s.terminating, s.changed
	s.mu.Unlock()

	child, cancel := context.WithCancel(ctx)
	if stopped {
		cancel()
		return child, cancel
	}

	go func() {
		select {
		case <-changed:
			cancel()
		case <-child.Done():
		}
	}()
	return child, cancel
}
