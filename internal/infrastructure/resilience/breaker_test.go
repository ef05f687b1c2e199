package resilience

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

func run(b *Breaker, outcomes ...bool) []error {
	errs := make([]error, 0, len(outcomes))
	for _, ok := range outcomes {
		errs = append(errs, b.Execute(func() error {
			if ok {
				return nil
			}
			return errFailed
		}))
	}
	return errs
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				ReadyToTrip: func(counts Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "default threshold not reached",
			requests:      []bool{false, false, false, false, false},
			expectedState: StateClosed,
		},
		{
			name:          "nothing works trips",
			settings:      Settings{ReadyToTrip: TripWhenNothingWorks(2)},
			requests:      []bool{false, false},
			expectedState: StateOpen,
		},
		{
			name:          "one success keeps a flaky batch closed",
			settings:      Settings{ReadyToTrip: TripWhenNothingWorks(2)},
			requests:      []bool{true, false, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", tt.settings)
			run(breaker, tt.requests...)
			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{})

	errs := run(breaker, true, false, false)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], errFailed)

	counts := breaker.Counts()
	assert.Equal(t, uint32(3), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(2), counts.TotalFailures)
	assert.Equal(t, uint32(2), counts.ConsecutiveFailures)

	run(breaker, true)
	assert.Equal(t, uint32(0), breaker.Counts().ConsecutiveFailures)
}

func TestBreakerOpenRejects(t *testing.T) {
	breaker := New("spawn", Settings{ReadyToTrip: TripWhenNothingWorks(2)})
	run(breaker, false, false)
	require.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, uint32(1), breaker.Counts().Rejected)
	assert.Equal(t, StateOpen, breaker.State(), "never closes again")
}

func TestBreakerOnTripOnce(t *testing.T) {
	var trips []Counts
	breaker := New("spawn", Settings{
		ReadyToTrip: TripWhenNothingWorks(2),
		OnTrip: func(name string, counts Counts) {
			assert.Equal(t, "spawn", name)
			trips = append(trips, counts)
		},
	})

	run(breaker, false, false, false, false)

	require.Len(t, trips, 1)
	assert.Equal(t, uint32(2), trips[0].TotalFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{ReadyToTrip: TripWhenNothingWorks(1)})

	assert.Panics(t, func() {
		_ = breaker.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().TotalFailures)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
