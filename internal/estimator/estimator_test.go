package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecuteZeroTrials(t *testing.T) {
	assert.Equal(t, uint64(0), Execute(0, NewSource(1)))
}

func TestExecuteBounded(t *testing.T) {
	hits := Execute(10000, NewSource(3))

	assert.LessOrEqual(t, hits, uint64(10000))
	assert.Greater(t, hits, uint64(7000))
}

func TestExecuteDeterministicPerSeed(t *testing.T) {
	a := Execute(50000, NewSource(42))
	b := Execute(50000, NewSource(42))

	assert.Equal(t, a, b)
}

func TestSourcesAreIndependent(t *testing.T) {
	a := NewSource(1)
	b := NewSource(2)

	same := 0
	for i := 0; i < 100; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	assert.Zero(t, same)
}

func TestEstimateWithinTolerance(t *testing.T) {
	if testing.Short() {
		t.Skip("ten million trials")
	}

	const (
		workers   = 4
		perWorker = 2500000
	)

	var hits uint64
	for i := int64(0); i < workers; i++ {
		hits += Execute(perWorker, NewSource(1+i))
	}

	summary := Summarize(int64(hits), workers*perWorker)
	assert.InDelta(t, math.Pi, summary.Pi, 0.01)
}

// A single stream can sit several standard errors out; the interval is only
// expected to cover pi at about its confidence level across many streams.
func TestIntervalCoverage(t *testing.T) {
	const (
		streams   = 100
		perStream = 20000
	)

	covered := 0
	for seed := int64(1); seed <= streams; seed++ {
		s := Summarize(int64(Execute(perStream, NewSource(seed))), perStream)
		if s.Low <= math.Pi && math.Pi <= s.High {
			covered++
		}
	}
	assert.GreaterOrEqual(t, covered, 95)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		hits   int64
		trials int64
		wantPi float64
	}{
		{name: "no trials", hits: 0, trials: 0, wantPi: 0},
		{name: "all inside", hits: 100, trials: 100, wantPi: 4},
		{name: "three quarters", hits: 75, trials: 100, wantPi: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.hits, tt.trials)
			assert.InDelta(t, tt.wantPi, s.Pi, 1e-12)
			assert.LessOrEqual(t, s.Low, s.Pi)
			assert.GreaterOrEqual(t, s.High, s.Pi)
		})
	}
}

func TestSummarizeIntervalWidth(t *testing.T) {
	s := Summarize(785398, 1000000)

	// z(0.995) ≈ 2.5758
	assert.InDelta(t, 2.5758*s.StdErr, s.High-s.Pi, 1e-3*s.StdErr)
	assert.InDelta(t, 0.0016, s.StdErr, 0.0002)
}
