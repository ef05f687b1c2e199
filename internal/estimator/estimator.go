// Package estimator implements the unit of work executed by every worker: a batch
// of disk-sampling trials whose success rate converges to π/4.
package estimator

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// streamIncrement decorrelates the two PCG words derived from one seed.
const streamIncrement = 0x9e3779b97f4a7c15

// NewSource returns a generator owned by a single worker. Distinct seeds give
// independent streams, so workers seeded seedBase+i never share a sequence.
func NewSource(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^streamIncrement))
}

// Execute performs n trials and returns how many landed inside the unit circle.
// A trial draws a point uniformly from [-1,1]² and succeeds when x²+y² ≤ 1.
// It touches no shared state; rng must not be shared across goroutines.
func Execute(n uint64, rng *rand.Rand) uint64 {
	var hits uint64
	for i := uint64(0); i < n; i++ {
		x := rng.Float64()*2 - 1
		y := rng.Float64()*2 - 1
		if x*x+y*y <= 1 {
			hits++
		}
	}
	return hits
}

// Summary is the estimate derived from an accumulated hit count.
type Summary struct {
	Pi     float64 `json:"pi"`
	StdErr float64 `json:"std_err"`
	Low    float64 `json:"ci99_low"`
	High   float64 `json:"ci99_high"`
}

// Confidence is the two-sided level of the interval reported in Summary.
const Confidence = 0.99

// Summarize computes 4*hits/trials with its binomial standard error and a
// normal-approximation confidence interval. Zero trials yield a zero Summary.
func Summarize(hits int64, trials int64) Summary {
	if trials <= 0 {
		return Summary{}
	}

	n := float64(trials)
	p := float64(hits) / n
	stdErr := 4 * math.Sqrt(p*(1-p)/n)
	z := distuv.UnitNormal.Quantile(1 - (1-Confidence)/2)

	pi := 4 * p
	return Summary{
		Pi:     pi,
		StdErr: stdErr,
		Low:    pi - z*stdErr,
		High:   pi + z*stdErr,
	}
}
