/*
Package resilience provides a one-way circuit breaker for batches of similar
operations.

The coordinator spawns its workers through a breaker so that a fault shared by
every spawn, such as a missing worker binary, is reported after a few attempts
instead of once per worker.

# Usage

	breaker := resilience.New("spawn", resilience.Settings{
		ReadyToTrip: resilience.TripWhenNothingWorks(3),
	})

	for seed := range seeds {
		err := breaker.Execute(func() error {
			return spawn(seed)
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			break
		}
	}
*/
package resilience
