package control

import (
	"os"
	"os/signal"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
)

// SignalFor returns the OS signal that asks another process for action a. The
// second result is false where the platform has no such signal.
func SignalFor(a Action) (os.Signal, bool) {
	for sig, action := range signalActions {
		if action == a && sig != os.Interrupt {
			return sig, true
		}
	}
	return nil, false
}

// Watch applies incoming OS signals to s until the returned stop function is
// called.
func Watch(s *State, logger *logging.Logger) (stop func()) {
	sigs := make([]os.Signal, 0, len(signalActions))
	for sig := range signalActions {
		sigs = append(sigs, sig)
	}

	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sig := <-ch:
				action := signalActions[sig]
				changed, _ := s.Apply(action)
				logger.Info("Signal received",
					zap.String("signal", sig.String()),
					zap.String("action", string(action)),
					zap.Bool("changed", changed))
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
			wg.Wait()
		})
	}
}
