package coordinator

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
)

// gate holds the context sends run under. The context is cancelled by any
// state transition and by the last worker exiting; a cancelled gate re-checks
// the state before opening again.
type gate struct {
	c      *Coordinator
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
}

func (g *gate) open() error {
	for {
		if err := g.parent.Err(); err != nil {
			return err
		}
		if g.ctx != nil && g.ctx.Err() == nil {
			return nil
		}
		g.close()

		if err := g.c.state.WaitWhilePaused(g.parent); err != nil {
			return err
		}
		select {
		case <-g.c.registry.AllExited():
			return ErrNoWorkers
		default:
		}

		g.ctx, g.cancel = g.c.state.Interruptible(g.parent)
		go func(ctx context.Context, cancel context.CancelFunc) {
			select {
			case <-g.c.registry.AllExited():
				cancel()
			case <-ctx.Done():
			}
		}(g.ctx, g.cancel)
	}
}

// send blocks until msg is on the channel. Interruptions caused by pause,
// resume or terminate are retried after the state is re-checked.
func (g *gate) send(ch ipc.Channel, msg ipc.TaskMessage) error {
	for {
		if err := g.open(); err != nil {
			return err
		}
		err := ch.Send(g.ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ipc.ErrInterrupted) && g.parent.Err() == nil {
			continue
		}
		return err
	}
}

// offer places msg on the channel only if that needs no waiting. Stops still
// go out after the last worker exited, as long as the channel has room.
func (g *gate) offer(ch ipc.Channel, msg ipc.TaskMessage) bool {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ch.Send(ctx, msg) == nil
}

func (g *gate) close() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
		g.ctx = nil
	}
}
