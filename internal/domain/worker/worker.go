package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/MonteIPC/internal/control"
	"github.com/GriffinCanCode/MonteIPC/internal/estimator"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
)

// ExitReason describes why Run returned without error.
type ExitReason string

const (
	ExitStop      ExitReason = "stop"
	ExitTerminate ExitReason = "terminate"
	ExitRemoved   ExitReason = "resources removed"
)

// Stats counts what this worker processed.
type Stats struct {
	Chunks uint64 `json:"chunks"`
	Trials uint64 `json:"trials"`
	Hits   uint64 `json:"hits"`
}

// Worker pulls chunks from the task channel and merges their hits into the
// shared accumulator.
type Worker struct {
	seed      int64
	transport ipc.Transport
	state     *control.State
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	rng       *rand.Rand

	chunks atomic.Uint64
	trials atomic.Uint64
	hits   atomic.Uint64
	reason atomic.Value // ExitReason
}

// New creates a worker with its own generator seeded from seed.
func New(seed int64, transport ipc.Transport, state *control.State, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		seed:      seed,
		transport: transport,
		state:     state,
		logger:    logger.ForWorker(seed),
		rng:       estimator.NewSource(seed),
	}
}

// WithMetrics adds merge and compute metrics to the worker
func (w *Worker) WithMetrics(metrics *monitoring.Metrics) *Worker {
	w.metrics = metrics
	return w
}

// Seed returns the seed the worker was started with.
func (w *Worker) Seed() int64 { return w.seed }

// Stats returns the counts processed so far.
func (w *Worker) Stats() Stats {
	return Stats{
		Chunks: w.chunks.Load(),
		Trials: w.trials.Load(),
		Hits:   w.hits.Load(),
	}
}

// Reason returns why the last Run exited cleanly, or "" if it has not.
func (w *Worker) Reason() ExitReason {
	r, _ := w.reason.Load().(ExitReason)
	return r
}

// Run attaches to the shared resources and processes chunks until a stop
// message, a terminate request or the removal of the channel. It fails with
// ipc.ErrNotFound when the coordinator has not created the resources.
func (w *Worker) Run(ctx context.Context) error {
	set, err := w.transport.Attach()
	if err != nil {
		return fmt.Errorf("attach %s resources: %w", w.transport.Name(), err)
	}
	defer func() {
		if err := set.Close(); err != nil {
			w.logger.Warn("Failed to detach", zap.Error(err))
		}
	}()

	w.logger.Debug("Worker attached", zap.String("transport", w.transport.Name()))

	reason, err := w.loop(ctx, set)
	if err != nil {
		return err
	}
	w.reason.Store(reason)

	stats := w.Stats()
	w.logger.Info("Worker exiting",
		zap.String("reason", string(reason)),
		zap.Uint64("chunks", stats.Chunks),
		zap.Uint64("trials", stats.Trials),
		zap.Uint64("hits", stats.Hits))
	return nil
}

func (w *Worker) loop(ctx context.Context, set *ipc.Set) (ExitReason, error) {
	for {
		if err := w.state.WaitWhilePaused(ctx); err != nil {
			if errors.Is(err, control.ErrTerminated) {
				return ExitTerminate, nil
			}
			return "", err
		}

		recvCtx, cancel := w.state.Interruptible(ctx)
		msg, err := set.Channel.Receive(recvCtx)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, ipc.ErrInterrupted) && ctx.Err() == nil:
			continue
		case errors.Is(err, ipc.ErrRemoved):
			return ExitRemoved, nil
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			return "", fmt.Errorf("receive task: %w", err)
		}

		if msg.IsStop() {
			return ExitStop, nil
		}

		if err := w.process(ctx, set, msg.ChunkSize); err != nil {
			if errors.Is(err, ipc.ErrRemoved) {
				return ExitRemoved, nil
			}
			return "", err
		}
	}
}

// process runs one chunk and merges it. The merge ignores cancellation so a
// worker never leaves between computing and publishing its hits.
func (w *Worker) process(ctx context.Context, set *ipc.Set, n uint64) error {
	timer := monitoring.NewTimer(w.metrics)
	hits := estimator.Execute(n, w.rng)
	timer.Stop()

	wait, err := ipc.Merge(context.WithoutCancel(ctx), set.Lock, set.Accumulator, int64(hits))
	if err != nil {
		return fmt.Errorf("merge %d hits: %w", hits, err)
	}

	w.chunks.Add(1)
	w.trials.Add(n)
	w.hits.Add(hits)
	if w.metrics != nil {
		w.metrics.RecordMerge(hits, wait)
	}

	w.logger.Debug("Chunk merged",
		zap.Uint64("trials", n),
		zap.Uint64("hits", hits),
		zap.Duration("lock_wait", wait))
	return nil
}
