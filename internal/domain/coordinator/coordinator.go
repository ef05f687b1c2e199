package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/MonteIPC/internal/control"
	"github.com/GriffinCanCode/MonteIPC/internal/estimator"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/config"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
	"github.com/GriffinCanCode/MonteIPC/internal/shared/id"
)

var (
	// ErrNoWorkers reports that no worker is left to consume the work.
	ErrNoWorkers = errors.New("no live workers")
	// ErrTerminated reports that the run was stopped by a terminate request.
	ErrTerminated = control.ErrTerminated
	// ErrNotStarted is returned by operations that need Start to have succeeded.
	ErrNotStarted = errors.New("coordinator not started")
	// ErrWorkersAlive is returned by Finalize while workers may still merge.
	ErrWorkersAlive = errors.New("workers still running")
)

// spawnTripAfter is how many spawns must fail, with none succeeding, before
// the remaining workers are given up on.
const spawnTripAfter = 3

// Phase is the coarse position of a run in its lifecycle.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseStarting     Phase = "starting"
	PhaseDistributing Phase = "distributing"
	PhaseAwaiting     Phase = "awaiting"
	PhaseFinished     Phase = "finished"
	PhaseShutdown     Phase = "shutdown"
)

// Config is the shape of one run.
type Config struct {
	Workers   int
	Trials    int64
	ChunkSize int64
	SeedBase  int64
	// StopGrace bounds how long Shutdown waits after terminate before killing.
	StopGrace time.Duration
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, config.ErrInvalidWorkers)
	}
	if c.Trials < 0 {
		errs = append(errs, config.ErrInvalidTrials)
	}
	if c.ChunkSize < 1 {
		errs = append(errs, config.ErrInvalidChunk)
	}
	return errors.Join(errs...)
}

// Result is what a finished run produced.
type Result struct {
	RunID     string            `json:"run_id"`
	Transport string            `json:"transport"`
	Workers   int               `json:"workers"`
	Trials    int64             `json:"trials"`
	ChunkSize int64             `json:"chunk_size"`
	SeedBase  int64             `json:"seed_base"`
	Hits      int64             `json:"hits"`
	Summary   estimator.Summary `json:"summary"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
	Exits     []Exit            `json:"exits"`
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	RunID       string         `json:"run_id"`
	Phase       Phase          `json:"phase"`
	Transport   string         `json:"transport"`
	Workers     int            `json:"workers"`
	Trials      int64          `json:"trials"`
	ChunkSize   int64          `json:"chunk_size"`
	Remaining   int64          `json:"remaining"`
	ChunksSent  int64          `json:"chunks_sent"`
	StopsSent   int64          `json:"stops_sent"`
	Paused      bool           `json:"paused"`
	Terminating bool           `json:"terminating"`
	Elapsed     float64        `json:"elapsed_seconds"`
	WorkerList  []WorkerStatus `json:"worker_list"`
	Result      *Result        `json:"result,omitempty"`
}

// Coordinator creates the shared resources, spawns the workers, hands out the
// work in chunks and collects the result.
type Coordinator struct {
	cfg       Config
	runID     string
	transport ipc.Transport
	spawner   Spawner
	state     *control.State
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	registry  *Registry

	mu         sync.Mutex
	phase      Phase
	set        *ipc.Set
	remaining  int64
	chunksSent int64
	stopsSent  int64
	started    time.Time
	result     *Result

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

// New creates a coordinator. state is the process run state shared with the
// signal watcher and the status API.
func New(cfg Config, transport ipc.Transport, spawner Spawner, state *control.State, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	runID := id.NewRunID().String()
	c := &Coordinator{
		cfg:          cfg,
		runID:        runID,
		transport:    transport,
		spawner:      spawner,
		state:        state,
		logger:       logger.ForCoordinator(runID),
		phase:        PhaseIdle,
		remaining:    cfg.Trials,
		shutdownDone: make(chan struct{}),
	}
	c.registry = NewRegistry(c.onExit)
	return c
}

// WithMetrics adds metrics tracking to the coordinator
func (c *Coordinator) WithMetrics(metrics *monitoring.Metrics) *Coordinator {
	c.metrics = metrics
	return c
}

// RunID returns the identifier of this run.
func (c *Coordinator) RunID() string { return c.runID }

// Registry returns the worker registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Coordinator) onExit(exit Exit) {
	if c.metrics != nil {
		c.metrics.RecordExit(string(exit.Outcome))
	}
	if exit.Outcome == OutcomeClean {
		c.logger.Debug("Worker exited", zap.String("worker", exit.ID), zap.Int64("seed", exit.Seed))
		return
	}
	c.logger.Warn("Worker exited abnormally",
		zap.String("worker", exit.ID),
		zap.Int64("seed", exit.Seed),
		zap.Int("code", exit.Code),
		zap.String("error", exit.Error))
}

// Start validates the configuration, creates the resources and spawns the
// workers with seeds SeedBase+i. On failure everything created is removed.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid run configuration: %w", err)
	}
	c.setPhase(PhaseStarting)

	set, err := c.transport.Create()
	if err != nil {
		c.registry.Seal()
		return fmt.Errorf("create %s resources: %w", c.transport.Name(), err)
	}
	c.mu.Lock()
	c.set = set
	c.mu.Unlock()

	breaker := resilience.New("spawn", resilience.Settings{
		ReadyToTrip: resilience.TripWhenNothingWorks(spawnTripAfter),
		OnTrip: func(_ string, counts resilience.Counts) {
			c.logger.Error("Every spawn attempt failed; not spawning the remaining workers",
				zap.Uint32("attempts", counts.Requests),
				zap.Int("skipped", c.cfg.Workers-int(counts.Requests)))
		},
	})
	for i := 0; i < c.cfg.Workers; i++ {
		seed := c.cfg.SeedBase + int64(i)
		var h Handle
		err := breaker.Execute(func() (err error) {
			h, err = c.spawner.Spawn(ctx, seed)
			return err
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			break
		}
		if err != nil {
			c.logger.Error("Failed to spawn worker", zap.Int64("seed", seed), zap.Error(err))
			continue
		}
		c.registry.Add(h)
		if c.metrics != nil {
			c.metrics.RecordSpawn()
		}
		c.logger.Debug("Worker spawned", zap.String("worker", h.ID()), zap.Int64("seed", seed))
	}
	c.registry.Seal()

	if c.registry.Len() == 0 {
		return errors.Join(ErrNoWorkers, c.Shutdown())
	}

	c.logger.Info("Run started",
		zap.String("transport", c.transport.Name()),
		zap.Int("workers", c.registry.Len()),
		zap.Int64("trials", c.cfg.Trials),
		zap.Int64("chunk", c.cfg.ChunkSize),
		zap.Int64("seed_base", c.cfg.SeedBase))
	return nil
}

// Distribute sends the work in chunks of at most ChunkSize, the last one
// holding the remainder, then one stop per registered worker. It waits while
// paused without sending and returns ErrTerminated on terminate.
func (c *Coordinator) Distribute(ctx context.Context) error {
	c.mu.Lock()
	set := c.set
	if set == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.phase = PhaseDistributing
	if c.started.IsZero() {
		c.started = time.Now()
	}
	c.mu.Unlock()

	g := &gate{c: c, parent: ctx}
	defer g.close()

	for {
		c.mu.Lock()
		remaining := c.remaining
		c.mu.Unlock()
		if remaining <= 0 {
			break
		}

		n := min(remaining, c.cfg.ChunkSize)
		if err := g.send(set.Channel, ipc.Work(uint64(n))); err != nil {
			return c.distributeError(err)
		}

		c.mu.Lock()
		c.remaining -= n
		c.chunksSent++
		remaining = c.remaining
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordChunk(uint64(n), remaining)
		}
	}

	stops := c.registry.Len()
	for i := 0; i < stops; i++ {
		err := g.send(set.Channel, ipc.Stop())
		if errors.Is(err, ErrNoWorkers) {
			if !g.offer(set.Channel, ipc.Stop()) {
				c.logger.Debug("Every worker already exited and the channel is full; remaining stops skipped",
					zap.Int("skipped", stops-i))
				break
			}
			err = nil
		}
		if err != nil {
			return c.distributeError(err)
		}

		c.mu.Lock()
		c.stopsSent++
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordStop()
		}
	}

	c.logger.Info("Distribution complete", zap.Int64("chunks", c.chunks()), zap.Int64("stops", c.stops()))
	return nil
}

func (c *Coordinator) distributeError(err error) error {
	switch {
	case errors.Is(err, ErrTerminated):
		c.logger.Info("Distribution stopped by terminate")
		return ErrTerminated
	case errors.Is(err, ErrNoWorkers):
		c.logger.Error("Every worker exited with work remaining", zap.Int64("remaining", c.pending()))
		return err
	default:
		return fmt.Errorf("send task: %w", err)
	}
}

// AwaitCompletion blocks until every registered worker has exited. Abnormal
// exits are logged and do not fail the run.
func (c *Coordinator) AwaitCompletion(ctx context.Context) error {
	c.setPhase(PhaseAwaiting)

	select {
	case <-c.registry.AllExited():
	case <-c.state.Done():
		return ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}

	exits := c.registry.Exits()
	abnormal := 0
	for _, e := range exits {
		if e.Outcome != OutcomeClean {
			abnormal++
		}
	}
	c.logger.Info("All workers exited", zap.Int("workers", len(exits)), zap.Int("abnormal", abnormal))
	return nil
}

// Finalize reads the accumulator once every worker has exited and computes
// the estimate 4*hits/trials.
func (c *Coordinator) Finalize() (*Result, error) {
	select {
	case <-c.registry.AllExited():
	default:
		return nil, ErrWorkersAlive
	}

	c.mu.Lock()
	set, started := c.set, c.started
	c.mu.Unlock()
	if set == nil {
		return nil, ErrNotStarted
	}

	hits, err := set.Accumulator.Load()
	if err != nil {
		return nil, fmt.Errorf("read accumulator: %w", err)
	}

	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = time.Since(started)
	}

	result := &Result{
		RunID:     c.runID,
		Transport: c.transport.Name(),
		Workers:   c.registry.Len(),
		Trials:    c.cfg.Trials,
		ChunkSize: c.cfg.ChunkSize,
		SeedBase:  c.cfg.SeedBase,
		Hits:      hits,
		Summary:   estimator.Summarize(hits, c.cfg.Trials),
		Elapsed:   elapsed,
		Exits:     c.registry.Exits(),
	}

	c.mu.Lock()
	c.result = result
	c.phase = PhaseFinished
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordResult(result.Summary.Pi, elapsed)
	}
	c.logger.Info("Run finished",
		zap.Int64("hits", hits),
		zap.Float64("estimate", result.Summary.Pi),
		zap.Duration("elapsed", elapsed))
	return result, nil
}

// Shutdown terminates workers still alive, kills those that ignore it past
// the grace period, then removes the shared resources. Concurrent and
// repeated calls wait for the first one and return its result.
func (c *Coordinator) Shutdown() error {
	c.shutdownOnce.Do(func() {
		defer close(c.shutdownDone)
		c.shutdownErr = c.shutdown()
	})
	<-c.shutdownDone
	return c.shutdownErr
}

func (c *Coordinator) shutdown() error {
	c.registry.Seal()

	if running := c.registry.Running(); len(running) > 0 {
		c.logger.Info("Terminating workers", zap.Int("alive", len(running)))
		for _, h := range running {
			if err := h.Signal(control.ActionTerminate); err != nil {
				c.logger.Warn("Failed to signal worker", zap.String("worker", h.ID()), zap.Error(err))
			}
		}

		if !c.waitExited(c.cfg.StopGrace) {
			for _, h := range c.registry.Running() {
				c.logger.Warn("Killing worker after grace period", zap.String("worker", h.ID()))
				if err := h.Kill(); err != nil {
					c.logger.Warn("Failed to kill worker", zap.String("worker", h.ID()), zap.Error(err))
				}
			}
			if !c.waitExited(c.cfg.StopGrace) {
				c.logger.Error("Workers still alive after kill", zap.Int("alive", c.registry.Alive()))
			}
		}
	}

	c.mu.Lock()
	set := c.set
	c.phase = PhaseShutdown
	c.mu.Unlock()

	var errs []error
	if set != nil {
		if err := set.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detach: %w", err))
		}
	}
	if err := c.transport.Remove(); err != nil {
		errs = append(errs, fmt.Errorf("remove resources: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Error("Shutdown incomplete", zap.Error(err))
	} else {
		c.logger.Debug("Resources removed")
	}
	return err
}

func (c *Coordinator) waitExited(grace time.Duration) bool {
	if grace <= 0 {
		grace = 2 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-c.registry.AllExited():
		return true
	case <-timer.C:
		return false
	}
}

// Run executes a whole run and always shuts down. A terminated run returns
// ErrTerminated and no result.
func (c *Coordinator) Run(ctx context.Context) (result *Result, err error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if shutdownErr := c.Shutdown(); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	if err := c.Distribute(ctx); err != nil {
		return nil, err
	}
	if err := c.AwaitCompletion(ctx); err != nil {
		return nil, err
	}
	return c.Finalize()
}

// Control applies a pause, resume or terminate request to the coordinator and
// forwards it to every live worker.
func (c *Coordinator) Control(a control.Action) (bool, error) {
	changed, err := c.state.Apply(a)
	if err != nil {
		return false, err
	}

	var errs []error
	for _, h := range c.registry.Running() {
		if err := h.Signal(a); err != nil {
			errs = append(errs, fmt.Errorf("worker %s: %w", h.ID(), err))
		}
	}
	return changed, errors.Join(errs...)
}

// Pause stops distribution here and consumption in every worker.
func (c *Coordinator) Pause() (bool, error) { return c.Control(control.ActionPause) }

// Resume undoes Pause.
func (c *Coordinator) Resume() (bool, error) { return c.Control(control.ActionResume) }

// Terminate ends the run; Run returns ErrTerminated after shutting down.
func (c *Coordinator) Terminate() (bool, error) { return c.Control(control.ActionTerminate) }

// Snapshot returns the current view of the run.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		RunID:      c.runID,
		Phase:      c.phase,
		Transport:  c.transport.Name(),
		Workers:    c.cfg.Workers,
		Trials:     c.cfg.Trials,
		ChunkSize:  c.cfg.ChunkSize,
		Remaining:  c.remaining,
		ChunksSent: c.chunksSent,
		StopsSent:  c.stopsSent,
		Result:     c.result,
	}
	if !c.started.IsZero() {
		if c.result != nil {
			s.Elapsed = c.result.Elapsed.Seconds()
		} else {
			s.Elapsed = time.Since(c.started).Seconds()
		}
	}
	c.mu.Unlock()

	s.Paused = c.state.Paused()
	s.Terminating = c.state.Terminating()
	s.WorkerList = c.registry.Statuses()
	return s
}

func (c *Coordinator) chunks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunksSent
}

func (c *Coordinator) stops() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopsSent
}

func (c *Coordinator) pending() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}
