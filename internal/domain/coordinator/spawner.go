package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/GriffinCanCode/MonteIPC/internal/control"
	"github.com/GriffinCanCode/MonteIPC/internal/domain/worker"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
	"github.com/GriffinCanCode/MonteIPC/internal/shared/id"
)

// Handle is one spawned worker as seen by the coordinator.
type Handle interface {
	// ID is the pid for processes and a worker id for goroutines.
	ID() string
	Seed() int64
	// Signal delivers a control action to the worker.
	Signal(a control.Action) error
	// Kill stops the worker without its cooperation.
	Kill() error
	// Done is closed once the worker has exited; Err is valid afterwards.
	Done() <-chan struct{}
	Err() error
}

// Spawner starts workers.
type Spawner interface {
	Spawn(ctx context.Context, seed int64) (Handle, error)
}

// statsReporter is implemented by handles that can report worker counters.
type statsReporter interface {
	Stats() worker.Stats
}

// ProcessSpawner re-executes the worker binary with the seed as its only
// argument. Children stay in the coordinator's process group so a terminal
// interrupt reaches all of them.
type ProcessSpawner struct {
	Binary string
	// Env is appended to the coordinator's environment.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn starts one worker process.
func (s *ProcessSpawner) Spawn(_ context.Context, seed int64) (Handle, error) {
	cmd := exec.Command(s.Binary, strconv.FormatInt(seed, 10))
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stderr
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.Binary, err)
	}

	h := &processHandle{cmd: cmd, seed: seed, done: make(chan struct{})}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

type processHandle struct {
	cmd  *exec.Cmd
	seed int64
	done chan struct{}
	err  error
}

func (h *processHandle) ID() string            { return strconv.Itoa(h.cmd.Process.Pid) }
func (h *processHandle) Seed() int64           { return h.seed }
func (h *processHandle) Done() <-chan struct{} { return h.done }

func (h *processHandle) Err() error {
	<-h.done
	return h.err
}

func (h *processHandle) Signal(a control.Action) error {
	sig, ok := control.SignalFor(a)
	if !ok {
		if a == control.ActionTerminate {
			return h.Kill()
		}
		return fmt.Errorf("no signal for %s on this platform", a)
	}
	return ignoreDone(h.cmd.Process.Signal(sig))
}

func (h *processHandle) Kill() error {
	return ignoreDone(h.cmd.Process.Kill())
}

func ignoreDone(err error) error {
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// GoroutineSpawner runs workers inside the coordinator process. Each worker
// gets its own control state, as a separate process would.
type GoroutineSpawner struct {
	Transport ipc.Transport
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
}

// Spawn starts one in-process worker.
func (s *GoroutineSpawner) Spawn(ctx context.Context, seed int64) (Handle, error) {
	state := control.New()
	w := worker.New(seed, s.Transport, state, s.Logger).WithMetrics(s.Metrics)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &goroutineHandle{
		id:     id.NewWorkerID().String(),
		worker: w,
		state:  state,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer cancel()
		h.err = w.Run(runCtx)
	}()
	return h, nil
}

type goroutineHandle struct {
	id     string
	worker *worker.Worker
	state  *control.State
	cancel context.CancelFunc

	done chan struct{}
	err  error
	once sync.Once
}

func (h *goroutineHandle) ID() string            { return h.id }
func (h *goroutineHandle) Seed() int64           { return h.worker.Seed() }
func (h *goroutineHandle) Done() <-chan struct{} { return h.done }
func (h *goroutineHandle) Stats() worker.Stats   { return h.worker.Stats() }

func (h *goroutineHandle) Err() error {
	<-h.done
	return h.err
}

func (h *goroutineHandle) Signal(a control.Action) error {
	_, err := h.state.Apply(a)
	return err
}

func (h *goroutineHandle) Kill() error {
	h.once.Do(h.cancel)
	return nil
}
