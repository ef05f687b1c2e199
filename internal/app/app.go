package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/MonteIPC/internal/control"
	"github.com/GriffinCanCode/MonteIPC/internal/domain/coordinator"
	"github.com/GriffinCanCode/MonteIPC/internal/domain/worker"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/config"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/server"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc/memory"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc/sysv"
	"github.com/GriffinCanCode/MonteIPC/internal/report"
)

// WorkerBinaryName is looked up next to the coordinator and then on PATH.
const WorkerBinaryName = "monteworker"

// ErrNoWorkerProcess is returned when a worker process is started for a
// transport that only runs in-process workers.
var ErrNoWorkerProcess = errors.New("memory transport runs workers in-process")

// NewLogger builds the process logger from the logging section of cfg.
func NewLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// CoordinatorConfig extracts the run shape from cfg.
func CoordinatorConfig(cfg *config.Config) coordinator.Config {
	return coordinator.Config{
		Workers:   cfg.Run.Workers,
		Trials:    cfg.Run.Trials,
		ChunkSize: cfg.Run.ChunkSize,
		SeedBase:  cfg.Run.SeedBase,
		StopGrace: cfg.Worker.StopGrace,
	}
}

// SysVOptions maps the IPC section of cfg to transport options.
func SysVOptions(cfg *config.Config, logger *logging.Logger) sysv.Options {
	return sysv.Options{
		KeyPath:      cfg.IPC.KeyPath,
		ShmID:        cfg.IPC.ShmID,
		SemID:        cfg.IPC.SemID,
		MsgID:        cfg.IPC.MsgID,
		PollInterval: cfg.IPC.PollInterval,
		OnStale: func(resource string, id int) {
			logger.Warn("Removed stale resource from an earlier run",
				zap.String("resource", resource),
				zap.Int("id", id))
		},
	}
}

// WorkerBinary resolves the worker executable: the explicit path if set,
// otherwise a sibling of the running executable, otherwise PATH.
func WorkerBinary(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), WorkerBinaryName)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(WorkerBinaryName)
	if err != nil {
		return "", fmt.Errorf("locate %s (set MONTE_WORKER_BIN): %w", WorkerBinaryName, err)
	}
	return path, nil
}

// Backend pairs a transport with the spawner that matches it.
type Backend struct {
	Transport ipc.Transport
	Spawner   coordinator.Spawner
	// InProcess is true when workers share this process's signals.
	InProcess bool
}

// NewBackend selects the transport named in cfg.
func NewBackend(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Backend, error) {
	switch cfg.IPC.Transport {
	case config.TransportMemory:
		tr := memory.New(memory.NewNamespace(), cfg.IPC.KeyPath, cfg.IPC.QueueDepth)
		return &Backend{
			Transport: tr,
			Spawner:   &coordinator.GoroutineSpawner{Transport: tr, Logger: logger, Metrics: metrics},
			InProcess: true,
		}, nil
	case config.TransportSysV:
		bin, err := WorkerBinary(cfg.Worker.Binary)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Transport: sysv.New(SysVOptions(cfg, logger)),
			Spawner:   &coordinator.ProcessSpawner{Binary: bin, Env: cfg.WorkerEnv()},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.IPC.Transport)
	}
}

// RunMaster runs one coordinator to completion and writes the result to
// stdout. A terminated run writes nothing and returns nil.
func RunMaster(ctx context.Context, cfg *config.Config, format report.Format, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	runCfg := CoordinatorConfig(cfg)
	if format != report.FormatJSON {
		if err := report.Banner(stdout, runCfg); err != nil {
			return err
		}
	}

	metrics := monitoring.NewMetrics()
	backend, err := NewBackend(cfg, logger, metrics)
	if err != nil {
		return err
	}

	state := control.New()
	coord := coordinator.New(runCfg, backend.Transport, backend.Spawner, state, logger).WithMetrics(metrics)

	state.OnChange(func(a control.Action) {
		metrics.RecordControl(string(a), state.Paused())
	})
	if backend.InProcess {
		// a terminal signal reaches worker processes directly; goroutine
		// workers only see it through the coordinator
		state.OnChange(func(a control.Action) {
			for _, h := range coord.Registry().Running() {
				_ = h.Signal(a)
			}
		})
	}

	stopSignals := control.Watch(state, logger)
	defer stopSignals()

	if cfg.Status.Addr != "" {
		srv, err := server.NewServer(cfg.Status, cfg.Logging.Development, coord, metrics, logger)
		if err != nil {
			return err
		}
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Status API shutdown", zap.Error(err))
			}
		}()
	}

	result, err := coord.Run(ctx)
	if errors.Is(err, coordinator.ErrTerminated) {
		logger.Info("Run terminated; resources released", zap.String("run_id", coord.RunID()))
		return nil
	}
	if err != nil {
		return err
	}

	return report.Write(stdout, format, result)
}

// RunWorker attaches a worker process to the coordinator's resources and runs
// it until stop, terminate or removal of the resources.
func RunWorker(ctx context.Context, cfg *config.Config, seed int64) error {
	if cfg.IPC.Transport == config.TransportMemory {
		return ErrNoWorkerProcess
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	state := control.New()
	stopSignals := control.Watch(state, logger)
	defer stopSignals()

	w := worker.New(seed, sysv.New(SysVOptions(cfg, logger)), state, logger)
	return w.Run(ctx)
}
