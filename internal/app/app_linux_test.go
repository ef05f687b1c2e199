//go:build linux && (amd64 || arm64)

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/MonteIPC/internal/control"
	"github.com/GriffinCanCode/MonteIPC/internal/domain/coordinator"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/config"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc/sysv"
	"github.com/GriffinCanCode/MonteIPC/internal/report"
)

func TestRunWorkerWithoutCoordinator(t *testing.T) {
	cfg := config.Default()
	cfg.IPC.KeyPath = filepath.Join(t.TempDir(), "absent.ipc")
	cfg.Logging.Level = "error"

	err := RunWorker(context.Background(), cfg, 3)
	assert.ErrorIs(t, err, ipc.ErrNotFound)
}

// processConfig runs workers as re-executions of the test binary over System V
// resources private to the test. It skips where System V IPC is unavailable.
func processConfig(t *testing.T, workers int, trials, chunk int64) *config.Config {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)
	t.Setenv(workerRoleEnv, "1")

	cfg := config.Default()
	cfg.IPC.Transport = config.TransportSysV
	cfg.IPC.KeyPath = filepath.Join(t.TempDir(), "monte.ipc")
	cfg.IPC.PollInterval = time.Millisecond
	cfg.Worker.Binary = exe
	cfg.Run.Workers = workers
	cfg.Run.Trials = trials
	cfg.Run.ChunkSize = chunk
	cfg.Logging.Level = "error"

	tr := sysv.New(SysVOptions(cfg, logging.NewNop()))
	set, err := tr.Create()
	if err != nil {
		t.Skipf("System V IPC unavailable: %v", err)
	}
	require.NoError(t, set.Close())
	require.NoError(t, tr.Remove())
	return cfg
}

func assertResourcesGone(t *testing.T, cfg *config.Config) {
	t.Helper()
	_, err := sysv.New(SysVOptions(cfg, logging.NewNop())).Attach()
	assert.ErrorIs(t, err, ipc.ErrNotFound)
}

func TestWorkerProcessesOverSysV(t *testing.T) {
	cfg := processConfig(t, 3, 600_000, 25_000)

	metrics := monitoring.NewMetrics()
	backend, err := NewBackend(cfg, logging.NewNop(), metrics)
	require.NoError(t, err)
	require.False(t, backend.InProcess)

	coord := coordinator.New(CoordinatorConfig(cfg), backend.Transport, backend.Spawner, control.New(), logging.NewNop()).
		WithMetrics(metrics)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	result, err := coord.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "sysv", result.Transport)
	assert.Equal(t, 3, result.Workers)
	assert.InDelta(t, 3.14159, result.Summary.Pi, 0.02)

	require.Len(t, result.Exits, 3)
	for _, e := range result.Exits {
		assert.Equal(t, coordinator.OutcomeClean, e.Outcome, "worker %s: %s", e.ID, e.Error)
		assert.Zero(t, e.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.StopsSent))
	assert.Equal(t, int64(3), coord.Snapshot().StopsSent)
	assert.Equal(t, float64(24), testutil.ToFloat64(metrics.ChunksDispatched))

	assertResourcesGone(t, cfg)
}

func TestRunMasterWorkerProcesses(t *testing.T) {
	cfg := processConfig(t, 2, 200_000, 10_000)

	var out bytes.Buffer
	require.NoError(t, RunMaster(context.Background(), cfg, report.FormatJSON, &out))

	var doc report.Document
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "sysv", doc.Transport)
	assert.Equal(t, 2, doc.Workers)
	assert.Zero(t, doc.AbnormalExits)
	assert.Len(t, doc.Exits, 2)
	assert.InDelta(t, 3.14159, doc.Estimate, 0.03)

	assertResourcesGone(t, cfg)
}

func TestRunMasterInterruptRemovesResources(t *testing.T) {
	cfg := processConfig(t, 2, 1_000_000_000_000, 1_000_000)

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- RunMaster(context.Background(), cfg, report.FormatText, &out)
	}()

	// resources exist only after the signal watcher is installed
	require.Eventually(t, func() bool {
		set, err := sysv.New(SysVOptions(cfg, logging.NewNop())).Attach()
		if err != nil {
			return false
		}
		set.Close()
		return true
	}, 10*time.Second, 5*time.Millisecond)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("coordinator did not shut down after SIGINT")
	}

	assert.NotContains(t, out.String(), "Pi estimate")
	assertResourcesGone(t, cfg)
}
