//go:build unix

package coordinator

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/MonteIPC/internal/control"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func waitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestProcessSpawnerCleanExit(t *testing.T) {
	s := &ProcessSpawner{Binary: lookPath(t, "true")}

	h, err := s.Spawn(context.Background(), 42)
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, int64(42), h.Seed())
	assert.NotEmpty(t, h.ID())
	assert.NoError(t, h.Err())
	assert.Equal(t, OutcomeClean, exitOf(h).Outcome)

	// signalling an exited process is not an error
	assert.NoError(t, h.Signal(control.ActionTerminate))
	assert.NoError(t, h.Kill())
}

func TestProcessSpawnerAbnormalExit(t *testing.T) {
	s := &ProcessSpawner{Binary: lookPath(t, "false")}

	h, err := s.Spawn(context.Background(), 1)
	require.NoError(t, err)
	waitDone(t, h)

	exit := exitOf(h)
	assert.Equal(t, OutcomeAbnormal, exit.Outcome)
	assert.Equal(t, 1, exit.Code)
}

func TestProcessSpawnerTerminate(t *testing.T) {
	// sleep takes the seed as its duration in seconds
	s := &ProcessSpawner{Binary: lookPath(t, "sleep")}

	h, err := s.Spawn(context.Background(), 30)
	require.NoError(t, err)

	require.NoError(t, h.Signal(control.ActionTerminate))
	waitDone(t, h)

	assert.Equal(t, OutcomeAbnormal, exitOf(h).Outcome)
}

func TestProcessSpawnerMissingBinary(t *testing.T) {
	s := &ProcessSpawner{Binary: "/nonexistent/monteworker"}

	_, err := s.Spawn(context.Background(), 1)
	assert.Error(t, err)
}
