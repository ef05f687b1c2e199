package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}

func TestRecordDistribution(t *testing.T) {
	m := NewMetrics()

	m.RecordChunk(100, 900)
	m.RecordChunk(100, 800)
	m.RecordStop()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChunksDispatched))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.TrialsDispatched))
	assert.Equal(t, 800.0, testutil.ToFloat64(m.TrialsRemaining))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StopsSent))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.ChunksDispatched)
	assert.Equal(t, uint64(200), snap.TrialsDispatched)
	assert.Equal(t, int64(1), snap.StopsSent)
}

func TestRecordWorkerLifecycle(t *testing.T) {
	m := NewMetrics()

	m.RecordSpawn()
	m.RecordSpawn()
	m.RecordExit("clean")
	m.RecordExit("abnormal")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkersSpawned))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WorkersAlive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerExits.WithLabelValues("abnormal")))
	assert.Equal(t, int64(1), m.Snapshot().AbnormalExits)
}

func TestRecordControl(t *testing.T) {
	m := NewMetrics()

	m.RecordControl("pause", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Paused))

	m.RecordControl("resume", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Paused))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ControlTransitions.WithLabelValues("pause")))
}

func TestTimerWithoutMetrics(t *testing.T) {
	timer := NewTimer(nil)
	time.Sleep(time.Millisecond)

	assert.Greater(t, timer.Stop(), time.Duration(0))
}
