package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of one process.
type Metrics struct {
	registry *prometheus.Registry

	// Distribution metrics (coordinator)
	ChunksDispatched prometheus.Counter
	TrialsDispatched prometheus.Counter
	StopsSent        prometheus.Counter
	TrialsRemaining  prometheus.Gauge

	// Control metrics
	ControlTransitions *prometheus.CounterVec
	Paused             prometheus.Gauge

	// Worker lifecycle metrics
	WorkersSpawned prometheus.Counter
	WorkersAlive   prometheus.Gauge
	WorkerExits    *prometheus.CounterVec

	// Accumulation metrics (in-process workers report here)
	Merges       prometheus.Counter
	HitsMerged   prometheus.Counter
	MergeWait    prometheus.Histogram
	ChunkCompute prometheus.Histogram

	// Result metrics
	RunDuration prometheus.Gauge
	Estimate    prometheus.Gauge

	// Status API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON status API.
type Snapshot struct {
	ChunksDispatched int64  `json:"chunks_dispatched"`
	TrialsDispatched uint64 `json:"trials_dispatched"`
	StopsSent        int64  `json:"stops_sent"`
	WorkersAlive     int64  `json:"workers_alive"`
	AbnormalExits    int64  `json:"abnormal_exits"`
}

// NewMetrics creates a metrics collector on its own registry, so several runs in one
// process (tests, the in-memory transport) never collide on registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChunksDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "monte_chunks_dispatched_total",
			Help: "Work messages enqueued on the task channel",
		}),
		TrialsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "monte_trials_dispatched_total",
			Help: "Trials handed out through work messages",
		}),
		StopsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "monte_stops_sent_total",
			Help: "Stop sentinels enqueued on the task channel",
		}),
		TrialsRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monte_trials_remaining",
			Help: "Trials not yet dispatched",
		}),

		ControlTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monte_control_transitions_total",
			Help: "Pause, resume and terminate requests applied",
		}, []string{"action"}),
		Paused: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monte_paused",
			Help: "1 while distribution is paused",
		}),

		WorkersSpawned: factory.NewCounter(prometheus.CounterOpts{
			Name: "monte_workers_spawned_total",
			Help: "Workers started by the coordinator",
		}),
		WorkersAlive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monte_workers_alive",
			Help: "Workers that have not exited yet",
		}),
		WorkerExits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monte_worker_exits_total",
			Help: "Worker exits by outcome",
		}, []string{"outcome"}),

		Merges: factory.NewCounter(prometheus.CounterOpts{
			Name: "monte_merges_total",
			Help: "Critical sections completed on the shared accumulator",
		}),
		HitsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "monte_hits_merged_total",
			Help: "Successful trials added to the shared accumulator",
		}),
		MergeWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "monte_merge_wait_seconds",
			Help:    "Time spent acquiring the accumulator lock",
			Buckets: []float64{.00001, .0001, .001, .005, .01, .05, .1, .5, 1},
		}),
		ChunkCompute: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "monte_chunk_compute_seconds",
			Help:    "Time spent executing one chunk of trials",
			Buckets: []float64{.0001, .001, .005, .01, .05, .1, .5, 1, 5},
		}),

		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monte_run_duration_seconds",
			Help: "Wall time from first dispatch to final read",
		}),
		Estimate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monte_pi_estimate",
			Help: "Estimate produced by the last finished run",
		}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monte_http_requests_total",
			Help: "Status API requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monte_http_request_duration_seconds",
			Help:    "Status API request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "path"}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordChunk records one work message sent.
func (m *Metrics) RecordChunk(trials uint64, remaining int64) {
	m.ChunksDispatched.Inc()
	m.TrialsDispatched.Add(float64(trials))
	m.TrialsRemaining.Set(float64(remaining))

	m.mu.Lock()
	m.snapshot.ChunksDispatched++
	m.snapshot.TrialsDispatched += trials
	m.mu.Unlock()
}

// RecordStop records one stop sentinel sent.
func (m *Metrics) RecordStop() {
	m.StopsSent.Inc()

	m.mu.Lock()
	m.snapshot.StopsSent++
	m.mu.Unlock()
}

// RecordControl records a control transition ("pause", "resume", "terminate").
func (m *Metrics) RecordControl(action string, paused bool) {
	m.ControlTransitions.WithLabelValues(action).Inc()
	if paused {
		m.Paused.Set(1)
	} else {
		m.Paused.Set(0)
	}
}

// RecordSpawn records a worker start.
func (m *Metrics) RecordSpawn() {
	m.WorkersSpawned.Inc()
	m.WorkersAlive.Inc()

	m.mu.Lock()
	m.snapshot.WorkersAlive++
	m.mu.Unlock()
}

// RecordExit records a worker exit; outcome is "clean" or "abnormal".
func (m *Metrics) RecordExit(outcome string) {
	m.WorkerExits.WithLabelValues(outcome).Inc()
	m.WorkersAlive.Dec()

	m.mu.Lock()
	m.snapshot.WorkersAlive--
	if outcome != "clean" {
		m.snapshot.AbnormalExits++
	}
	m.mu.Unlock()
}

// RecordMerge records one accumulator update.
func (m *Metrics) RecordMerge(hits uint64, wait time.Duration) {
	m.Merges.Inc()
	m.HitsMerged.Add(float64(hits))
	m.MergeWait.Observe(wait.Seconds())
}

// RecordResult records the final estimate.
func (m *Metrics) RecordResult(estimate float64, elapsed time.Duration) {
	m.Estimate.Set(estimate)
	m.RunDuration.Set(elapsed.Seconds())
}

// RecordHTTPRequest records a status API request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Snapshot returns a copy of the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
