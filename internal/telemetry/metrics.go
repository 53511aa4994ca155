// Package telemetry is the primary operational visibility surface: per-stage
// funnel counters at sub-second granularity plus learner health, exported to
// Prometheus and snapshotted for the JSON funnel endpoint.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage names the pipeline stages in funnel order.
type Stage string

const (
	StageAlpha Stage = "alpha" // strategy ensemble
	StageBeta  Stage = "beta"  // consensus
	StageGamma Stage = "gamma" // market matcher
	StageDelta Stage = "delta" // quality gate
)

// Verdict is what happened to a unit of work at a stage.
type Verdict string

const (
	VerdictReceived Verdict = "received"
	VerdictPassed   Verdict = "passed"
	VerdictRejected Verdict = "rejected"
)

// Metrics holds all pipeline metrics.
type Metrics struct {
	StageEvents    *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	ActiveMonitors prometheus.Gauge
	ModelAccuracy  prometheus.Gauge
	ModelSamples   prometheus.Gauge
	ScanDuration   *prometheus.HistogramVec

	mu            sync.RWMutex
	funnel        map[Stage]*StageCounts
	modelAccuracy float64
	modelSamples  int
	queueDepth    int
}

// StageCounts is the JSON-facing funnel row.
type StageCounts struct {
	Received int64   `json:"received"`
	Passed   int64   `json:"passed"`
	Rejected int64   `json:"rejected"`
	PassRate float64 `json:"pass_rate"`
}

// FunnelSnapshot is the /funnel payload.
type FunnelSnapshot struct {
	Stages        map[Stage]StageCounts `json:"stages"`
	ModelAccuracy float64               `json:"model_accuracy"`
	ModelSamples  int                   `json:"model_samples"`
	QueueDepth    int                   `json:"queue_depth"`
}

// NewMetrics builds and registers the pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignitex_stage_events_total",
				Help: "Pipeline funnel events per stage and verdict",
			},
			[]string{"stage", "verdict"},
		),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ignitex_queue_depth",
			Help: "Admitted decisions waiting for the quality gate",
		}),
		ActiveMonitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ignitex_active_monitors",
			Help: "Outcome monitors currently running",
		}),
		ModelAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ignitex_model_accuracy",
			Help: "Quality gate model accuracy over decisive outcomes",
		}),
		ModelSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ignitex_model_samples_total",
			Help: "Decisive outcomes the quality gate model has trained on",
		}),
		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ignitex_scan_duration_seconds",
				Help:    "Duration of one full per-instrument scan",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"result"},
		),
		funnel: make(map[Stage]*StageCounts),
	}
	for _, s := range []Stage{StageAlpha, StageBeta, StageGamma, StageDelta} {
		m.funnel[s] = &StageCounts{}
	}

	if reg != nil {
		reg.MustRegister(m.StageEvents, m.QueueDepth, m.ActiveMonitors,
			m.ModelAccuracy, m.ModelSamples, m.ScanDuration)
	}
	return m
}

// Record counts one funnel event.
func (m *Metrics) Record(stage Stage, verdict Verdict) {
	m.StageEvents.WithLabelValues(string(stage), string(verdict)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	counts, ok := m.funnel[stage]
	if !ok {
		counts = &StageCounts{}
		m.funnel[stage] = counts
	}
	switch verdict {
	case VerdictReceived:
		counts.Received++
	case VerdictPassed:
		counts.Passed++
	case VerdictRejected:
		counts.Rejected++
	}
	if counts.Received > 0 {
		counts.PassRate = float64(counts.Passed) / float64(counts.Received)
	}
}

// SetModelStats publishes learner health.
func (m *Metrics) SetModelStats(accuracy float64, samples int) {
	m.ModelAccuracy.Set(accuracy)
	m.ModelSamples.Set(float64(samples))

	m.mu.Lock()
	m.modelAccuracy = accuracy
	m.modelSamples = samples
	m.mu.Unlock()
}

// SetQueueDepth publishes the current queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
	m.mu.Lock()
	m.queueDepth = depth
	m.mu.Unlock()
}

// Snapshot copies the funnel for the JSON endpoint.
func (m *Metrics) Snapshot() FunnelSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stages := make(map[Stage]StageCounts, len(m.funnel))
	for s, c := range m.funnel {
		stages[s] = *c
	}
	return FunnelSnapshot{
		Stages:        stages,
		ModelAccuracy: m.modelAccuracy,
		ModelSamples:  m.modelSamples,
		QueueDepth:    m.queueDepth,
	}
}
