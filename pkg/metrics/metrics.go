// Package metrics exposes posture service counters to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-posture/pkg/posture"
)

const namespace = "posture"

// Calibration results
const (
	ResultSuccess = "success"
	ResultTimeout = "timeout"
)

// Metrics holds all service metrics
type Metrics struct {
	// Frame counters
	FramesIngested  atomic.Uint64 // accepted from detectors
	FramesProcessed atomic.Uint64
	NoPersonFrames  atomic.Uint64
	GoodFrames      atomic.Uint64
	BadFrames       atomic.Uint64

	AlertsFired  atomic.Uint64
	AlertsFailed atomic.Uint64 // notification publish errors

	// Current monitor state, see posture.State
	State atomic.Int32

	calibrations *prometheus.CounterVec
	registry     *prometheus.Registry
}

// New creates a new Metrics instance with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_total",
			Help:      "Completed calibration windows by result",
		}, []string{"result"}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.calibrations,
	)

	m.counterFunc("ingest_frames_total", "Frames accepted from detectors", &m.FramesIngested)
	m.counterFunc("frames_processed_total", "Frames passed to the monitor", &m.FramesProcessed)
	m.counterFunc("frames_no_person_total", "Frames with no person detected", &m.NoPersonFrames)
	m.counterFunc("frames_good_total", "Frames classified as good posture", &m.GoodFrames)
	m.counterFunc("frames_bad_total", "Frames classified as bad posture", &m.BadFrames)
	m.counterFunc("alerts_total", "Posture alerts fired", &m.AlertsFired)
	m.counterFunc("alert_publish_errors_total", "Alerts that failed to publish", &m.AlertsFailed)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Monitor state (0=idle, 1=calibrating, 2=monitoring)",
		},
		func() float64 { return float64(m.State.Load()) },
	))
}

func (m *Metrics) counterFunc(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		func() float64 { return float64(v.Load()) },
	))
}

// ObserveOutcome records one processed frame. The state gauge is owned by
// SetState; outcomes may carry a state that has since changed.
func (m *Metrics) ObserveOutcome(out posture.Outcome) {
	m.FramesProcessed.Add(1)
	switch out.Class {
	case posture.Unknown:
		m.NoPersonFrames.Add(1)
	case posture.Good:
		m.GoodFrames.Add(1)
	case posture.Bad:
		m.BadFrames.Add(1)
	}
	if out.Alert != nil {
		m.AlertsFired.Add(1)
	}
}

// ObserveCalibration records a finished capture window.
func (m *Metrics) ObserveCalibration(res posture.CalibrationResult) {
	result := ResultSuccess
	if !res.Success {
		result = ResultTimeout
	}
	m.calibrations.WithLabelValues(result).Inc()
}

// SetState records the current monitor state.
func (m *Metrics) SetState(s posture.State) {
	m.State.Store(int32(s))
}

// GaugeFunc registers a gauge read from fn at scrape time, for components
// that keep their own statistics.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
