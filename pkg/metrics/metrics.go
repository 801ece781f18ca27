// Package metrics exposes pipeline and session counters in Prometheus
// format.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Frame pipeline
	FramesRead       atomic.Uint64
	FramesNoBody     atomic.Uint64
	FramesCalibrated atomic.Uint64
	FrameErrors      atomic.Uint64
	ProcessLatencyMs atomic.Uint64

	// Alerts and sessions
	AlertsFired    atomic.Uint64
	Monitoring     atomic.Uint64 // 0 = idle, 1 = active
	SessionScore   atomic.Uint64
	SessionsClosed atomic.Uint64

	// Remote sync
	RemoteConnected atomic.Uint64 // 0 = unreachable, 1 = reachable

	postures *prometheus.CounterVec
	syncs    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		postures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "posture_frames_classified_total",
			Help: "Classified frames by posture label",
		}, []string{"posture"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "posture_remote_sync_total",
			Help: "Remote sync calls by operation and result",
		}, []string{"op", "result"}),
	}
	for _, l := range posture.Labels {
		m.postures.WithLabelValues(string(l))
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	m.registry.MustRegister(m.postures, m.syncs)

	gauge := func(name, help string, v *atomic.Uint64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(v.Load()) },
		))
	}

	gauge("posture_frames_read_total", "Total frames read from the camera", &m.FramesRead)
	gauge("posture_frames_no_body_total", "Frames where no body was detected", &m.FramesNoBody)
	gauge("posture_frames_calibration_total", "Frames consumed by calibration", &m.FramesCalibrated)
	gauge("posture_frame_errors_total", "Frames that failed capture or detection", &m.FrameErrors)
	gauge("posture_process_latency_ms", "Last frame processing latency in milliseconds", &m.ProcessLatencyMs)
	gauge("posture_alerts_fired_total", "Bad posture alerts fired", &m.AlertsFired)
	gauge("posture_monitoring_active", "Monitoring active (0=idle, 1=active)", &m.Monitoring)
	gauge("posture_session_score", "Score of the last completed session", &m.SessionScore)
	gauge("posture_sessions_completed_total", "Sessions stopped", &m.SessionsClosed)
	gauge("posture_remote_connected", "Remote store reachable (0=no, 1=yes)", &m.RemoteConnected)
}

// ObservePosture counts one classified frame.
func (m *Metrics) ObservePosture(l posture.Label) {
	m.postures.WithLabelValues(string(l)).Inc()
}

// ObserveSync counts one remote call. It matches statesync.ResultFunc.
func (m *Metrics) ObserveSync(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.syncs.WithLabelValues(op, result).Inc()
}

// UpdateProcessLatency records how long the last frame took.
func (m *Metrics) UpdateProcessLatency(d time.Duration) {
	m.ProcessLatencyMs.Store(uint64(d.Milliseconds()))
}

// SetMonitoring records whether a session is active.
func (m *Metrics) SetMonitoring(active bool) {
	m.Monitoring.Store(boolToUint(active))
}

// SetRemoteConnected records remote reachability.
func (m *Metrics) SetRemoteConnected(ok bool) {
	m.RemoteConnected.Store(boolToUint(ok))
}

// SessionStopped records a completed session's score.
func (m *Metrics) SessionStopped(score int) {
	m.SessionsClosed.Add(1)
	if score < 0 {
		score = 0
	}
	m.SessionScore.Store(uint64(score))
	m.SetMonitoring(false)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
