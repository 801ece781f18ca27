// Package monitor runs the frame pipeline: capture, landmark detection,
// posture analysis, alerting and session bookkeeping, one frame at a time
// on a single worker goroutine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/alert"
	"github.com/teslashibe/go-posture/pkg/capture"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/landmarks"
	"github.com/teslashibe/go-posture/pkg/metrics"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/session"
)

// errCapture marks failures reading from the camera, as opposed to
// detection failures.
var errCapture = errors.New("monitor: capture failed")

// Syncer queues remote calls without blocking. statesync.Dispatcher
// implements it.
type Syncer interface {
	Push(u session.Update) bool
	NotifyStart() bool
	NotifyStop() bool
}

// Publisher broadcasts live events. hub.Hub implements it.
type Publisher interface {
	Publish(t hub.EventType, data any) error
}

// run is one start-to-stop pass of the worker.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}

	// stopping is set once the worker has left its loop or Stop was
	// called; the run no longer owns an active session.
	stopping atomic.Bool

	// Set by the worker before done is closed.
	result *session.Session
	err    error
}

// Monitor owns the frame worker and drives a session Aggregator.
type Monitor struct {
	cfg      Config
	agg      *session.Aggregator
	open     capture.Opener
	detector landmarks.Detector

	sink    alert.Sink
	syncer  Syncer
	pub     Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	datalog *session.DataLog

	mu   sync.Mutex
	cur  *run
	last FrameStatus
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithConfig replaces DefaultConfig().
func WithConfig(cfg Config) Option {
	return func(m *Monitor) { m.cfg = cfg }
}

// WithAlertSink sets where fired alerts go.
func WithAlertSink(s alert.Sink) Option {
	return func(m *Monitor) { m.sink = s }
}

// WithSyncer mirrors updates and lifecycle events to a remote store.
func WithSyncer(s Syncer) Option {
	return func(m *Monitor) { m.syncer = s }
}

// WithPublisher streams per-frame status to live subscribers.
func WithPublisher(p Publisher) Option {
	return func(m *Monitor) { m.pub = p }
}

// WithMetrics records pipeline counters.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates an idle Monitor.
func New(agg *session.Aggregator, open capture.Opener, detector landmarks.Detector, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      DefaultConfig(),
		agg:      agg,
		open:     open,
		detector: detector,
		now:      time.Now,
		datalog:  session.NewDataLog(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Component("monitor")
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}
	return m
}

// Start opens the camera, begins a session and launches the worker. The
// camera is opened first so a missing device creates no session. A Start
// that arrives while the previous run is still draining waits for it.
func (m *Monitor) Start(ctx context.Context) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.cur != nil {
		r := m.cur
		if !r.stopping.Load() {
			sess, _ := m.agg.ActiveSession()
			return sess, session.ErrAlreadyMonitoring
		}
		m.mu.Unlock()
		select {
		case <-r.done:
		case <-ctx.Done():
			m.mu.Lock()
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}

	src, err := m.open(ctx)
	if err != nil {
		m.logger.Error("camera open failed", "error", err)
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
		}
		return nil, err
	}

	sess, err := m.agg.Start(ctx)
	resumed := errors.Is(err, session.ErrAlreadyMonitoring)
	if err != nil && !resumed {
		src.Close()
		return sess, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, done: make(chan struct{})}
	m.cur = r

	m.metrics.SetMonitoring(true)
	if resumed {
		// A session restored from the store has no worker yet.
		m.logger.Info("resuming session", "session_id", sess.ID)
	} else {
		if m.syncer != nil {
			m.syncer.NotifyStart()
		}
		m.publish(hub.EventSession, SessionEvent{Event: "start", SessionID: sess.ID, Time: sess.StartTime})
		m.logger.Info("monitoring started", "session_id", sess.ID)
	}

	go m.work(runCtx, r, src)
	return sess, nil
}

// Stop cancels the worker and waits for it to finish the current frame,
// close the session, export the data log and release the camera. When no
// worker is running, an active session left over from a previous process
// is closed directly.
func (m *Monitor) Stop(ctx context.Context) (*session.Session, error) {
	m.mu.Lock()
	r := m.cur
	m.mu.Unlock()

	if r == nil {
		sess, err := m.agg.Stop(ctx)
		if err == nil {
			m.afterStop(sess)
		}
		return sess, err
	}

	r.stopping.Store(true)
	r.cancel()
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until the current worker, if any, has exited.
func (m *Monitor) Wait() {
	m.mu.Lock()
	r := m.cur
	m.mu.Unlock()
	if r != nil {
		<-r.done
	}
}

// Running reports whether the worker is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil
}

// Status returns the most recent frame status.
func (m *Monitor) Status() FrameStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// DataLog returns the per-frame log.
func (m *Monitor) DataLog() *session.DataLog {
	return m.datalog
}

// Aggregator returns the session aggregator the monitor drives.
func (m *Monitor) Aggregator() *session.Aggregator {
	return m.agg
}

// Monitoring reports whether a session is active.
func (m *Monitor) Monitoring() bool {
	return m.agg.Monitoring()
}

// Snapshot returns a deep copy of the aggregate state.
func (m *Monitor) Snapshot() session.State {
	return m.agg.Snapshot()
}

// History returns sessions newest first.
func (m *Monitor) History() []*session.Session {
	return m.agg.History()
}

// Stats summarizes completed sessions.
func (m *Monitor) Stats() session.Stats {
	return m.agg.Stats()
}

// Apply merges a remote update into the aggregate state.
func (m *Monitor) Apply(ctx context.Context, u session.Update) error {
	return m.agg.Apply(ctx, u)
}

func (m *Monitor) work(ctx context.Context, r *run, src capture.Source) {
	analyzer := posture.NewAnalyzer(m.cfg.Posture)
	scheduler := posture.NewAlertScheduler(m.cfg.Posture.SustainDuration, m.cfg.Posture.AlertCooldown)

	defer func() {
		r.stopping.Store(true)
		r.result, r.err = m.drain(src)
		m.mu.Lock()
		if m.cur == r {
			m.cur = nil
		}
		m.mu.Unlock()
		close(r.done)
	}()

	failures, captureFailures := 0, 0
	for {
		if ctx.Err() != nil {
			return
		}
		started := m.now()

		err := m.step(ctx, src, analyzer, scheduler)
		switch {
		case err == nil:
			failures, captureFailures = 0, 0
		case ctx.Err() != nil:
			return
		case errors.Is(err, capture.ErrClosed), errors.Is(err, landmarks.ErrReplayExhausted):
			m.logger.Info("frame source finished", "reason", err)
			return
		default:
			failures++
			if errors.Is(err, errCapture) {
				captureFailures++
			} else {
				captureFailures = 0
			}
			m.metrics.FrameErrors.Add(1)
			m.logger.Warn("frame failed", "error", err, "consecutive", failures)
			if m.cfg.MaxCaptureErrors > 0 && captureFailures >= m.cfg.MaxCaptureErrors {
				m.logger.Error("camera stopped delivering frames, stopping", "consecutive", captureFailures)
				return
			}
			if m.cfg.MaxConsecutiveErrors > 0 && failures >= m.cfg.MaxConsecutiveErrors {
				m.logger.Error("too many frame errors, stopping", "consecutive", failures)
				return
			}
			if !sleepCtx(ctx, m.cfg.ErrorBackoff) {
				return
			}
			continue
		}

		if wait := m.cfg.FrameInterval - m.now().Sub(started); wait > 0 {
			if !sleepCtx(ctx, wait) {
				return
			}
		}
	}
}

// step processes exactly one frame. Once a frame has been read it is
// finished even if ctx is cancelled meanwhile.
func (m *Monitor) step(ctx context.Context, src capture.Source, analyzer *posture.Analyzer, scheduler *posture.AlertScheduler) error {
	frame, err := src.Read(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, capture.ErrClosed) {
			return err
		}
		return fmt.Errorf("%w: %w", errCapture, err)
	}
	m.metrics.FramesRead.Add(1)
	started := m.now()

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.frameTimeout())
	defer cancel()

	pose, err := m.detector.Detect(fctx, frame.JPEG)
	if err != nil {
		return err
	}

	res := analyzer.Process(pose)
	status := FrameStatus{
		Seq:                  frame.Seq,
		Time:                 frame.Time,
		Status:               res.Status,
		CalibrationCollected: res.CalibrationCollected,
		CalibrationTotal:     res.CalibrationTotal,
	}
	if status.Time.IsZero() {
		status.Time = started
	}

	switch res.Status {
	case posture.StatusNoData:
		m.metrics.FramesNoBody.Add(1)
	case posture.StatusCalibrating:
		m.metrics.FramesCalibrated.Add(1)
		if res.CalibrationCollected == res.CalibrationTotal {
			baseline, _ := analyzer.Baseline()
			m.logger.Info("calibration complete", "baseline_z", baseline, "frames", res.CalibrationTotal)
		}
	case posture.StatusClassified:
		m.classified(fctx, &status, res, scheduler)
	}

	st := m.agg.Snapshot()
	status.GoodCount, status.BadCount, status.Score = st.GoodCount, st.BadCount, st.Score()

	m.mu.Lock()
	m.last = status
	m.mu.Unlock()

	m.publish(hub.EventFrame, status)
	m.metrics.UpdateProcessLatency(m.now().Sub(started))
	return nil
}

func (m *Monitor) classified(ctx context.Context, status *FrameStatus, res posture.Result, scheduler *posture.AlertScheduler) {
	label := res.Label
	meas := res.Measurements
	status.Posture = label
	status.Measurements = &meas

	st := m.agg.Record(ctx, label)
	m.datalog.Append(status.Time, label)
	m.metrics.ObservePosture(label)
	if m.syncer != nil {
		m.syncer.Push(session.FrameUpdate(st, label))
	}

	now := m.now()
	if !scheduler.Observe(label, now) {
		return
	}

	status.Alert = true
	m.agg.RecordAlert(ctx)
	m.metrics.AlertsFired.Add(1)

	since, _ := scheduler.EpisodeStart()
	a := alert.Alert{Label: label, Since: since, Time: now}
	if m.sink != nil {
		if err := m.sink.Notify(ctx, a); err != nil {
			m.logger.Warn("alert delivery failed", "error", err)
		}
	}
	m.publish(hub.EventAlert, a)
}

// drain runs after the loop exits: close the session, export the data log,
// tell the remote, release the camera.
func (m *Monitor) drain(src capture.Source) (*session.Session, error) {
	ctx := context.Background()

	sess, err := m.agg.Stop(ctx)
	if err != nil && !errors.Is(err, session.ErrNotMonitoring) {
		m.logger.Error("session stop failed", "error", err)
	}
	if err == nil {
		m.afterStop(sess)
	}

	if cerr := src.Close(); cerr != nil {
		m.logger.Warn("camera release failed", "error", cerr)
	}
	return sess, err
}

func (m *Monitor) afterStop(sess *session.Session) {
	if path := m.cfg.DataLogPath; path != "" && m.datalog.Len() > 0 {
		if err := m.datalog.Export(path); err != nil {
			m.logger.Warn("data log export failed", "path", path, "error", err)
		} else {
			m.logger.Info("data log exported", "path", path, "frames", m.datalog.Len())
		}
	}
	if m.syncer != nil {
		m.syncer.NotifyStop()
	}
	m.metrics.SessionStopped(sess.PostureScore)

	var end time.Time
	if sess.EndTime != nil {
		end = *sess.EndTime
	}
	m.publish(hub.EventSession, SessionEvent{Event: "stop", SessionID: sess.ID, Time: end, PostureScore: sess.PostureScore})
	m.logger.Info("monitoring stopped", "session_id", sess.ID, "score", sess.PostureScore)
}

func (m *Monitor) publish(t hub.EventType, data any) {
	if m.pub == nil {
		return
	}
	if err := m.pub.Publish(t, data); err != nil {
		m.logger.Debug("publish failed", "type", t, "error", err)
	}
}

func (m *Monitor) frameTimeout() time.Duration {
	if m.cfg.FrameTimeout > 0 {
		return m.cfg.FrameTimeout
	}
	return DefaultConfig().FrameTimeout
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
