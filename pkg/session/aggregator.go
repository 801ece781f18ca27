package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/posture"
)

// Aggregator owns the aggregate State. Every mutation and every save
// happens under one mutex, so readers never see half an update.
type Aggregator struct {
	mu    sync.Mutex
	state State

	// active is the in-flight session, nil while idle. It always points at
	// the last element of state.Sessions when set.
	active *Session

	store    Store
	observer Observer
	logger   *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Observer receives session and posture events as they are committed.
// metrics.Metrics implements it.
type Observer interface {
	ObservePosture(l posture.Label)
	SetMonitoring(active bool)
	SessionStopped(score int)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithStore persists state after every mutation.
func WithStore(store Store) Option {
	return func(a *Aggregator) { a.store = store }
}

// WithObserver reports starts, stops and recorded postures to o.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithIDGenerator replaces the uuid session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(a *Aggregator) { a.newID = gen }
}

// NewAggregator takes ownership of initial. A persisted active session is
// resumed when the state says monitoring and the last session is open.
func NewAggregator(initial State, opts ...Option) *Aggregator {
	a := &Aggregator{
		state: initial.Clone(),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.Component("session")
	}

	a.state.normalize()
	if a.state.IsMonitoring {
		if n := len(a.state.Sessions); n > 0 && a.state.Sessions[n-1].Active() {
			a.active = a.state.Sessions[n-1]
			if a.observer != nil {
				a.observer.SetMonitoring(true)
			}
		} else {
			a.state.IsMonitoring = false
		}
	}
	return a
}

// timestamp returns now in UTC without a monotonic reading, so it survives
// a JSON round trip unchanged.
func (a *Aggregator) timestamp() time.Time {
	return a.now().UTC().Round(0)
}

// Start opens a new session. It returns ErrAlreadyMonitoring, and creates
// nothing, when a session is already active.
func (a *Aggregator) Start(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		return a.active.Clone(), ErrAlreadyMonitoring
	}

	sess := &Session{
		ID:                a.newID(),
		StartTime:         a.timestamp(),
		IncorrectPostures: []posture.Label{},
		PostureScore:      DefaultScore,
	}
	a.state.Sessions = append(a.state.Sessions, sess)
	a.state.IsMonitoring = true
	a.active = sess

	a.logger.Info("session started", "session_id", sess.ID)
	if a.observer != nil {
		a.observer.SetMonitoring(true)
	}
	a.persistLocked(ctx)
	return sess.Clone(), nil
}

// Stop closes the active session and scores it from the aggregate
// counters. It returns ErrNotMonitoring while idle.
func (a *Aggregator) Stop(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == nil {
		a.state.IsMonitoring = false
		return nil, ErrNotMonitoring
	}

	end := a.timestamp()
	sess := a.active
	sess.EndTime = &end
	sess.PostureScore = a.state.Score()
	a.state.IsMonitoring = false
	a.active = nil

	a.logger.Info("session stopped",
		"session_id", sess.ID,
		"score", sess.PostureScore,
		"bad_frames", sess.TotalAlerts,
		"alerts_fired", sess.AlertsFired,
		"duration", sess.Duration(end).Round(time.Second))
	if a.observer != nil {
		a.observer.SessionStopped(sess.PostureScore)
	}
	a.persistLocked(ctx)
	return sess.Clone(), nil
}

// Record counts one classified frame.
func (a *Aggregator) Record(ctx context.Context, label posture.Label) State {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.recordLocked(label)
	a.persistLocked(ctx)
	return a.state.Clone()
}

func (a *Aggregator) recordLocked(label posture.Label) {
	if label.IsGood() {
		a.state.GoodCount++
		a.state.PostureHistory = append(a.state.PostureHistory, 1)
	} else {
		a.state.BadCount++
		a.state.PostureHistory = append(a.state.PostureHistory, 0)
	}
	a.state.PostureHistory = trimHistory(a.state.PostureHistory)
	a.setPostureLocked(label)
	if a.observer != nil {
		a.observer.ObservePosture(label)
	}
}

// setPostureLocked updates the latest label and the active session's
// bad-frame bookkeeping.
func (a *Aggregator) setPostureLocked(label posture.Label) {
	a.state.LatestPosture = label
	if a.active != nil && !label.IsGood() {
		a.active.TotalAlerts++
		a.active.addIncorrect(label)
	}
}

// RecordAlert counts an alert fired by the alert scheduler against the
// active session. It is a no-op while idle.
func (a *Aggregator) RecordAlert(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == nil {
		return
	}
	a.active.AlertsFired++
	a.persistLocked(ctx)
}

// Apply merges a sparse update from a remote producer.
func (a *Aggregator) Apply(ctx context.Context, u Update) error {
	if err := u.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if u.GoodCount != nil {
		a.state.GoodCount = *u.GoodCount
	}
	if u.BadCount != nil {
		a.state.BadCount = *u.BadCount
	}
	if u.PostureHistory != nil {
		a.state.PostureHistory = trimHistory(append(make([]int, 0, len(u.PostureHistory)), u.PostureHistory...))
	}
	if u.Posture != nil {
		a.setPostureLocked(*u.Posture)
		if a.observer != nil {
			a.observer.ObservePosture(*u.Posture)
		}
	}

	a.persistLocked(ctx)
	return nil
}

// Snapshot returns a deep copy of the current state.
func (a *Aggregator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Monitoring reports whether a session is active.
func (a *Aggregator) Monitoring() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

// ActiveSession returns a copy of the active session, if any.
func (a *Aggregator) ActiveSession() (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return nil, false
	}
	return a.active.Clone(), true
}

// History returns all sessions, newest first.
func (a *Aggregator) History() []*Session {
	a.mu.Lock()
	sessions := a.state.Clone().Sessions
	a.mu.Unlock()

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions
}

// Stats summarizes completed sessions.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ComputeStats(a.state.Sessions, a.now())
}

// Save persists the current state explicitly.
func (a *Aggregator) Save(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	return a.store.Save(ctx, a.state)
}

// persistLocked saves and logs failures. Data loss on a failed save is
// accepted; the in-memory state stays authoritative.
func (a *Aggregator) persistLocked(ctx context.Context) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(ctx, a.state); err != nil {
		a.logger.Warn("state save failed", "error", err)
	}
}
