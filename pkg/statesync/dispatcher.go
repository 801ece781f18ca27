package statesync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/session"
)

type jobKind int

const (
	jobPush jobKind = iota
	jobStart
	jobStop
)

func (k jobKind) String() string {
	switch k {
	case jobPush:
		return "update"
	case jobStart:
		return "start"
	case jobStop:
		return "stop"
	default:
		return "unknown"
	}
}

type job struct {
	kind   jobKind
	update session.Update
}

// ResultFunc observes the outcome of every remote call.
type ResultFunc func(op string, err error)

// Dispatcher moves remote calls off the frame worker. Calls are made in
// order by a single goroutine. Updates are last-write-wins, so a queued
// update is replaced by a newer one instead of piling up behind a slow
// remote; start and stop are always kept. Failures are logged and
// forgotten.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
	onResult ResultFunc

	mu      sync.Mutex
	pending []job
	closed  bool
	wake    chan struct{}
	done    chan struct{}

	dropped atomic.Uint64
	merged  atomic.Uint64
	failed  atomic.Uint64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCallTimeout bounds each remote call.
func WithCallTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithResultFunc registers an observer, for metrics.
func WithResultFunc(fn ResultFunc) DispatcherOption {
	return func(d *Dispatcher) { d.onResult = fn }
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher starts the drain goroutine. Call Close to stop it.
func NewDispatcher(n Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: n,
		timeout:  DefaultTimeout,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.Component("dispatcher")
	}

	go d.run()
	return d
}

// Push queues a state update, replacing one that has not been sent yet.
func (d *Dispatcher) Push(u session.Update) bool {
	return d.enqueue(job{kind: jobPush, update: u})
}

// NotifyStart queues a start notification.
func (d *Dispatcher) NotifyStart() bool {
	return d.enqueue(job{kind: jobStart})
}

// NotifyStop queues a stop notification.
func (d *Dispatcher) NotifyStop() bool {
	return d.enqueue(job{kind: jobStop})
}

// Dropped returns how many jobs were refused because the dispatcher was
// closed.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Merged returns how many queued updates were replaced by a newer one.
func (d *Dispatcher) Merged() uint64 {
	return d.merged.Load()
}

// Pending returns how many calls are waiting to be made.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Failed returns how many remote calls returned an error.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Close stops accepting work and waits for queued calls to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
	<-d.done
}

func (d *Dispatcher) enqueue(j job) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.drop(j, ErrClosed)
		return false
	}
	if n := len(d.pending); j.kind == jobPush && n > 0 && d.pending[n-1].kind == jobPush {
		d.pending[n-1] = j
		d.merged.Add(1)
	} else {
		d.pending = append(d.pending, j)
	}
	d.mu.Unlock()

	d.signal()
	return true
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) drop(j job, reason error) {
	d.dropped.Add(1)
	d.logger.Debug("remote call dropped", "op", j.kind.String(), "reason", reason)
	if d.onResult != nil {
		d.onResult(j.kind.String(), reason)
	}
}

// next blocks until a job is pending. It reports false once the
// dispatcher is closed and drained.
func (d *Dispatcher) next() (job, bool) {
	for {
		d.mu.Lock()
		if len(d.pending) > 0 {
			j := d.pending[0]
			d.pending[0] = job{}
			d.pending = d.pending[1:]
			d.mu.Unlock()
			return j, true
		}
		closed := d.closed
		d.mu.Unlock()

		if closed {
			return job{}, false
		}
		<-d.wake
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		j, ok := d.next()
		if !ok {
			return
		}
		d.call(j)
	}
}

func (d *Dispatcher) call(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	switch j.kind {
	case jobPush:
		err = d.notifier.Push(ctx, j.update)
	case jobStart:
		err = d.notifier.NotifyStart(ctx)
	case jobStop:
		err = d.notifier.NotifyStop(ctx)
	}

	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("remote sync failed", "op", j.kind.String(), "error", err)
	}
	if d.onResult != nil {
		d.onResult(j.kind.String(), err)
	}
}
