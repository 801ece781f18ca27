package statesync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posture/internal/log"
)

// DefaultHealthInterval is how often HealthPoller checks the remote.
const DefaultHealthInterval = 10 * time.Second

// HealthPoller periodically checks remote connectivity on its own
// goroutine. It never touches posture state.
type HealthPoller struct {
	checker  HealthChecker
	interval time.Duration
	onChange func(connected bool)
	logger   *slog.Logger

	connected atomic.Bool
	checks    atomic.Uint64
}

// NewHealthPoller creates a poller. onChange is called after every check
// with the current connectivity, and may be nil.
func NewHealthPoller(checker HealthChecker, interval time.Duration, onChange func(connected bool)) *HealthPoller {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthPoller{
		checker:  checker,
		interval: interval,
		onChange: onChange,
		logger:   log.Component("health"),
	}
}

// Connected returns the result of the last check.
func (h *HealthPoller) Connected() bool {
	return h.connected.Load()
}

// Checks returns how many checks ran.
func (h *HealthPoller) Checks() uint64 {
	return h.checks.Load()
}

// Run checks immediately and then every interval until ctx is cancelled.
func (h *HealthPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *HealthPoller) check(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	err := h.checker.Health(cctx)
	if ctx.Err() != nil {
		return
	}
	connected := err == nil
	prev := h.connected.Swap(connected)
	h.checks.Add(1)

	if prev != connected || h.checks.Load() == 1 {
		if connected {
			h.logger.Info("remote reachable")
		} else {
			h.logger.Warn("remote unreachable", "error", err)
		}
	}
	if h.onChange != nil {
		h.onChange(connected)
	}
}
