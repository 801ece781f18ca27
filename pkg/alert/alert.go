// Package alert delivers bad-posture alerts to the user.
package alert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/posture"
)

// Alert describes one fired alert.
type Alert struct {
	Label posture.Label `json:"posture"`
	Since time.Time     `json:"since"` // start of the bad-posture episode
	Time  time.Time     `json:"time"`
}

// Sustained returns how long the bad posture had lasted.
func (a Alert) Sustained() time.Duration {
	return a.Time.Sub(a.Since)
}

// Sink receives alerts. Implementations must not block the caller for
// long; the frame worker calls Notify inline.
type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a Alert) error

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, a Alert) error {
	return f(ctx, a)
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes alerts to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink; a nil logger uses the alert component logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = log.Component("alert")
	}
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(ctx context.Context, a Alert) error {
	s.logger.Warn("bad posture alert",
		"posture", string(a.Label),
		"sustained", a.Sustained().Round(time.Second))
	return nil
}
