package statesync

import (
	"context"
	"errors"

	"github.com/teslashibe/go-posture/pkg/session"
)

// Notifier receives local posture changes and session lifecycle events.
type Notifier interface {
	Push(ctx context.Context, u session.Update) error
	NotifyStart(ctx context.Context) error
	NotifyStop(ctx context.Context) error
}

// HealthChecker reports whether a remote is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Multi fans every call out to all notifiers and joins their errors.
type Multi []Notifier

// Push implements Notifier.
func (m Multi) Push(ctx context.Context, u session.Update) error {
	return m.each(func(n Notifier) error { return n.Push(ctx, u) })
}

// NotifyStart implements Notifier.
func (m Multi) NotifyStart(ctx context.Context) error {
	return m.each(func(n Notifier) error { return n.NotifyStart(ctx) })
}

// NotifyStop implements Notifier.
func (m Multi) NotifyStop(ctx context.Context) error {
	return m.each(func(n Notifier) error { return n.NotifyStop(ctx) })
}

func (m Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
