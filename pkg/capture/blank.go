package capture

import (
	"context"
	"sync/atomic"
	"time"
)

// BlankSource yields imageless frames without touching a device. It drives
// the pipeline when landmarks come from a recording instead of a camera.
type BlankSource struct {
	seq    atomic.Uint64
	closed atomic.Bool
}

// BlankOpener returns an Opener that never fails.
func BlankOpener() Opener {
	return func(ctx context.Context) (Source, error) {
		return &BlankSource{}, nil
	}
}

// Read returns the next empty frame.
func (s *BlankSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.closed.Load() {
		return Frame{}, ErrClosed
	}
	return Frame{Seq: s.seq.Add(1), Time: time.Now()}, nil
}

// Close marks the source closed.
func (s *BlankSource) Close() error {
	s.closed.Store(true)
	return nil
}
