package statesync

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote synchronization.
var (
	// ErrNotConnected is returned when the MQTT broker connection is down.
	ErrNotConnected = errors.New("statesync: not connected")

	// ErrUnhealthy is returned when /health answers with a non-healthy status.
	ErrUnhealthy = errors.New("statesync: remote unhealthy")

	// ErrClosed is returned when work is queued on a closed Dispatcher.
	ErrClosed = errors.New("statesync: dispatcher closed")
)

// SyncError describes a failed remote call.
type SyncError struct {
	// Op is the remote operation: "update", "start", "stop" or "health".
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is the error message from the remote, if any.
	Message string

	// Err is the transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("statesync %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("statesync %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("statesync %s: status %d", e.Op, e.StatusCode)
	}
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsServerError returns true for HTTP 5xx.
func (e *SyncError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
