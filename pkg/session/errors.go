package session

import "errors"

// Sentinel errors for session lifecycle and updates.
var (
	// ErrAlreadyMonitoring is returned by Start while a session is active.
	ErrAlreadyMonitoring = errors.New("session: already monitoring")

	// ErrNotMonitoring is returned by Stop while idle.
	ErrNotMonitoring = errors.New("session: not monitoring")

	// ErrInvalidUpdate is returned when a sparse update carries bad values.
	ErrInvalidUpdate = errors.New("session: invalid update")
)
