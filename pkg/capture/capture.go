// Package capture reads frames from a camera and hands them on as JPEG.
package capture

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for frame capture.
var (
	// ErrDeviceUnavailable is returned when the camera cannot be opened.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")

	// ErrEmptyFrame is returned when the device produced no image.
	ErrEmptyFrame = errors.New("capture: empty frame")

	// ErrClosed is returned when reading from a closed source.
	ErrClosed = errors.New("capture: source closed")
)

// Frame is one captured image.
type Frame struct {
	JPEG   []byte
	Time   time.Time
	Seq    uint64
	Width  int
	Height int
}

// Source produces frames. Read blocks until the next frame is available.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Opener opens a fresh Source for each monitoring run.
type Opener func(ctx context.Context) (Source, error)

// Config holds camera settings.
type Config struct {
	// Device is a camera index ("0") or a file path / stream URL.
	Device    string `json:"device"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Framerate int    `json:"framerate"`
	Quality   int    `json:"quality"` // JPEG quality 1-100
}

// DefaultConfig returns settings for a typical laptop webcam.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 15,
		Quality:   80,
	}
}

// Validate clamps out-of-range values to defaults.
func (c *Config) Validate() {
	d := DefaultConfig()
	if c.Device == "" {
		c.Device = d.Device
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if c.Framerate <= 0 {
		c.Framerate = d.Framerate
	}
	if c.Quality < 1 || c.Quality > 100 {
		c.Quality = d.Quality
	}
}
