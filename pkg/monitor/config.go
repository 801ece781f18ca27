package monitor

import (
	"time"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// Config holds all tunable parameters for the frame pipeline.
type Config struct {
	// Posture analysis and alert timing
	Posture posture.Config

	// Timing
	FrameInterval time.Duration // Minimum time per frame; 0 = as fast as the source delivers
	ErrorBackoff  time.Duration // Pause after a failed capture or detection
	FrameTimeout  time.Duration // Bound on detection for one frame

	// MaxConsecutiveErrors ends the run after this many failed frames in a
	// row; 0 never gives up.
	MaxConsecutiveErrors int

	// MaxCaptureErrors ends the run after this many camera reads in a row
	// fail, e.g. an unplugged device; 0 never gives up.
	MaxCaptureErrors int

	// DataLogPath is where the per-frame CSV is written on stop; empty
	// disables the export.
	DataLogPath string
}

// DefaultConfig returns the recommended pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Posture:              posture.DefaultConfig(),
		FrameInterval:        66 * time.Millisecond, // ~15 fps
		ErrorBackoff:         500 * time.Millisecond,
		FrameTimeout:         5 * time.Second,
		MaxConsecutiveErrors: 0,
		MaxCaptureErrors:     20, // ~10s of retries at ErrorBackoff
		DataLogPath:          "posture_data.csv",
	}
}
