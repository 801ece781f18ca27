package posture

import "time"

// Default tunables.
const (
	DefaultWindowSize        = 5
	DefaultCalibrationFrames = 50
	DefaultSustainDuration   = 20 * time.Second
	DefaultAlertCooldown     = 10 * time.Second
)

// Config holds all tunable parameters for posture analysis.
type Config struct {
	// Smoothing window capacity per coordinate.
	WindowSize int

	// Frames averaged into the nose depth baseline.
	CalibrationFrames int

	// Classification thresholds.
	Thresholds Thresholds

	// Bad posture must persist this long before the first alert.
	SustainDuration time.Duration

	// Minimum gap between two alerts.
	AlertCooldown time.Duration
}

// DefaultConfig returns the thresholds and timings the monitor ships with.
func DefaultConfig() Config {
	return Config{
		WindowSize:        DefaultWindowSize,
		CalibrationFrames: DefaultCalibrationFrames,
		Thresholds:        DefaultThresholds(),
		SustainDuration:   DefaultSustainDuration,
		AlertCooldown:     DefaultAlertCooldown,
	}
}
