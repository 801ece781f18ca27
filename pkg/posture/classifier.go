package posture

import "math"

// Default thresholds, in normalized landmark units.
const (
	DefaultSlouchThreshold   = 0.05
	DefaultLeanThreshold     = -0.10
	DefaultNeckTiltThreshold = 0.12
)

// Thresholds are the fixed rule parameters of the classifier.
type Thresholds struct {
	// Shoulder height difference above which the subject is slouching.
	Slouch float64 `json:"slouch"`

	// Nose depth change (relative to baseline) below which the subject is
	// leaning forward. Negative: closer to the camera.
	Lean float64 `json:"lean"`

	// Asymmetry of nose-to-shoulder horizontal distances above which the
	// neck is tilted.
	NeckTilt float64 `json:"neck_tilt"`
}

// DefaultThresholds returns the shipped rule table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Slouch:   DefaultSlouchThreshold,
		Lean:     DefaultLeanThreshold,
		NeckTilt: DefaultNeckTiltThreshold,
	}
}

// Inputs are the per-frame values the classifier reads. Horizontal
// coordinates are smoothed; heights and depth are raw.
type Inputs struct {
	NoseX          float64
	LeftShoulderX  float64
	RightShoulderX float64
	LeftShoulderY  float64
	RightShoulderY float64
	NoseZ          float64
}

// Measurements are the derived quantities the rules compare.
type Measurements struct {
	ShoulderDiff float64 `json:"shoulder_diff"`
	ZDiff        float64 `json:"z_diff"`
	XDiff        float64 `json:"x_diff"`
}

// Measure derives the rule quantities from inputs and the depth baseline.
func Measure(in Inputs, baseline float64) Measurements {
	leftDX := math.Abs(in.NoseX - in.LeftShoulderX)
	rightDX := math.Abs(in.NoseX - in.RightShoulderX)
	return Measurements{
		ShoulderDiff: math.Abs(in.LeftShoulderY - in.RightShoulderY),
		ZDiff:        in.NoseZ - baseline,
		XDiff:        math.Abs(leftDX - rightDX),
	}
}

// Label applies the ordered rules; the first match wins.
func (t Thresholds) Label(m Measurements) Label {
	switch {
	case m.ShoulderDiff > t.Slouch:
		return Slouching
	case m.ZDiff < t.Lean:
		return LeaningForward
	case m.XDiff > t.NeckTilt:
		return NeckTilt
	default:
		return GoodPosture
	}
}

// Classify measures and labels one frame.
func (t Thresholds) Classify(in Inputs, baseline float64) Label {
	return t.Label(Measure(in, baseline))
}
