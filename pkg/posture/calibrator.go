package posture

// Calibrator collects nose depth samples until it can fix a baseline.
// The transition to calibrated happens once and is never reversed; build a
// new Calibrator to recalibrate.
type Calibrator struct {
	frames     int
	samples    []float64
	baseline   float64
	calibrated bool
}

// NewCalibrator needs frames samples before producing a baseline.
// Values below 1 are raised to 1.
func NewCalibrator(frames int) *Calibrator {
	if frames < 1 {
		frames = 1
	}
	return &Calibrator{
		frames:  frames,
		samples: make([]float64, 0, frames),
	}
}

// Observe records a nose depth sample and reports whether the baseline is
// available. Samples arriving after calibration are ignored.
func (c *Calibrator) Observe(noseZ float64) bool {
	if c.calibrated {
		return true
	}

	c.samples = append(c.samples, noseZ)
	if len(c.samples) < c.frames {
		return false
	}

	sum := 0.0
	for _, z := range c.samples {
		sum += z
	}
	c.baseline = sum / float64(len(c.samples))
	c.calibrated = true
	c.samples = nil
	return true
}

// Calibrated reports whether the baseline has been fixed.
func (c *Calibrator) Calibrated() bool {
	return c.calibrated
}

// Baseline returns the nose depth baseline and whether it exists yet.
func (c *Calibrator) Baseline() (float64, bool) {
	return c.baseline, c.calibrated
}

// Progress returns how many samples have been collected out of how many
// are needed.
func (c *Calibrator) Progress() (collected, total int) {
	if c.calibrated {
		return c.frames, c.frames
	}
	return len(c.samples), c.frames
}
