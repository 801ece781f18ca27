package posture

// Status describes what happened to a frame.
type Status string

const (
	// StatusNoData: the detector found no body. Nothing is counted.
	StatusNoData Status = "no_data"

	// StatusCalibrating: the frame went into the depth baseline.
	StatusCalibrating Status = "calibrating"

	// StatusClassified: the frame produced a label.
	StatusClassified Status = "classified"
)

// Result is the outcome of analyzing one frame. Label and Measurements are
// only meaningful when Status is StatusClassified.
type Result struct {
	Status       Status       `json:"status"`
	Label        Label        `json:"label,omitempty"`
	Measurements Measurements `json:"measurements"`

	CalibrationCollected int `json:"calibration_collected"`
	CalibrationTotal     int `json:"calibration_total"`
}

// Classified reports whether the frame produced a label.
func (r Result) Classified() bool {
	return r.Status == StatusClassified
}

// Analyzer runs smoothing, calibration and classification for a stream of
// poses from one subject.
type Analyzer struct {
	thresholds Thresholds
	smoother   *Smoother
	calibrator *Calibrator
}

// NewAnalyzer creates an uncalibrated analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{
		thresholds: cfg.Thresholds,
		smoother:   NewSmoother(cfg.WindowSize),
		calibrator: NewCalibrator(cfg.CalibrationFrames),
	}
}

// Process analyzes one frame. A nil pose yields StatusNoData.
//
// Horizontal coordinates enter the smoothing windows even while
// calibrating, so the first classified frame already has a full window.
// The frame that completes calibration is itself not classified.
func (a *Analyzer) Process(p *Pose) Result {
	if p == nil {
		collected, total := a.calibrator.Progress()
		return Result{
			Status:               StatusNoData,
			CalibrationCollected: collected,
			CalibrationTotal:     total,
		}
	}

	noseX := a.smoother.Push(NoseX, p.Nose.X)
	leftX := a.smoother.Push(LeftShoulderX, p.LeftShoulder.X)
	rightX := a.smoother.Push(RightShoulderX, p.RightShoulder.X)

	if !a.calibrator.Calibrated() {
		a.calibrator.Observe(p.Nose.Z)
		collected, total := a.calibrator.Progress()
		return Result{
			Status:               StatusCalibrating,
			CalibrationCollected: collected,
			CalibrationTotal:     total,
		}
	}

	baseline, _ := a.calibrator.Baseline()
	m := Measure(Inputs{
		NoseX:          noseX,
		LeftShoulderX:  leftX,
		RightShoulderX: rightX,
		LeftShoulderY:  p.LeftShoulder.Y,
		RightShoulderY: p.RightShoulder.Y,
		NoseZ:          p.Nose.Z,
	}, baseline)

	collected, total := a.calibrator.Progress()
	return Result{
		Status:               StatusClassified,
		Label:                a.thresholds.Label(m),
		Measurements:         m,
		CalibrationCollected: collected,
		CalibrationTotal:     total,
	}
}

// Calibrated reports whether classification has begun.
func (a *Analyzer) Calibrated() bool {
	return a.calibrator.Calibrated()
}

// Baseline returns the nose depth baseline, if calibrated.
func (a *Analyzer) Baseline() (float64, bool) {
	return a.calibrator.Baseline()
}
