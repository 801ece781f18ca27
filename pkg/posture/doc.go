// Package posture turns per-frame body landmarks into posture labels.
//
// The pipeline for one frame is:
//
//	Pose -> Smoother (horizontal jitter) -> Calibrator (nose depth baseline)
//	     -> Classify (ordered threshold rules) -> Label
//
// An AlertScheduler consumes the resulting labels and decides when a
// sustained bad-posture episode deserves an alert.
//
// Nothing in this package is safe for concurrent use; a single frame worker
// owns an Analyzer and an AlertScheduler.
package posture
