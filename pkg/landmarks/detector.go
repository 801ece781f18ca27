// Package landmarks turns camera frames into pose keypoints.
package landmarks

import (
	"context"
	"errors"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// Sentinel errors for landmark detection.
var (
	// ErrDetectorUnavailable is returned when the detection backend cannot
	// be reached or answered with an error.
	ErrDetectorUnavailable = errors.New("landmarks: detector unavailable")

	// ErrReplayExhausted is returned when a non-looping replay runs out.
	ErrReplayExhausted = errors.New("landmarks: replay exhausted")
)

// Detector is the interface for pose landmark backends.
type Detector interface {
	// Detect returns the pose found in the JPEG image, or nil when no
	// body is visible.
	Detect(ctx context.Context, jpeg []byte) (*posture.Pose, error)

	// Close releases resources.
	Close() error
}

// Point is a keypoint as returned by a detection backend.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// ToPose picks the nose and shoulders out of a full keypoint list. It
// returns nil when the list is too short or, with minVisibility > 0, when
// any of the three keypoints is less visible than that.
func ToPose(points []Point, minVisibility float64) *posture.Pose {
	if len(points) <= posture.RightShoulderIndex {
		return nil
	}
	if minVisibility > 0 {
		for _, i := range []int{posture.NoseIndex, posture.LeftShoulderIndex, posture.RightShoulderIndex} {
			if points[i].Visibility < minVisibility {
				return nil
			}
		}
	}

	lms := make([]posture.Landmark, len(points))
	for i, p := range points {
		lms[i] = posture.Landmark{X: p.X, Y: p.Y, Z: p.Z}
	}
	return posture.PoseFromLandmarks(lms)
}
