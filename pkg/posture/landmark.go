package posture

// Pose landmark indices following the MediaPipe BlazePose convention.
// Only the keypoints the classifier needs are named.
const (
	NoseIndex          = 0
	LeftShoulderIndex  = 11
	RightShoulderIndex = 12
	NumPoseLandmarks   = 33
)

// Landmark is a detected keypoint in normalized image coordinates.
// X and Y are in [0, 1]; Z is relative depth (smaller = closer to camera).
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose holds the keypoints of interest for one frame.
type Pose struct {
	Nose          Landmark `json:"nose"`
	LeftShoulder  Landmark `json:"left_shoulder"`
	RightShoulder Landmark `json:"right_shoulder"`
}

// PoseFromLandmarks picks the nose and shoulders out of a full landmark list.
// It returns nil when the list is too short to contain them.
func PoseFromLandmarks(points []Landmark) *Pose {
	if len(points) <= RightShoulderIndex {
		return nil
	}
	return &Pose{
		Nose:          points[NoseIndex],
		LeftShoulder:  points[LeftShoulderIndex],
		RightShoulder: points[RightShoulderIndex],
	}
}
