package posture

import "fmt"

// Label is the classifier output for one frame. The string values are part
// of the wire format shared with the dashboard.
type Label string

const (
	GoodPosture    Label = "Good Posture"
	Slouching      Label = "Slouching"
	LeaningForward Label = "Leaning Forward"
	NeckTilt       Label = "Neck Tilt"
)

// Labels lists every label in rule priority order, good last.
var Labels = []Label{Slouching, LeaningForward, NeckTilt, GoodPosture}

// IsGood reports whether l is GoodPosture.
func (l Label) IsGood() bool {
	return l == GoodPosture
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLabel validates a label received from outside the process.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("posture: unknown label %q", s)
	}
	return l, nil
}
