package posture

import (
	"math"
	"testing"
)

func TestThresholds_LabelPriority(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name string
		m    Measurements
		want Label
	}{
		{
			name: "all rules exceeded, slouching wins",
			m:    Measurements{ShoulderDiff: 0.06, ZDiff: -0.20, XDiff: 0.20},
			want: Slouching,
		},
		{
			name: "lean beats tilt",
			m:    Measurements{ShoulderDiff: 0.01, ZDiff: -0.20, XDiff: 0.20},
			want: LeaningForward,
		},
		{
			name: "lean only",
			m:    Measurements{ShoulderDiff: 0.01, ZDiff: -0.20, XDiff: 0.01},
			want: LeaningForward,
		},
		{
			name: "tilt only",
			m:    Measurements{ShoulderDiff: 0.01, ZDiff: 0.0, XDiff: 0.13},
			want: NeckTilt,
		},
		{
			name: "all within tolerance",
			m:    Measurements{ShoulderDiff: 0.02, ZDiff: -0.05, XDiff: 0.05},
			want: GoodPosture,
		},
		{
			name: "thresholds are strict",
			m:    Measurements{ShoulderDiff: 0.05, ZDiff: -0.10, XDiff: 0.12},
			want: GoodPosture,
		},
		{
			name: "leaning back is fine",
			m:    Measurements{ShoulderDiff: 0.0, ZDiff: 0.30, XDiff: 0.0},
			want: GoodPosture,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := th.Label(tc.m); got != tc.want {
				t.Errorf("Label(%+v) = %q, want %q", tc.m, got, tc.want)
			}
		})
	}
}

func TestMeasure(t *testing.T) {
	in := Inputs{
		NoseX:          0.50,
		LeftShoulderX:  0.30,
		RightShoulderX: 0.60,
		LeftShoulderY:  0.70,
		RightShoulderY: 0.66,
		NoseZ:          -0.45,
	}

	m := Measure(in, -0.40)

	if math.Abs(m.ShoulderDiff-0.04) > 1e-9 {
		t.Errorf("ShoulderDiff = %v, want 0.04", m.ShoulderDiff)
	}
	if math.Abs(m.ZDiff-(-0.05)) > 1e-9 {
		t.Errorf("ZDiff = %v, want -0.05", m.ZDiff)
	}
	// left_dx = 0.20, right_dx = 0.10
	if math.Abs(m.XDiff-0.10) > 1e-9 {
		t.Errorf("XDiff = %v, want 0.10", m.XDiff)
	}
}

func TestThresholds_Classify(t *testing.T) {
	th := DefaultThresholds()
	upright := Inputs{
		NoseX: 0.5, LeftShoulderX: 0.4, RightShoulderX: 0.6,
		LeftShoulderY: 0.7, RightShoulderY: 0.7, NoseZ: -0.3,
	}

	if got := th.Classify(upright, -0.3); got != GoodPosture {
		t.Errorf("upright = %q, want %q", got, GoodPosture)
	}

	dropped := upright
	dropped.RightShoulderY = 0.78
	if got := th.Classify(dropped, -0.3); got != Slouching {
		t.Errorf("dropped shoulder = %q, want %q", got, Slouching)
	}

	closer := upright
	closer.NoseZ = -0.55
	if got := th.Classify(closer, -0.3); got != LeaningForward {
		t.Errorf("closer = %q, want %q", got, LeaningForward)
	}

	tilted := upright
	tilted.NoseX = 0.58
	if got := th.Classify(tilted, -0.3); got != NeckTilt {
		t.Errorf("tilted = %q, want %q", got, NeckTilt)
	}
}

func TestParseLabel(t *testing.T) {
	for _, l := range Labels {
		got, err := ParseLabel(string(l))
		if err != nil || got != l {
			t.Errorf("ParseLabel(%q) = %q, %v", l, got, err)
		}
	}
	if _, err := ParseLabel("Hunched"); err == nil {
		t.Error("expected error for unknown label")
	}
}
