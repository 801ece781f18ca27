package monitor

import (
	"time"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// FrameStatus is the per-frame result published to live subscribers.
type FrameStatus struct {
	Seq          uint64                `json:"seq"`
	Time         time.Time             `json:"time"`
	Status       posture.Status        `json:"status"`
	Posture      posture.Label         `json:"posture,omitempty"`
	Measurements *posture.Measurements `json:"measurements,omitempty"`

	CalibrationCollected int `json:"calibrationCollected"`
	CalibrationTotal     int `json:"calibrationTotal"`

	GoodCount int  `json:"goodCount"`
	BadCount  int  `json:"badCount"`
	Score     int  `json:"score"`
	Alert     bool `json:"alert,omitempty"`
}

// SessionEvent is published when a session starts or stops.
type SessionEvent struct {
	Event        string    `json:"event"`
	SessionID    string    `json:"sessionId"`
	Time         time.Time `json:"time"`
	PostureScore int       `json:"postureScore,omitempty"`
}
