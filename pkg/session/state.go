// Package session owns the aggregate posture state: counters, the bounded
// history, the session list and its persistence.
package session

import (
	"math"
	"time"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// MaxHistory is how many recent frames PostureHistory keeps.
const MaxHistory = 100

// DefaultScore is the score of a session with nothing recorded.
const DefaultScore = 100

// Session is one start-to-stop monitoring interval.
type Session struct {
	ID        string     `json:"_id"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`

	// TotalAlerts counts bad-posture frames recorded while the session was
	// active. It is not the number of alerts that fired; see AlertsFired.
	TotalAlerts int `json:"totalAlerts"`

	// IncorrectPostures is the set of bad labels seen, in first-seen order.
	IncorrectPostures []posture.Label `json:"incorrectPostures"`

	PostureScore int `json:"postureScore"`

	// AlertsFired counts alerts raised by the alert scheduler.
	AlertsFired int `json:"alertsFired"`
}

// Active reports whether the session has not been stopped yet.
func (s *Session) Active() bool {
	return s.EndTime == nil
}

// Duration returns how long the session ran, or has run so far.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

func (s *Session) addIncorrect(l posture.Label) {
	for _, seen := range s.IncorrectPostures {
		if seen == l {
			return
		}
	}
	s.IncorrectPostures = append(s.IncorrectPostures, l)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.IncorrectPostures = append(make([]posture.Label, 0, len(s.IncorrectPostures)), s.IncorrectPostures...)
	return &c
}

// State is the aggregate record shared by the frame pipeline and the API.
// It is also the unit of persistence.
type State struct {
	GoodCount      int           `json:"good_count"`
	BadCount       int           `json:"bad_count"`
	PostureHistory []int         `json:"posture_history"`
	LatestPosture  posture.Label `json:"latest_posture"`
	Sessions       []*Session    `json:"sessions"`
	IsMonitoring   bool          `json:"is_monitoring"`
}

// NewState returns the empty state used when nothing was persisted.
func NewState() State {
	return State{
		PostureHistory: []int{},
		LatestPosture:  posture.GoodPosture,
		Sessions:       []*Session{},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.PostureHistory = append(make([]int, 0, len(s.PostureHistory)), s.PostureHistory...)
	c.Sessions = make([]*Session, 0, len(s.Sessions))
	for _, sess := range s.Sessions {
		c.Sessions = append(c.Sessions, sess.Clone())
	}
	return c
}

// Score is round(100 * good / (good + bad)), or DefaultScore when nothing
// has been counted.
func (s State) Score() int {
	return score(s.GoodCount, s.BadCount)
}

// normalize repairs whatever a decoder or a remote peer may have left out.
func (s *State) normalize() {
	if s.PostureHistory == nil {
		s.PostureHistory = []int{}
	}
	s.PostureHistory = trimHistory(s.PostureHistory)
	if s.LatestPosture == "" {
		s.LatestPosture = posture.GoodPosture
	}
	if s.Sessions == nil {
		s.Sessions = []*Session{}
	}
	kept := s.Sessions[:0]
	for _, sess := range s.Sessions {
		if sess == nil {
			continue
		}
		if sess.IncorrectPostures == nil {
			sess.IncorrectPostures = []posture.Label{}
		}
		kept = append(kept, sess)
	}
	s.Sessions = kept
	if s.GoodCount < 0 {
		s.GoodCount = 0
	}
	if s.BadCount < 0 {
		s.BadCount = 0
	}
}

func trimHistory(h []int) []int {
	if len(h) <= MaxHistory {
		return h
	}
	return append(make([]int, 0, MaxHistory), h[len(h)-MaxHistory:]...)
}

func score(good, bad int) int {
	total := good + bad
	if total == 0 {
		return DefaultScore
	}
	return int(math.Round(100 * float64(good) / float64(total)))
}
