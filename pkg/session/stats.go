package session

import (
	"math"
	"sort"
	"time"
)

// Stats summarizes the session list.
type Stats struct {
	AverageScore  float64 `json:"averageScore"`
	BestScore     int     `json:"bestScore"`
	LatestScore   int     `json:"latestScore"`
	TotalSessions int     `json:"totalSessions"`
	TotalMinutes  float64 `json:"totalTime"`
	Improvement   float64 `json:"improvement"`
}

// ComputeStats scores completed sessions only; an open session still holds
// the placeholder score. Open sessions do count toward minutes, measured up
// to now.
func ComputeStats(sessions []*Session, now time.Time) Stats {
	var st Stats
	completed := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if s == nil {
			continue
		}
		st.TotalMinutes += s.Duration(now).Minutes()
		if !s.Active() {
			completed = append(completed, s)
		}
	}
	st.TotalMinutes = math.Round(st.TotalMinutes*100) / 100

	if len(completed) == 0 {
		return st
	}

	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].StartTime.Before(completed[j].StartTime)
	})

	sum := 0
	for _, s := range completed {
		sum += s.PostureScore
		if s.PostureScore > st.BestScore {
			st.BestScore = s.PostureScore
		}
	}
	st.TotalSessions = len(completed)
	st.AverageScore = float64(sum) / float64(len(completed))

	oldest := completed[0].PostureScore
	st.LatestScore = completed[len(completed)-1].PostureScore
	if len(completed) >= 2 && oldest > 0 {
		st.Improvement = float64(st.LatestScore-oldest) / float64(oldest) * 100
	}
	return st
}
