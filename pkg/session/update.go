package session

import (
	"fmt"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// Update is a sparse change pushed by a frame producer. Only non-nil fields
// are applied; scalars are last-write-wins.
type Update struct {
	GoodCount      *int           `json:"good_count,omitempty"`
	BadCount       *int           `json:"bad_count,omitempty"`
	PostureHistory []int          `json:"posture_history,omitempty"`
	Posture        *posture.Label `json:"posture,omitempty"`
}

// FrameUpdate builds the update a producer sends after recording a frame.
func FrameUpdate(st State, label posture.Label) Update {
	good, bad := st.GoodCount, st.BadCount
	history := append(make([]int, 0, len(st.PostureHistory)), st.PostureHistory...)
	return Update{
		GoodCount:      &good,
		BadCount:       &bad,
		PostureHistory: history,
		Posture:        &label,
	}
}

// Empty reports whether the update carries nothing.
func (u Update) Empty() bool {
	return u.GoodCount == nil && u.BadCount == nil && u.PostureHistory == nil && u.Posture == nil
}

// Validate checks values before anything is applied.
func (u Update) Validate() error {
	if u.GoodCount != nil && *u.GoodCount < 0 {
		return fmt.Errorf("%w: good_count %d is negative", ErrInvalidUpdate, *u.GoodCount)
	}
	if u.BadCount != nil && *u.BadCount < 0 {
		return fmt.Errorf("%w: bad_count %d is negative", ErrInvalidUpdate, *u.BadCount)
	}
	for i, v := range u.PostureHistory {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: posture_history[%d] = %d, want 0 or 1", ErrInvalidUpdate, i, v)
		}
	}
	if u.Posture != nil && !u.Posture.Valid() {
		return fmt.Errorf("%w: unknown posture %q", ErrInvalidUpdate, *u.Posture)
	}
	return nil
}
