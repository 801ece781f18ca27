package posture

// CoordinateID names a tracked scalar coordinate.
type CoordinateID int

const (
	NoseX CoordinateID = iota
	LeftShoulderX
	RightShoulderX
)

// Smoother keeps a bounded FIFO window per coordinate and returns the
// running mean, dampening per-frame detector jitter.
type Smoother struct {
	capacity int
	windows  map[CoordinateID][]float64
}

// NewSmoother creates a smoother with the given window capacity.
// Capacities below 1 are raised to 1.
func NewSmoother(capacity int) *Smoother {
	if capacity < 1 {
		capacity = 1
	}
	return &Smoother{
		capacity: capacity,
		windows:  make(map[CoordinateID][]float64),
	}
}

// Push adds v to the window for id and returns the mean of the window.
// Before the window fills, the mean covers however many samples exist.
func (s *Smoother) Push(id CoordinateID, v float64) float64 {
	w := s.windows[id]
	if w == nil {
		w = make([]float64, 0, s.capacity)
	}
	if len(w) == s.capacity {
		copy(w, w[1:])
		w = w[:len(w)-1]
	}
	w = append(w, v)
	s.windows[id] = w

	sum := 0.0
	for _, x := range w {
		sum += x
	}
	return sum / float64(len(w))
}

// Len returns the number of samples currently held for id.
func (s *Smoother) Len(id CoordinateID) int {
	return len(s.windows[id])
}

// Reset drops every window.
func (s *Smoother) Reset() {
	s.windows = make(map[CoordinateID][]float64)
}
