package landmarks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// ReplayDetector plays back recorded poses, one per Detect call, ignoring
// the image. Each input line is a JSON keypoint list, or null / [] for a
// frame without a body.
type ReplayDetector struct {
	mu    sync.Mutex
	poses []*posture.Pose
	next  int
	loop  bool
}

// NewReplay builds a detector from already-decoded poses.
func NewReplay(poses []*posture.Pose, loop bool) *ReplayDetector {
	return &ReplayDetector{poses: poses, loop: loop}
}

// ReadReplay parses JSON lines from r.
func ReadReplay(r io.Reader, loop bool) (*ReplayDetector, error) {
	var poses []*posture.Pose
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var points []Point
		if err := json.Unmarshal(raw, &points); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		poses = append(poses, ToPose(points, 0))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	return NewReplay(poses, loop), nil
}

// OpenReplay reads a replay file.
func OpenReplay(path string, loop bool) (*ReplayDetector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	return ReadReplay(f, loop)
}

// Len returns the number of recorded frames.
func (d *ReplayDetector) Len() int {
	return len(d.poses)
}

// Detect implements Detector.
func (d *ReplayDetector) Detect(ctx context.Context, jpeg []byte) (*posture.Pose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.next >= len(d.poses) {
		if !d.loop || len(d.poses) == 0 {
			return nil, ErrReplayExhausted
		}
		d.next = 0
	}
	p := d.poses[d.next]
	d.next++
	if p == nil {
		return nil, nil
	}
	c := *p
	return &c, nil
}

// Close implements Detector.
func (d *ReplayDetector) Close() error {
	return nil
}

var _ Detector = (*ReplayDetector)(nil)
