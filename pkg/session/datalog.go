package session

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teslashibe/go-posture/pkg/posture"
)

// DataLogTimeFormat is the clock format of the Timestamp column.
const DataLogTimeFormat = "15:04:05"

// DataPoint is one classified frame.
type DataPoint struct {
	Time    time.Time
	Posture posture.Label
}

// DataLog is the per-frame record exported as CSV when a session stops.
type DataLog struct {
	mu     sync.Mutex
	points []DataPoint
}

// NewDataLog returns an empty log.
func NewDataLog() *DataLog {
	return &DataLog{}
}

// Append records one frame.
func (d *DataLog) Append(t time.Time, label posture.Label) {
	d.mu.Lock()
	d.points = append(d.points, DataPoint{Time: t, Posture: label})
	d.mu.Unlock()
}

// Len returns the number of recorded frames.
func (d *DataLog) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.points)
}

// Points returns a copy of the recorded frames.
func (d *DataLog) Points() []DataPoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DataPoint(nil), d.points...)
}

// WriteCSV writes a Timestamp,Posture header followed by one row per frame.
func (d *DataLog) WriteCSV(w io.Writer) error {
	points := d.Points()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Posture"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Time.Format(DataLogTimeFormat), string(p.Posture)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export overwrites path with the CSV form of the log.
func (d *DataLog) Export(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create data log: %w", err)
	}
	if err := d.WriteCSV(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write data log: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close data log: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename data log: %w", err)
	}
	return nil
}
