package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-posture/pkg/posture"
)

func TestDataLog_WriteCSV(t *testing.T) {
	d := NewDataLog()
	t0 := time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)
	d.Append(t0, posture.GoodPosture)
	d.Append(t0.Add(time.Second), posture.LeaningForward)

	var sb strings.Builder
	if err := d.WriteCSV(&sb); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "Timestamp,Posture\n14:05:09,Good Posture\n14:05:10,Leaning Forward\n"
	if sb.String() != want {
		t.Errorf("csv = %q, want %q", sb.String(), want)
	}
}

func TestDataLog_ExportOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "posture_data.csv")
	d := NewDataLog()
	d.Append(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), posture.NeckTilt)

	if err := d.Export(path); err != nil {
		t.Fatalf("Export: %v", err)
	}
	d.Append(time.Date(2024, 3, 1, 8, 0, 1, 0, time.UTC), posture.GoodPosture)
	if err := d.Export(path); err != nil {
		t.Fatalf("second Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("exported %d lines, want 3:\n%s", lines, data)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}
