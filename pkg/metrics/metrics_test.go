package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-posture/pkg/posture"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMetrics(t *testing.T) {
	m := New()
	m.FramesRead.Add(7)
	m.ObservePosture(posture.Slouching)
	m.ObservePosture(posture.Slouching)
	m.ObservePosture(posture.GoodPosture)
	m.ObserveSync("update", nil)
	m.ObserveSync("update", errors.New("down"))
	m.ObserveSync("update", errors.New("down"))
	m.SetMonitoring(true)
	m.SessionStopped(82)
	m.SetRemoteConnected(true)

	body := scrape(t, m)
	for _, want := range []string{
		"posture_frames_read_total 7",
		`posture_frames_classified_total{posture="Slouching"} 2`,
		`posture_frames_classified_total{posture="Good Posture"} 1`,
		`posture_frames_classified_total{posture="Neck Tilt"} 0`,
		`posture_remote_sync_total{op="update",result="error"} 2`,
		`posture_remote_sync_total{op="update",result="ok"} 1`,
		"posture_session_score 82",
		"posture_sessions_completed_total 1",
		"posture_monitoring_active 0",
		"posture_remote_connected 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.AlertsFired.Add(3)

	if !strings.Contains(scrape(t, b), "posture_alerts_fired_total 0") {
		t.Error("second instance shares state with the first")
	}
}
