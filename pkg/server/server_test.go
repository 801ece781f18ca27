package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/capture"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/landmarks"
	"github.com/teslashibe/go-posture/pkg/metrics"
	"github.com/teslashibe/go-posture/pkg/monitor"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/session"
)

func newTestServer(t *testing.T) (*Server, *session.Aggregator) {
	t.Helper()
	agg := session.NewAggregator(session.NewState(), session.WithLogger(log.Discard()))
	return New(DefaultConfig(), agg, hub.New("test"), metrics.New()), agg
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeStatus(t *testing.T, data []byte) StatusResponse {
	t.Helper()
	var out StatusResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestStartStop(t *testing.T) {
	s, agg := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusResponse{Status: "success", Message: "Monitoring started"}, decodeStatus(t, body))
	require.True(t, agg.Monitoring())

	code, body = do(t, s, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Monitoring already started", decodeStatus(t, body).Message)
	require.Len(t, agg.Snapshot().Sessions, 1)

	code, body = do(t, s, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Monitoring stopped", decodeStatus(t, body).Message)
	require.False(t, agg.Monitoring())

	code, body = do(t, s, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", decodeStatus(t, body).Status)
}

func TestData(t *testing.T) {
	s, agg := newTestServer(t)
	ctx := context.Background()
	agg.Start(ctx)
	agg.Record(ctx, posture.GoodPosture)
	agg.Record(ctx, posture.NeckTilt)

	code, body := do(t, s, http.MethodGet, "/data", "")
	require.Equal(t, http.StatusOK, code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, key := range []string{"goodCount", "badCount", "postureHistory", "latestPosture", "sessions", "isMonitoring"} {
		require.Contains(t, raw, key)
	}

	var data DataResponse
	require.NoError(t, json.Unmarshal(body, &data))
	require.Equal(t, 1, data.GoodCount)
	require.Equal(t, 1, data.BadCount)
	require.Equal(t, []int{1, 0}, data.PostureHistory)
	require.Equal(t, posture.NeckTilt, data.LatestPosture)
	require.True(t, data.IsMonitoring)
	require.Len(t, data.Sessions, 1)
	require.Equal(t, []posture.Label{posture.NeckTilt}, data.Sessions[0].IncorrectPostures)
}

func TestUpdate(t *testing.T) {
	s, agg := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/update", `{"good_count":4,"bad_count":1,"posture_history":[1,1,0],"posture":"Slouching"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusResponse{Status: "success"}, decodeStatus(t, body))

	st := agg.Snapshot()
	require.Equal(t, 4, st.GoodCount)
	require.Equal(t, 1, st.BadCount)
	require.Equal(t, []int{1, 1, 0}, st.PostureHistory)
	require.Equal(t, posture.Slouching, st.LatestPosture)

	// Sparse: only good_count changes.
	code, _ = do(t, s, http.MethodPost, "/update", `{"good_count":9}`)
	require.Equal(t, http.StatusOK, code)
	st = agg.Snapshot()
	require.Equal(t, 9, st.GoodCount)
	require.Equal(t, 1, st.BadCount)
}

func TestUpdate_BadRequest(t *testing.T) {
	s, agg := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"good_count":`},
		{"wrong type", `{"good_count":"many"}`},
		{"unknown posture", `{"posture":"Sideways"}`},
		{"negative count", `{"bad_count":-2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/update", tt.body)
			require.Equal(t, http.StatusBadRequest, code)
			require.Equal(t, "error", decodeStatus(t, body).Status)
		})
	}
	require.Equal(t, 0, agg.Snapshot().GoodCount)
}

func TestHealthAndIndex(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "healthy", decodeStatus(t, body).Status)

	code, body = do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "/ws/status")
}

func TestHistoryAndStats(t *testing.T) {
	s, agg := newTestServer(t)
	ctx := context.Background()

	agg.Start(ctx)
	agg.Record(ctx, posture.GoodPosture)
	agg.Stop(ctx)
	agg.Start(ctx)

	code, body := do(t, s, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, code)
	var history []*session.Session
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 2)
	require.True(t, history[0].Active())

	code, body = do(t, s, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, code)
	var stats session.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Equal(t, 1, stats.TotalSessions)
	require.Equal(t, 100, stats.BestScore)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.metrics.FramesRead.Add(3)

	code, body := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "posture_frames_read_total 3")
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)

	_, body := do(t, s, http.MethodGet, "/status", "")
	var st LiveStatus
	require.NoError(t, json.Unmarshal(body, &st))
	require.Nil(t, st.RemoteConnected)
	require.Equal(t, 100, st.Score)

	s.SetRemoteConnected(true)
	_, body = do(t, s, http.MethodGet, "/status", "")
	require.NoError(t, json.Unmarshal(body, &st))
	require.NotNil(t, st.RemoteConnected)
	require.True(t, *st.RemoteConnected)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	code, _ := do(t, s, http.MethodGet, "/ws/status", "")
	require.Equal(t, http.StatusUpgradeRequired, code)
}

func TestStart_CameraUnavailable(t *testing.T) {
	agg := session.NewAggregator(session.NewState(), session.WithLogger(log.Discard()))
	m := monitor.New(agg,
		func(ctx context.Context) (capture.Source, error) {
			return nil, errors.New("no camera")
		},
		landmarks.NewReplay(nil, false),
		monitor.WithLogger(log.Discard()))
	s := New(DefaultConfig(), m, nil, nil)

	code, body := do(t, s, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "error", decodeStatus(t, body).Status)
	require.False(t, agg.Monitoring())

	// Without a hub or metrics those routes are absent.
	code, _ = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestRecoverFromPanic(t *testing.T) {
	s := New(DefaultConfig(), panicController{}, nil, nil)

	code, body := do(t, s, http.MethodGet, "/data", "")
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "error", decodeStatus(t, body).Status)
}

type panicController struct{ Controller }

func (panicController) Snapshot() session.State { panic("store exploded") }

func TestMetricsFollowAggregator(t *testing.T) {
	m := metrics.New()
	agg := session.NewAggregator(session.NewState(),
		session.WithObserver(m), session.WithLogger(log.Discard()))
	s := New(DefaultConfig(), agg, nil, m)

	scrape := func() string {
		_, body := do(t, s, http.MethodGet, "/metrics", "")
		return string(body)
	}
	require.Contains(t, scrape(), "posture_sessions_completed_total 0")

	code, _ := do(t, s, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, scrape(), "posture_monitoring_active 1")

	code, _ = do(t, s, http.MethodPost, "/update", `{"good_count":1,"bad_count":1,"posture":"Slouching"}`)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, scrape(), `posture_frames_classified_total{posture="Slouching"} 1`)

	code, _ = do(t, s, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusOK, code)
	out := scrape()
	require.Contains(t, out, "posture_sessions_completed_total 1")
	require.Contains(t, out, "posture_session_score 50")
	require.Contains(t, out, "posture_monitoring_active 0")
}
