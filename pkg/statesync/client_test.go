package statesync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/session"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func newRemote(t *testing.T, status int, body string) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		if r.ContentLength > 0 {
			json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestClient_Push(t *testing.T) {
	srv, calls := newRemote(t, http.StatusOK, `{"status":"success"}`)
	c := NewClient(srv.URL, time.Second, WithClientLogger(log.Discard()))

	good, bad := 3, 1
	label := posture.Slouching
	err := c.Push(context.Background(), session.Update{GoodCount: &good, BadCount: &bad, PostureHistory: []int{1, 0}, Posture: &label})
	require.NoError(t, err)

	got := calls()
	require.Len(t, got, 1)
	require.Equal(t, http.MethodPost, got[0].method)
	require.Equal(t, "/update", got[0].path)
	require.Equal(t, float64(3), got[0].body["good_count"])
	require.Equal(t, float64(1), got[0].body["bad_count"])
	require.Equal(t, "Slouching", got[0].body["posture"])
}

func TestClient_Lifecycle(t *testing.T) {
	srv, calls := newRemote(t, http.StatusOK, `{"status":"success","message":"Monitoring started"}`)
	c := NewClient(srv.URL, time.Second, WithClientLogger(log.Discard()))

	require.NoError(t, c.NotifyStart(context.Background()))
	require.NoError(t, c.NotifyStop(context.Background()))

	got := calls()
	require.Len(t, got, 2)
	require.Equal(t, "/start", got[0].path)
	require.Equal(t, "/stop", got[1].path)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv, _ := newRemote(t, http.StatusBadRequest, `{"status":"error","message":"bad body"}`)
	c := NewClient(srv.URL, time.Second, WithClientLogger(log.Discard()))

	err := c.NotifyStart(context.Background())
	var se *SyncError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "start", se.Op)
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Equal(t, "bad body", se.Message)
	require.False(t, se.IsServerError())
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, 500*time.Millisecond, WithClientLogger(log.Discard()))
	err := c.Push(context.Background(), session.Update{})

	var se *SyncError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 0, se.StatusCode)
	require.Error(t, se.Err)
}

func TestClient_Health(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"healthy", http.StatusOK, `{"status":"healthy"}`, false},
		{"degraded", http.StatusOK, `{"status":"degraded"}`, true},
		{"server error", http.StatusServiceUnavailable, `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newRemote(t, tt.status, tt.body)
			c := NewClient(srv.URL, time.Second, WithClientLogger(log.Discard()))
			err := c.Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Health() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_HealthUnhealthySentinel(t *testing.T) {
	srv, _ := newRemote(t, http.StatusOK, `{"status":"starting"}`)
	c := NewClient(srv.URL, time.Second, WithClientLogger(log.Discard()))

	err := c.Health(context.Background())
	if !errors.Is(err, ErrUnhealthy) {
		t.Errorf("Health() error = %v, want ErrUnhealthy", err)
	}
}
