package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/posture"
)

func sampleState() State {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(25 * time.Minute)
	st := NewState()
	st.GoodCount = 12
	st.BadCount = 4
	st.PostureHistory = []int{1, 1, 0, 1}
	st.LatestPosture = posture.Slouching
	st.IsMonitoring = true
	st.Sessions = []*Session{
		{
			ID:                "a",
			StartTime:         start,
			EndTime:           &end,
			TotalAlerts:       4,
			IncorrectPostures: []posture.Label{posture.Slouching, posture.NeckTilt},
			PostureScore:      75,
			AlertsFired:       1,
		},
		{
			ID:                "b",
			StartTime:         end.Add(time.Minute),
			IncorrectPostures: []posture.Label{},
			PostureScore:      DefaultScore,
		},
	}
	return st
}

func TestJSONStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewJSONStore(filepath.Join(t.TempDir(), "nested", "posture_data.json"))

	want := sampleState()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestJSONStore_MissingFile(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "absent.json"))

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, NewState(), st)
}

func TestJSONStore_MalformedDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posture_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	store := NewJSONStore(path)

	_, err := store.Load(context.Background())
	require.Error(t, err)

	st := LoadState(context.Background(), store, log.Discard())
	require.Equal(t, NewState(), st)
}

func TestJSONStore_LayoutKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "posture_data.json")
	require.NoError(t, NewJSONStore(path).Save(ctx, sampleState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{
		`"good_count"`, `"bad_count"`, `"posture_history"`, `"latest_posture"`,
		`"sessions"`, `"is_monitoring"`, `"_id"`, `"startTime"`, `"endTime":null`,
		`"totalAlerts"`, `"incorrectPostures"`, `"postureScore"`,
	} {
		require.Contains(t, string(data), key)
	}
}

func TestDecode_FillsDefaults(t *testing.T) {
	st, err := Decode([]byte(`{"good_count":3,"sessions":[{"_id":"x","startTime":"2024-03-01T09:00:00Z","endTime":null}]}`))
	require.NoError(t, err)
	require.Equal(t, 3, st.GoodCount)
	require.Equal(t, posture.GoodPosture, st.LatestPosture)
	require.NotNil(t, st.PostureHistory)
	require.Len(t, st.Sessions, 1)
	require.NotNil(t, st.Sessions[0].IncorrectPostures)
	require.True(t, st.Sessions[0].Active())
}

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "posture:state")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, NewState(), empty)

	want := sampleState()
	require.NoError(t, store.Save(ctx, want))
	require.True(t, mr.Exists("posture:state"))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRedisStore_MalformedValue(t *testing.T) {
	store, mr := newMiniredisStore(t)
	require.NoError(t, mr.Set("posture:state", "garbage"))

	_, err := store.Load(context.Background())
	require.Error(t, err)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := DialRedis(context.Background(), RedisOptions{Addr: mr.Addr(), Key: "k"})
	require.NoError(t, err)
	require.Equal(t, "k", store.Key())
	require.NoError(t, store.Close())

	_, err = DialRedis(context.Background(), RedisOptions{Addr: "127.0.0.1:1", Key: "k"})
	require.Error(t, err)
}

func TestAggregator_PersistsThroughStore(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)

	a := NewAggregator(LoadState(ctx, store, log.Discard()), WithStore(store), WithLogger(log.Discard()))
	a.Start(ctx)
	a.Record(ctx, posture.GoodPosture)
	a.Record(ctx, posture.Slouching)

	reloaded := NewAggregator(LoadState(ctx, store, log.Discard()), WithStore(store), WithLogger(log.Discard()))
	require.True(t, reloaded.Monitoring())
	require.Equal(t, a.Snapshot(), reloaded.Snapshot())
}

func TestJSONStore_ConcurrentWritersNeverCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "posture_data.json")

	// Two stores on one path stand in for two processes.
	a, b := NewJSONStore(path), NewJSONStore(path)
	small := NewState()
	small.GoodCount = 1
	large := sampleState()

	var wg sync.WaitGroup
	for _, w := range []struct {
		store *JSONStore
		st    State
	}{{a, small}, {b, large}} {
		wg.Add(1)
		go func(store *JSONStore, st State) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, store.Save(ctx, st))
			}
		}(w.store, w.st)
	}
	wg.Wait()

	got, err := a.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, []int{small.GoodCount, large.GoodCount}, got.GoodCount)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files left behind")
}
