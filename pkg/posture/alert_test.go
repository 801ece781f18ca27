package posture

import (
	"testing"
	"time"
)

func TestAlertScheduler_Sequence(t *testing.T) {
	a := NewAlertScheduler(20*time.Second, 10*time.Second)
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) time.Time { return t0.Add(d) }

	steps := []struct {
		label Label
		at    time.Duration
		fire  bool
	}{
		// Episode opens, not sustained yet.
		{Slouching, 0, false},
		{Slouching, 19 * time.Second, false},
		// Sustained: first alert.
		{NeckTilt, 20 * time.Second, true},
		// Cooldown must be strictly exceeded.
		{Slouching, 25 * time.Second, false},
		{Slouching, 30 * time.Second, false},
		{Slouching, 30*time.Second + 100*time.Millisecond, true},
		// Good posture closes the episode; the next one restarts the clock.
		{GoodPosture, 31 * time.Second, false},
		{Slouching, 32 * time.Second, false},
		{Slouching, 45 * time.Second, false},
		{LeaningForward, 52 * time.Second, true},
	}

	for i, s := range steps {
		if got := a.Observe(s.label, at(s.at)); got != s.fire {
			t.Fatalf("step %d (%s at %v): fired=%v, want %v", i, s.label, s.at, got, s.fire)
		}
	}

	if a.Fired() != 3 {
		t.Errorf("Fired() = %d, want 3", a.Fired())
	}
}

func TestAlertScheduler_GoodClosesEpisode(t *testing.T) {
	a := NewAlertScheduler(20*time.Second, 10*time.Second)
	t0 := time.Unix(1000, 0)

	a.Observe(Slouching, t0)
	if !a.InEpisode() {
		t.Fatal("expected open episode")
	}
	start, _ := a.EpisodeStart()
	if !start.Equal(t0) {
		t.Errorf("EpisodeStart = %v, want %v", start, t0)
	}

	a.Observe(GoodPosture, t0.Add(time.Second))
	if a.InEpisode() {
		t.Fatal("good posture should close the episode")
	}

	// Re-opened episode starts the 20s clock again.
	a.Observe(Slouching, t0.Add(2*time.Second))
	if a.Observe(Slouching, t0.Add(21*time.Second)) {
		t.Error("alert fired before the new episode was sustained")
	}
}

func TestAlertScheduler_AtMostOncePerCooldown(t *testing.T) {
	a := NewAlertScheduler(20*time.Second, 10*time.Second)
	t0 := time.Unix(0, 0).Add(time.Hour)

	var fires []time.Time
	for ms := 0; ms <= 120_000; ms += 100 {
		now := t0.Add(time.Duration(ms) * time.Millisecond)
		if a.Observe(Slouching, now) {
			fires = append(fires, now)
		}
	}

	if len(fires) == 0 {
		t.Fatal("expected alerts during two minutes of bad posture")
	}
	if first := fires[0].Sub(t0); first < 20*time.Second {
		t.Errorf("first alert after %v, want >= 20s", first)
	}
	for i := 1; i < len(fires); i++ {
		if gap := fires[i].Sub(fires[i-1]); gap <= 10*time.Second {
			t.Errorf("alerts %d and %d only %v apart", i-1, i, gap)
		}
	}
	// 20s, ~30.1s, ~40.2s ... up to 120s.
	if len(fires) < 9 || len(fires) > 10 {
		t.Errorf("got %d alerts in 120s, want 9-10", len(fires))
	}
}
