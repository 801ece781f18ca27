package posture

import "time"

// AlertScheduler debounces alerts over a bad-posture episode.
//
// An episode opens on the first bad label and closes on the next good one.
// Once an episode has lasted SustainDuration, an alert fires whenever more
// than AlertCooldown has passed since the previous alert. The episode is not
// re-armed after firing, so alerts repeat every cooldown while bad posture
// continues.
type AlertScheduler struct {
	sustain  time.Duration
	cooldown time.Duration

	badSince  time.Time // zero: no open episode
	lastAlert time.Time // zero acts as the epoch
	fired     int
}

// NewAlertScheduler creates a scheduler with the given gates.
func NewAlertScheduler(sustain, cooldown time.Duration) *AlertScheduler {
	return &AlertScheduler{
		sustain:  sustain,
		cooldown: cooldown,
	}
}

// Observe feeds one frame's label and reports whether an alert fires now.
func (a *AlertScheduler) Observe(label Label, now time.Time) bool {
	if label.IsGood() {
		a.badSince = time.Time{}
		return false
	}

	if a.badSince.IsZero() {
		a.badSince = now
		return false
	}

	if now.Sub(a.badSince) < a.sustain {
		return false
	}
	if !a.lastAlert.IsZero() && now.Sub(a.lastAlert) <= a.cooldown {
		return false
	}

	a.lastAlert = now
	a.fired++
	return true
}

// InEpisode reports whether a bad-posture episode is open.
func (a *AlertScheduler) InEpisode() bool {
	return !a.badSince.IsZero()
}

// EpisodeStart returns when the open episode began.
func (a *AlertScheduler) EpisodeStart() (time.Time, bool) {
	return a.badSince, !a.badSince.IsZero()
}

// Fired returns how many alerts have fired since creation.
func (a *AlertScheduler) Fired() int {
	return a.fired
}
