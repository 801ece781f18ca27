package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/teslashibe/go-posture/internal/log"
)

// ErrBusy is returned when the previous alert sound is still playing.
var ErrBusy = errors.New("alert: sound already playing")

// SoundSink plays an audio file through an external player. Playback runs
// in the background; an alert that arrives mid-playback is skipped.
type SoundSink struct {
	path    string
	command []string
	logger  *slog.Logger

	mu      sync.Mutex
	playing bool
	wg      sync.WaitGroup
}

// NewSoundSink plays path with the platform's default player.
func NewSoundSink(path string) (*SoundSink, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("alert sound: %w", err)
	}
	return &SoundSink{
		path:    path,
		command: DefaultPlayer(runtime.GOOS),
		logger:  log.Component("alert"),
	}, nil
}

// DefaultPlayer returns the player command for an OS; the file path is
// appended as the last argument.
func DefaultPlayer(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"afplay"}
	case "windows":
		return []string{"powershell", "-c", "(New-Object Media.SoundPlayer $args[0]).PlaySync()"}
	default:
		return []string{"aplay", "-q"}
	}
}

// WithCommand overrides the player command.
func (s *SoundSink) WithCommand(cmd ...string) *SoundSink {
	s.command = cmd
	return s
}

// Notify implements Sink.
func (s *SoundSink) Notify(ctx context.Context, a Alert) error {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return ErrBusy
	}

	args := append(append([]string(nil), s.command[1:]...), s.path)
	cmd := exec.Command(s.command[0], args...)
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("alert sound: start %s: %w", s.command[0], err)
	}
	s.playing = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := cmd.Wait(); err != nil {
			s.logger.Warn("alert sound failed", "error", err)
		}
		s.mu.Lock()
		s.playing = false
		s.mu.Unlock()
	}()
	return nil
}

// Playing reports whether a sound is in progress.
func (s *SoundSink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Wait blocks until any in-progress playback ends.
func (s *SoundSink) Wait() {
	s.wg.Wait()
}
