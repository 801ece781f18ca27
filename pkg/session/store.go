package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store defines the interface for state persistence backends.
// Save fully replaces whatever was stored before.
type Store interface {
	// Load returns the stored state, or NewState() when nothing is stored.
	Load(ctx context.Context) (State, error)

	// Save overwrites the stored state.
	Save(ctx context.Context, st State) error

	// Close releases any resources held by the store.
	Close() error
}

// Encode serializes state in the persisted layout.
func Encode(st State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses the persisted layout and repairs missing fields.
func Decode(data []byte) (State, error) {
	st := NewState()
	if err := json.Unmarshal(data, &st); err != nil {
		return NewState(), fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return st, nil
}

// LoadState loads from store and falls back to an empty state on any
// failure. Persistence is best-effort; a broken file never stops startup.
func LoadState(ctx context.Context, store Store, logger *slog.Logger) State {
	if store == nil {
		return NewState()
	}
	st, err := store.Load(ctx)
	if err != nil {
		if logger != nil {
			logger.Warn("state load failed, starting empty", "error", err)
		}
		return NewState()
	}
	return st
}

// JSONStore persists state to a single JSON file.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONStore creates a file store. The file is created on first save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the file path of the store.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file is not an error.
func (s *JSONStore) Load(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return NewState(), fmt.Errorf("read file: %w", err)
	}
	return Decode(data)
}

// Save writes the state file atomically (temp file, then rename).
func (s *JSONStore) Save(ctx context.Context, st State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	// A unique temp file per save keeps concurrent writers from renaming
	// each other's half-written data into place.
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Close is a no-op for JSON files.
func (s *JSONStore) Close() error {
	return nil
}

var _ Store = (*JSONStore)(nil)
