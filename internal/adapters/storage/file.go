package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"deltabot/internal/domain"
)

// FileStore implements ports.StateStore as a single JSON document.
// Saves write to a temp file in the same directory and rename over the
// target, so a crash mid-write never corrupts the previous snapshot.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at the given path, creating parent
// directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage.NewFileStore: mkdir %q: %w", dir, err)
		}
	}
	return &FileStore{path: path}, nil
}

// Save atomically replaces the snapshot on disk.
func (s *FileStore) Save(ctx context.Context, state domain.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.FileStore.Save: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage.FileStore.Save: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage.FileStore.Save: rename: %w", err)
	}
	return nil
}

// Load returns the snapshot, or nil when no file exists yet.
func (s *FileStore) Load(ctx context.Context) (*domain.AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.FileStore.Load: read: %w", err)
	}

	var state domain.AgentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("storage.FileStore.Load: decode: %w", err)
	}
	return &state, nil
}

// Close is a no-op; the store holds no open resources.
func (s *FileStore) Close() error { return nil }
