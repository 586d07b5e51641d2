// ABOUTME: JSON file credential medium for command-line sessions
// ABOUTME: Persists tokens with their expiry in a 0600 file, written atomically

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileMedium stores tokens in a JSON document on disk.
type FileMedium struct {
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewFileMedium creates a medium backed by path. The file and its directory
// are created on first write.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: path, now: time.Now}
}

// Path returns the backing file location.
func (f *FileMedium) Path() string {
	return f.path
}

func (f *FileMedium) Get(_ context.Context, name string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := f.load()
	if err != nil {
		return "", false, err
	}
	e, ok := entries[name]
	if !ok || !f.now().Before(e.ExpiresAt) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (f *FileMedium) Set(_ context.Context, name, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[name] = fileEntry{Value: value, ExpiresAt: f.now().Add(ttl).UTC()}
	return f.save(entries)
}

func (f *FileMedium) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return nil
	}
	delete(entries, name)
	return f.save(entries)
}

// load reads the file, dropping expired entries. A missing file is empty.
func (f *FileMedium) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	now := f.now()
	for name, e := range entries {
		if !now.Before(e.ExpiresAt) {
			delete(entries, name)
		}
	}
	return entries, nil
}

// save writes entries to a temp file in the same directory and renames it
// into place so readers never observe a partial document.
func (f *FileMedium) save(entries map[string]fileEntry) error {
	if len(entries) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credentials file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}
