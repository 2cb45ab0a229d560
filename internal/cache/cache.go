// Package cache persists the last full status snapshot so a fresh start can
// paint something before the first fetch returns. The cache is never
// authoritative.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/five82/dashsync/internal/status"
)

// ErrLocked is returned by Save when another process holds the cache lock.
var ErrLocked = errors.New("cache locked by another process")

// Entry is the on-disk representation.
type Entry struct {
	SavedAt time.Time       `json:"saved_at"`
	Status  status.Snapshot `json:"status"`
}

// File is a JSON cache at a fixed path. The zero value is disabled.
type File struct {
	path string
	lock *flock.Flock
}

// New returns a cache at path. An empty path disables caching.
func New(path string) *File {
	if path == "" {
		return &File{}
	}
	return &File{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the cache location.
func (f *File) Path() string { return f.path }

// Load reads the cached entry. A missing or disabled cache returns
// ok=false without error.
func (f *File) Load() (Entry, bool, error) {
	if f == nil || f.path == "" {
		return Entry{}, false, nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("read cache: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("parse cache: %w", err)
	}
	if len(entry.Status) == 0 {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Save writes snap atomically. It does not wait for the lock: when another
// instance is writing, ErrLocked is returned and the caller moves on.
func (f *File) Save(snap status.Snapshot, savedAt time.Time) error {
	if f == nil || f.path == "" || len(snap) == 0 {
		return nil
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	locked, err := f.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() { _ = f.lock.Unlock() }()

	data, err := json.Marshal(Entry{SavedAt: savedAt.UTC(), Status: snap})
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
