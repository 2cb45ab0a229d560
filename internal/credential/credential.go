// Package credential supplies the bearer token used for REST calls and the
// push handshake, and forgets it when the server rejects it.
package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Provider exposes the current bearer token. Token returns "" when no
// session is available. ClearSession is called after an authentication
// failure.
type Provider interface {
	Token() string
	ClearSession()
}

// Static holds a token supplied on the command line or environment.
type Static struct {
	mu    sync.RWMutex
	token string
}

// NewStatic returns a provider for a fixed token.
func NewStatic(token string) *Static {
	return &Static{token: strings.TrimSpace(token)}
}

func (s *Static) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Static) ClearSession() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// File reads the token from a file and reloads it when the file changes.
type File struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewFile loads path. A missing file yields an empty token rather than an
// error so the client can start before the first login.
func NewFile(path string, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &File{path: path, logger: logger}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Token() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.token
}

// ClearSession forgets the token and removes the file.
func (f *File) ClearSession() {
	f.mu.Lock()
	f.token = ""
	f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Warn("remove token file", "path", f.path, "error", err)
		return
	}
	f.logger.Info("session cleared", "path", f.path)
}

func (f *File) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.set("")
			return nil
		}
		return fmt.Errorf("read token file: %w", err)
	}
	f.set(strings.TrimSpace(string(data)))
	return nil
}

func (f *File) set(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

// Watch reloads the token whenever the file is written, created or removed,
// until ctx is done. The parent directory is watched so that editors which
// replace the file by rename are picked up. onChange, if non-nil, runs after
// every reload.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch token directory %s: %w", dir, err)
	}

	name := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := f.reload(); err != nil {
				f.logger.Warn("reload token", "error", err)
				continue
			}
			f.logger.Debug("token reloaded", "path", f.path, "present", f.Token() != "")
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("token watcher error", "error", err)
		}
	}
}
