// Package prefs persists the TUI toggles a user flips at runtime (theme,
// log pane, automatic refresh) so the next session opens the same way.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs is the on-disk TOML document.
type Prefs struct {
	Theme       string `toml:"theme"`
	ShowLogs    bool   `toml:"show_logs"`
	AutoRefresh *bool  `toml:"auto_refresh,omitempty"` // nil means on
}

// AutoRefreshEnabled reports whether background updates start with the TUI.
func (p Prefs) AutoRefreshEnabled() bool {
	return p.AutoRefresh == nil || *p.AutoRefresh
}

const (
	defaultPrefsPath = "~/.config/dashsync/prefs.toml"
	defaultTheme     = "Dracula"
)

func defaults() Prefs { return Prefs{Theme: defaultTheme} }

// DefaultPath is used when no prefs path is configured.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load never fails: a missing, unreadable or malformed file yields defaults,
// and a blank theme is replaced by the default one. An empty path means
// DefaultPath.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return defaults(), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return defaults(), nil
	}

	p := defaults()
	if err := toml.Unmarshal(data, &p); err != nil {
		return defaults(), nil
	}
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	return p, nil
}

// Save replaces the file at path with p, creating parent directories.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPrefsPath
	}
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	return filepath.Abs(path)
}
