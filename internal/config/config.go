package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything dashsync reads from config.toml.
type Config struct {
	BaseURL          string
	APIPrefix        string
	WSPath           string
	TokenFile        string
	CachePath        string // empty disables the cold-start cache
	PollInterval     time.Duration
	FullEvery        int
	InitialFullDelay time.Duration
	RequestTimeout   time.Duration
	MetricsAddr      string

	Reconnect Reconnect
	Log       Log

	HeavyFields    []string
	NullableFields []string
}

// Reconnect bounds push channel recovery.
type Reconnect struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Log configures the rotating log file.
type Log struct {
	File  string // empty logs to stderr
	Level string
}

const (
	defaultConfigPath     = "~/.config/dashsync/config.toml"
	defaultBaseURL        = "http://127.0.0.1:8000"
	defaultAPIPrefix      = "/api"
	defaultWSPath         = "/ws"
	defaultTokenFile      = "~/.config/dashsync/token"
	defaultCachePath      = "~/.cache/dashsync/status.json"
	defaultLogFile        = "~/.local/state/dashsync/dashsync.log"
	defaultLogLevel       = "info"
	defaultPollSeconds    = 60
	defaultFullEvery      = 5
	defaultInitialFullMS  = 800
	defaultTimeoutSeconds = 10
	defaultReconnectBase  = 2000
	defaultReconnectMax   = 15000
	defaultReconnectTries = 3

	// disabled turns the cache off when used as cache_path, and sends logs
	// to stderr when used as the log file.
	disabled = "off"
)

var (
	defaultHeavyFields    = []string{"todos", "completed_tasks", "logs", "usage_panels"}
	defaultNullableFields = []string{"minimax"}
)

type rawConfig struct {
	BaseURL               string `toml:"base_url"`
	APIPrefix             string `toml:"api_prefix"`
	WSPath                string `toml:"ws_path"`
	TokenFile             string `toml:"token_file"`
	CachePath             string `toml:"cache_path"`
	PollSeconds           int    `toml:"poll_seconds"`
	FullEvery             int    `toml:"full_every"`
	InitialFullDelayMS    int    `toml:"initial_full_delay_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MetricsAddr           string `toml:"metrics_addr"`

	Reconnect struct {
		BaseMS      int `toml:"base_ms"`
		MaxMS       int `toml:"max_ms"`
		MaxAttempts int `toml:"max_attempts"`
	} `toml:"reconnect"`

	Log struct {
		File  string `toml:"file"`
		Level string `toml:"level"`
	} `toml:"log"`

	Merge struct {
		HeavyFields    []string `toml:"heavy_fields"`
		NullableFields []string `toml:"nullable_fields"`
	} `toml:"merge"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BaseURL:          defaultBaseURL,
		APIPrefix:        defaultAPIPrefix,
		WSPath:           defaultWSPath,
		TokenFile:        mustExpand(defaultTokenFile),
		CachePath:        mustExpand(defaultCachePath),
		PollInterval:     defaultPollSeconds * time.Second,
		FullEvery:        defaultFullEvery,
		InitialFullDelay: defaultInitialFullMS * time.Millisecond,
		RequestTimeout:   defaultTimeoutSeconds * time.Second,
		Reconnect: Reconnect{
			BaseDelay:   defaultReconnectBase * time.Millisecond,
			MaxDelay:    defaultReconnectMax * time.Millisecond,
			MaxAttempts: defaultReconnectTries,
		},
		Log: Log{
			File:  mustExpand(defaultLogFile),
			Level: defaultLogLevel,
		},
		HeavyFields:    append([]string(nil), defaultHeavyFields...),
		NullableFields: append([]string(nil), defaultNullableFields...),
	}
}

// Load locates and parses the dashsync config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return raw.resolve(), nil
}

func (raw rawConfig) resolve() Config {
	cfg := Default()

	cfg.BaseURL = orDefault(raw.BaseURL, defaultBaseURL)
	cfg.APIPrefix = orDefault(raw.APIPrefix, defaultAPIPrefix)
	cfg.WSPath = orDefault(raw.WSPath, defaultWSPath)
	cfg.TokenFile = mustExpand(orDefault(raw.TokenFile, defaultTokenFile))
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	switch cache := strings.TrimSpace(raw.CachePath); {
	case strings.EqualFold(cache, disabled):
		cfg.CachePath = ""
	case cache != "":
		cfg.CachePath = mustExpand(cache)
	}

	if raw.PollSeconds > 0 {
		cfg.PollInterval = time.Duration(raw.PollSeconds) * time.Second
	}
	if raw.FullEvery > 0 {
		cfg.FullEvery = raw.FullEvery
	}
	if raw.InitialFullDelayMS > 0 {
		cfg.InitialFullDelay = time.Duration(raw.InitialFullDelayMS) * time.Millisecond
	}
	if raw.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(raw.RequestTimeoutSeconds) * time.Second
	}

	if raw.Reconnect.BaseMS > 0 {
		cfg.Reconnect.BaseDelay = time.Duration(raw.Reconnect.BaseMS) * time.Millisecond
	}
	if raw.Reconnect.MaxMS > 0 {
		cfg.Reconnect.MaxDelay = time.Duration(raw.Reconnect.MaxMS) * time.Millisecond
	}
	if raw.Reconnect.MaxAttempts > 0 {
		cfg.Reconnect.MaxAttempts = raw.Reconnect.MaxAttempts
	}

	if file := strings.TrimSpace(raw.Log.File); strings.EqualFold(file, disabled) {
		cfg.Log.File = ""
	} else {
		cfg.Log.File = mustExpand(orDefault(file, defaultLogFile))
	}
	cfg.Log.Level = strings.ToLower(orDefault(raw.Log.Level, defaultLogLevel))

	if raw.Merge.HeavyFields != nil {
		cfg.HeavyFields = trimAll(raw.Merge.HeavyFields)
	}
	if raw.Merge.NullableFields != nil {
		cfg.NullableFields = trimAll(raw.Merge.NullableFields)
	}
	return cfg
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func orDefault(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
