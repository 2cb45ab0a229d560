// Package config handles loading and parsing the dashsync configuration file.
//
// # Overview
//
// This package reads dashsync's TOML configuration: where the dashboard
// server lives, how often to poll, how hard to retry the push channel, and
// where to keep the token, cache and log files.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/dashsync/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing, empty or non-positive, use defaults
//
// # Default Values
//
//   - Server: http://127.0.0.1:8000, API prefix /api, push path /ws
//   - Poll: every 60s, every 5th tick full, first full fetch after 800ms
//   - Reconnect: 2s linear steps capped at 15s, 3 attempts
//   - Token file: ~/.config/dashsync/token
//   - Cache: ~/.cache/dashsync/status.json ("off" disables it)
//   - Log: ~/.local/state/dashsync/dashsync.log at level info
//   - Merge: heavy fields todos, completed_tasks, logs, usage_panels;
//     nullable field minimax
//
// # TOML Format
//
//	base_url = "http://127.0.0.1:8000"
//	api_prefix = "/api"
//	poll_seconds = 60
//	full_every = 5
//
//	[reconnect]
//	base_ms = 2000
//	max_ms = 15000
//	max_attempts = 3
//
//	[log]
//	level = "debug"
//
//	[merge]
//	heavy_fields = ["todos", "logs"]
//
// All fields are optional. Tilde expansion is performed on every path.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors
//
// Missing config files are NOT an error. dashsync works out of the box
// against a local server.
package config
