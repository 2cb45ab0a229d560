// Package app is the composition root for dashsync.
//
// # Overview
//
// Build wires configuration, logging, credentials, the dashboard client,
// the poller, the snapshot store, the cold-start cache, metrics and the
// synchronizer into a Runtime. Serve then runs the long-lived goroutines
// under one errgroup:
//
//  1. The synchronizer event loop (synchronizer.Run)
//  2. The token file watcher, when the token comes from a file
//  3. The /metrics and /healthz listener, when metrics_addr is set
//  4. The foreground consumer: the TUI (Run) or the line printer (Watch)
//
// When the foreground consumer returns, the shared context is cancelled and
// the synchronizer tears down its timers, fetches and push channel before
// Serve returns.
//
// # Data Flow
//
//	config.Load ─> logging.New ─> credential.{Static,File}
//	     │
//	     ├─> dashboard.NewClient ─> poll.New ──────────────┐
//	     ├─> cache.Load ─> state.Store.Seed                │
//	     └─> synchronizer.New(Fetcher=poller, Store, ...) <┘
//	              │
//	              ├─> poll ticks (light/full) ─> Store.Apply
//	              ├─> push channel frames     ─> Store.Apply
//	              └─> full fetches            ─> cache.Save
//
// # Error Handling
//
// Configuration, credential and client setup errors are returned from
// Build. Once running, fetch and push failures are recorded in the store and
// never end the process.
package app
