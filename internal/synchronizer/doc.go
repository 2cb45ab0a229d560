// Package synchronizer keeps the status store fresh from two channels: a
// light/full poll cadence and a pushed event stream with bounded reconnects.
//
// # Event Loop
//
// One goroutine, started with Run, owns every timer, the push channel
// handle, the tick counter and the retry budget. Timer callbacks, fetch
// completions and channel events are posted to it as closures and run in
// arrival order, so the store sees updates in the order they arrived.
// Fetches and the WebSocket reader run on their own goroutines.
//
// # Lifecycle
//
// Start issues a light fetch immediately, a full fetch after a short delay,
// opens the push channel and arms the repeating poll timer. Every fifth tick
// fetches the full document.
//
// Stop cancels the poll timer, the first full fetch, the pending reconnect,
// in-flight requests and the push channel. Each Start opens a new
// generation; callbacks from an older generation are dropped, so nothing
// written before Stop returned can land afterwards.
//
// # Push Recovery
//
// When the push channel closes while auto-refresh is on, the reconnect
// supervisor schedules one reopen with linear backoff (2s, 4s, 6s) and gives
// up after three attempts without a successful connect. Polling continues
// either way. A push reconnect does not force a full poll.
package synchronizer
