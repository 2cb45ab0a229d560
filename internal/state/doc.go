// Package state provides the thread-safe snapshot store shared by the
// synchronizer and its readers.
//
// # Overview
//
// The synchronizer is the only writer. It applies every poll result, push
// message and action response through the merge policy in arrival order.
// Readers (the TUI and the watch command) take copies with View and may
// subscribe to change notifications instead of polling.
//
//	Writer (synchronizer loop):       Readers:
//	┌──────────────────────┐          ┌────────────────┐
//	│ poll / push / action │          │ <-Subscribe()  │
//	│        ↓             │          │      ↓         │
//	│ store.Apply()        │─────────→│ store.View()   │
//	│ store.RecordError()  │ (mutex)  │      ↓         │
//	│ store.SetPush...()   │          │ render         │
//	└──────────────────────┘          └────────────────┘
//
// # Update Semantics
//
// Apply merges with preserveHeavy set for partial origins (light polls and
// push frames), so list fields such as todos never collapse to empty
// between full polls. A snapshot seeded from the cold-start cache is
// flagged FromCache; partial updates merge over it and the first full
// update replaces it.
//
// RecordError keeps the previous data and LastUpdated, bumping
// ConsecutiveFailures. RecordSuccess clears both.
//
// # Notifications
//
// Subscribe returns a channel with a buffer of one. Writers never block:
// bursts coalesce into a single pending signal and the reader picks up the
// latest View. Version increases on every change and lets readers skip
// redundant renders.
//
// # Testing Considerations
//
// The zero Store is ready to use with the default merge policy:
//
//	var store state.Store
package state
