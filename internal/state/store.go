package state

import (
	"sync"
	"time"

	"github.com/five82/dashsync/internal/status"
)

// View represents the latest data available to readers.
type View struct {
	Status              status.Snapshot
	HasStatus           bool
	FromCache           bool // Status was seeded from the on-disk cache and not yet confirmed
	LastUpdated         time.Time
	LastError           string
	ConsecutiveFailures int // Number of consecutive fetch failures
	PushConnected       bool
	Loading             bool
	History             []map[string]any
	Version             uint64
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (v View) IsOffline() bool {
	return v.ConsecutiveFailures >= 2
}

// Store holds the status snapshot and the connection flags shown next to it.
// The zero value is ready to use with the default merge policy.
type Store struct {
	mu        sync.RWMutex
	policy    status.Policy
	hasPolicy bool
	view      View

	subs    map[int]chan struct{}
	nextSub int
}

// NewStore returns a Store that merges with policy.
func NewStore(policy status.Policy) *Store {
	return &Store{policy: policy, hasPolicy: true}
}

func (s *Store) mergePolicy() status.Policy {
	if !s.hasPolicy {
		s.policy = status.DefaultPolicy()
		s.hasPolicy = true
	}
	return s.policy
}

// Seed installs a cached snapshot when nothing better is known. It is a
// no-op once a live update has been applied.
func (s *Store) Seed(snap status.Snapshot, savedAt time.Time) bool {
	if len(snap) == 0 {
		return false
	}
	s.mu.Lock()
	if s.view.HasStatus {
		s.mu.Unlock()
		return false
	}
	s.view.Status = snap.Clone()
	s.view.HasStatus = true
	s.view.FromCache = true
	s.view.LastUpdated = savedAt
	s.changedLocked()
	s.mu.Unlock()
	s.notify()
	return true
}

// Apply merges an update into the snapshot and refreshes LastUpdated.
// Partial origins keep heavy and nullable fields that the update leaves
// empty. Only a full poll replaces cached data outright; action results
// carry a single field and merge over it.
func (s *Store) Apply(u status.Update, now time.Time) {
	s.mu.Lock()
	policy := s.mergePolicy()
	switch {
	case s.view.FromCache && u.Origin == status.OriginPollFull:
		if len(u.Fields) > 0 {
			s.view.Status = u.Fields.Clone()
			s.view.FromCache = false
		}
	default:
		s.view.Status = policy.Merge(s.view.Status, u.Fields.Clone(), u.Origin.Partial())
	}
	s.view.HasStatus = s.view.Status != nil
	s.view.LastUpdated = now
	s.changedLocked()
	s.mu.Unlock()
	s.notify()
}

// RecordSuccess clears the error state after a successful fetch.
func (s *Store) RecordSuccess() {
	s.mu.Lock()
	s.view.LastError = ""
	s.view.ConsecutiveFailures = 0
	s.changedLocked()
	s.mu.Unlock()
	s.notify()
}

// RecordError keeps the previous data but records msg for display.
func (s *Store) RecordError(msg string) {
	s.mu.Lock()
	s.view.LastError = msg
	s.view.ConsecutiveFailures++
	s.changedLocked()
	s.mu.Unlock()
	s.notify()
}

// ClearError drops the displayed error without touching the failure count.
func (s *Store) ClearError() {
	s.update(func(v *View) bool {
		if v.LastError == "" {
			return false
		}
		v.LastError = ""
		return true
	})
}

// SetPushConnected records whether the push stream is open.
func (s *Store) SetPushConnected(connected bool) {
	s.update(func(v *View) bool {
		if v.PushConnected == connected {
			return false
		}
		v.PushConnected = connected
		return true
	})
}

// SetLoading records whether a fetch is in flight.
func (s *Store) SetLoading(loading bool) {
	s.update(func(v *View) bool {
		if v.Loading == loading {
			return false
		}
		v.Loading = loading
		return true
	})
}

// SetHistory replaces the completed-task history list.
func (s *Store) SetHistory(items []map[string]any) {
	s.update(func(v *View) bool {
		v.History = cloneItems(items)
		return true
	})
}

func (s *Store) update(fn func(v *View) bool) {
	s.mu.Lock()
	if !fn(&s.view) {
		s.mu.Unlock()
		return
	}
	s.changedLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) changedLocked() {
	s.view.Version++
}

// View returns a copy of the current view.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.view
	v.Status = s.view.Status.Clone()
	v.History = cloneItems(s.view.History)
	return v
}

// Subscribe returns a channel that receives a value after every change.
// Notifications coalesce: a slow reader sees one pending signal, then
// reads the latest View. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]chan struct{})
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func cloneItems(items []map[string]any) []map[string]any {
	if len(items) == 0 {
		return nil
	}
	dup := make([]map[string]any, len(items))
	for i, item := range items {
		dup[i] = status.Snapshot(item).Clone()
	}
	return dup
}
