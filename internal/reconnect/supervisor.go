package reconnect

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/five82/dashsync/internal/clock"
)

// Supervisor schedules delayed reconnects after the push channel closes.
// It is not safe for concurrent use; the synchronizer calls it from its
// event loop only.
type Supervisor struct {
	sched   clock.Scheduler
	budget  *Linear
	pending clock.Timer
	logger  *slog.Logger
}

// NewSupervisor builds a supervisor around the given budget.
func NewSupervisor(sched clock.Scheduler, budget *Linear, logger *slog.Logger) *Supervisor {
	if sched == nil {
		sched = clock.Real{}
	}
	if budget == nil {
		budget = NewLinear(0, 0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{sched: sched, budget: budget, logger: logger}
}

// OnChannelClosed schedules a single reconnect and returns its delay. When
// the budget is exhausted nothing is scheduled and ok is false. Any reconnect
// still pending is cancelled first.
func (s *Supervisor) OnChannelClosed(reconnect func()) (delay time.Duration, ok bool) {
	delay = s.budget.NextBackOff()
	if delay == backoff.Stop {
		s.logger.Info("push reconnect budget exhausted, polling only",
			"attempts", s.budget.Attempts())
		return 0, false
	}
	s.Cancel()
	s.pending = s.sched.AfterFunc(delay, reconnect)
	s.logger.Info("push reconnect scheduled",
		"attempt", s.budget.Attempts(),
		"delay_ms", delay.Milliseconds())
	return delay, true
}

// Connected resets the budget after a successful open.
func (s *Supervisor) Connected() {
	s.budget.Reset()
}

// Cancel stops any pending reconnect.
func (s *Supervisor) Cancel() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// Reset cancels any pending reconnect and restores the full budget.
func (s *Supervisor) Reset() {
	s.Cancel()
	s.budget.Reset()
}

// Attempts returns the attempts used since the last successful connect.
func (s *Supervisor) Attempts() int {
	return s.budget.Attempts()
}
