// Package reconnect owns the retry policy for the push channel.
package reconnect

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 15 * time.Second
	DefaultMaxAttempts = 3
)

// Linear is a retry budget whose delay grows linearly with each attempt,
// capped at Max, and which stops after Ceiling attempts.
type Linear struct {
	Base    time.Duration
	Max     time.Duration
	Ceiling int

	attempts int
}

var _ backoff.BackOff = (*Linear)(nil)

// NewLinear returns a Linear budget with the given parameters. Non-positive
// values fall back to the defaults.
func NewLinear(base, maxDelay time.Duration, ceiling int) *Linear {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if ceiling <= 0 {
		ceiling = DefaultMaxAttempts
	}
	return &Linear{Base: base, Max: maxDelay, Ceiling: ceiling}
}

// Delay returns the delay used after the given number of spent attempts.
func (l *Linear) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	d := l.Base * time.Duration(attempts+1)
	if d > l.Max || d <= 0 {
		return l.Max
	}
	return d
}

// NextBackOff consumes one attempt and returns its delay, or backoff.Stop
// once the ceiling is reached.
func (l *Linear) NextBackOff() time.Duration {
	if l.attempts >= l.Ceiling {
		return backoff.Stop
	}
	d := l.Delay(l.attempts)
	l.attempts++
	return d
}

// Reset restores the full budget.
func (l *Linear) Reset() {
	l.attempts = 0
}

// Attempts returns the number of attempts used since the last reset.
func (l *Linear) Attempts() int {
	return l.attempts
}
