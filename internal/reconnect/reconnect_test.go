package reconnect

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/dashsync/internal/clock/clocktest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLinear_DelaySequence(t *testing.T) {
	l := NewLinear(2*time.Second, 15*time.Second, 3)

	assert.Equal(t, 2*time.Second, l.NextBackOff())
	assert.Equal(t, 4*time.Second, l.NextBackOff())
	assert.Equal(t, 6*time.Second, l.NextBackOff())
	assert.Equal(t, backoff.Stop, l.NextBackOff())
	assert.Equal(t, 3, l.Attempts())

	l.Reset()
	assert.Equal(t, 0, l.Attempts())
	assert.Equal(t, 2*time.Second, l.NextBackOff())
}

func TestLinear_DelayNeverExceedsMax(t *testing.T) {
	l := NewLinear(2*time.Second, 15*time.Second, 100)
	for attempts := 0; attempts <= 50; attempts++ {
		d := l.Delay(attempts)
		if d > 15*time.Second {
			t.Fatalf("Delay(%d) = %v, exceeds max", attempts, d)
		}
	}
	assert.Equal(t, 15*time.Second, l.Delay(7))
	assert.Equal(t, 2*time.Second, l.Delay(-1))
}

func TestNewLinear_Defaults(t *testing.T) {
	l := NewLinear(0, -1, 0)
	assert.Equal(t, DefaultBaseDelay, l.Base)
	assert.Equal(t, DefaultMaxDelay, l.Max)
	assert.Equal(t, DefaultMaxAttempts, l.Ceiling)
}

func TestSupervisor_CeilingStopsScheduling(t *testing.T) {
	clk := clocktest.NewFake(time.Unix(0, 0))
	s := NewSupervisor(clk, NewLinear(0, 0, 0), quietLogger())

	reconnects := 0
	var delays []time.Duration
	for i := 0; i < 3; i++ {
		d, ok := s.OnChannelClosed(func() { reconnects++ })
		require.True(t, ok)
		delays = append(delays, d)
		clk.Advance(d)
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, delays)
	assert.Equal(t, 3, reconnects)

	_, ok := s.OnChannelClosed(func() { reconnects++ })
	assert.False(t, ok)
	clk.Advance(time.Minute)
	assert.Equal(t, 3, reconnects)
	assert.Empty(t, clk.Pending())
}

func TestSupervisor_ConnectedResetsBudget(t *testing.T) {
	clk := clocktest.NewFake(time.Unix(0, 0))
	s := NewSupervisor(clk, nil, quietLogger())

	_, _ = s.OnChannelClosed(func() {})
	_, _ = s.OnChannelClosed(func() {})
	assert.Equal(t, 2, s.Attempts())

	s.Connected()
	d, ok := s.OnChannelClosed(func() {})
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
}

func TestSupervisor_NoOverlappingTimers(t *testing.T) {
	clk := clocktest.NewFake(time.Unix(0, 0))
	s := NewSupervisor(clk, nil, quietLogger())

	first, second := 0, 0
	_, _ = s.OnChannelClosed(func() { first++ })
	_, _ = s.OnChannelClosed(func() { second++ })
	assert.Len(t, clk.Pending(), 1)

	clk.Advance(time.Minute)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestSupervisor_ResetCancelsPending(t *testing.T) {
	clk := clocktest.NewFake(time.Unix(0, 0))
	s := NewSupervisor(clk, nil, quietLogger())

	fired := false
	_, _ = s.OnChannelClosed(func() { fired = true })
	s.Reset()
	clk.Advance(time.Minute)

	assert.False(t, fired)
	assert.Equal(t, 0, s.Attempts())
}
