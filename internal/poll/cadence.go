package poll

import "time"

const (
	DefaultInterval         = 60 * time.Second
	DefaultFullEvery        = 5
	DefaultInitialFullDelay = 800 * time.Millisecond
)

// Cadence counts poll ticks and decides which ones fetch the full document.
// The zero value uses DefaultFullEvery.
type Cadence struct {
	FullEvery int
	tick      int
}

// Next advances the tick counter and reports whether this tick is light.
func (c *Cadence) Next() (tick int, light bool) {
	c.tick++
	return c.tick, !IsFullTick(c.tick, c.fullEvery())
}

// Reset returns the counter to zero.
func (c *Cadence) Reset() {
	c.tick = 0
}

// Tick returns the number of ticks since the last reset.
func (c *Cadence) Tick() int {
	return c.tick
}

func (c *Cadence) fullEvery() int {
	if c.FullEvery <= 0 {
		return DefaultFullEvery
	}
	return c.FullEvery
}

// IsFullTick reports whether the given 1-based tick fetches the full document.
func IsFullTick(tick, every int) bool {
	return every > 0 && tick > 0 && tick%every == 0
}
