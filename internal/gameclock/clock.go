// Package gameclock tracks the offset between the local clock and the game
// server's clock. Every session owns one clock; the login reply seeds it and
// each heartbeat reply refreshes it.
package gameclock

import (
	"sync"
	"time"
)

type Clock struct {
	mu           sync.Mutex
	serverMillis int64
	syncedAt     time.Time
	now          func() time.Time
}

func New() *Clock {
	return &Clock{now: time.Now}
}

// NewAt builds a clock with an injectable local time source, for tests.
func NewAt(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Sync records the server's current time in milliseconds.
func (c *Clock) Sync(serverMillis int64) {
	if serverMillis <= 0 {
		return
	}
	c.mu.Lock()
	c.serverMillis = serverMillis
	c.syncedAt = c.now()
	c.mu.Unlock()
}

// NowSec returns the estimated server time in unix seconds. Before the
// first sync it falls back to the local clock.
func (c *Clock) NowSec() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serverMillis == 0 {
		return c.now().Unix()
	}
	elapsed := c.now().Sub(c.syncedAt)
	return (c.serverMillis + elapsed.Milliseconds()) / 1000
}

// Synced reports whether the clock has seen at least one server timestamp.
func (c *Clock) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverMillis != 0
}

// ToSec normalizes a server timestamp that may be in seconds or
// milliseconds depending on the field. Zero and negatives mean "unset".
func ToSec(v int64) int64 {
	if v <= 0 {
		return 0
	}
	if v > 1e12 {
		return v / 1000
	}
	return v
}
