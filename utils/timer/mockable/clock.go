// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mockable

import (
	"sync"
	"time"
)

// Clock wraps the wall clock so that advisory throttling can be driven by a
// fixed timeline in tests. Binding decisions must never consult a Clock.
//
// The zero value reads the wall clock. Clock is safe for concurrent use.
type Clock struct {
	lock  sync.RWMutex
	faked bool
	time  time.Time
}

// Set freezes the clock at [t].
func (c *Clock) Set(t time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.faked = true
	c.time = t
}

// Advance moves a frozen clock forward by [d]. It is a no-op on a clock that
// is synced with the wall clock.
func (c *Clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.faked {
		c.time = c.time.Add(d)
	}
}

// Sync this clock with the wall clock.
func (c *Clock) Sync() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.faked = false
}

// Time returns the time on this clock
func (c *Clock) Time() time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.faked {
		return c.time
	}
	return time.Now()
}
