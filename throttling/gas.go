// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"fmt"
	"time"
)

// GasThrottle is a deterministic leaky bucket of gas. A full bucket holds one
// second of gas and is entirely restored by one second of elapsed time.
//
// GasThrottle is not safe for concurrent use.
type GasThrottle struct {
	bucket   LeakyBucket
	timeline timeline
	lastUse  reservation
}

func NewGasThrottle(gasPerSecond uint64) *GasThrottle {
	return &GasThrottle{
		bucket: NewLeakyBucket(gasPerSecond),
	}
}

// Capacity returns the gas per second of the throttle.
func (g *GasThrottle) Capacity() uint64 {
	return g.bucket.Capacity()
}

func (g *GasThrottle) Used() uint64 {
	return g.bucket.Used()
}

// Allow reports whether [gas] fits at [now], consuming it if it does.
func (g *GasThrottle) Allow(gas uint64, now time.Time) bool {
	g.bucket.Leak(gasCapacityRestorable(g.bucket.Capacity(), g.timeline.advance(now)))

	if err := g.bucket.Use(gas); err != nil {
		return false
	}
	g.lastUse.record(gas)
	return true
}

// ReclaimLastAllowedUse restores the gas consumed by the most recent successful
// Allow.
//
// Panics with ErrNoAllowedUse if there is no such use outstanding.
func (g *GasThrottle) ReclaimLastAllowedUse() {
	g.bucket.Leak(g.lastUse.take())
}

// LeakUnusedGasPreviouslyReserved returns [gas] that was reserved by Allow but
// not consumed by execution.
func (g *GasThrottle) LeakUnusedGasPreviouslyReserved(gas uint64) {
	g.bucket.Leak(gas)
}

func (g *GasThrottle) UsageSnapshot() UsageSnapshot {
	return UsageSnapshot{
		Used:             g.bucket.Used(),
		LastDecisionTime: g.timeline.lastDecisionTime,
	}
}

func (g *GasThrottle) ResetToSnapshot(snapshot UsageSnapshot) error {
	if err := g.bucket.ResetUsed(snapshot.Used); err != nil {
		return fmt.Errorf("gas throttle: %w", err)
	}
	g.timeline.reset(snapshot.LastDecisionTime)
	g.lastUse = reservation{}
	return nil
}
