// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/throttling/utils/units"
)

var (
	ErrZeroRate           = errors.New("throttle rate must be positive")
	ErrZeroBurstPeriod    = errors.New("throttle burst period must be positive")
	ErrCapacityBelowOneOp = errors.New("throttle capacity is less than one operation")
)

// Throttle is a deterministic leaky bucket. Its state is only ever advanced
// by the times and requests provided by the caller, so two throttles fed the
// same decisions always hold the same state.
//
// Throttle is not safe for concurrent use.
type Throttle struct {
	name     string
	mtps     uint64
	bucket   LeakyBucket
	timeline timeline
	lastUse  reservation
}

// NewThrottle returns a throttle admitting [mtps] milli-operations per second
// that can absorb a burst of [burstPeriod] worth of operations.
func NewThrottle(name string, mtps uint64, burstPeriod time.Duration) (*Throttle, error) {
	if mtps == 0 {
		return nil, fmt.Errorf("%w: %q", ErrZeroRate, name)
	}
	if burstPeriod <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrZeroBurstPeriod, name)
	}
	capacity := capacityFor(mtps, burstPeriod)
	if capacity < units.CapacityUnitsPerOp {
		return nil, fmt.Errorf("%w: %q cannot support %d mtps with a burst period of %s",
			ErrCapacityBelowOneOp,
			name,
			mtps,
			burstPeriod,
		)
	}
	return &Throttle{
		name:   name,
		mtps:   mtps,
		bucket: NewLeakyBucket(capacity),
	}, nil
}

// NewThrottleWithTPS returns a throttle of [tps] operations per second with a
// one second burst period.
func NewThrottleWithTPS(name string, tps uint64) (*Throttle, error) {
	return NewThrottle(name, tps*units.MilliOpsPerOp, time.Second)
}

func (t *Throttle) Name() string {
	return t.name
}

// MTPS is the rate, in milli-operations per second, at which capacity is
// restored.
func (t *Throttle) MTPS() uint64 {
	return t.mtps
}

func (t *Throttle) Capacity() uint64 {
	return t.bucket.Capacity()
}

// Used returns the used capacity as of the last decision.
func (t *Throttle) Used() uint64 {
	return t.bucket.Used()
}

// LastDecisionTime returns the time of the most recent decision, or the zero
// time if no decision was made.
func (t *Throttle) LastDecisionTime() time.Time {
	return t.timeline.lastDecisionTime
}

// CapacityRequiredFor returns the capacity consumed by [n] operations.
func (t *Throttle) CapacityRequiredFor(n uint64) uint64 {
	return capacityRequiredFor(n)
}

// Allow reports whether [n] operations fit at [now], consuming their capacity
// if they do. Capacity restored since the last decision is applied whether or
// not the operations fit.
func (t *Throttle) Allow(n uint64, now time.Time) bool {
	t.LeakUntil(now)

	required := capacityRequiredFor(n)
	if err := t.bucket.Use(required); err != nil {
		return false
	}
	t.lastUse.record(required)
	return true
}

// ReclaimLastAllowedUse restores the capacity consumed by the most recent
// successful Allow.
//
// Panics with ErrNoAllowedUse if there is no such use outstanding.
func (t *Throttle) ReclaimLastAllowedUse() {
	t.bucket.Leak(t.lastUse.take())
}

// ResetLastAllowedUse forgets the most recent successful Allow, after which
// it can no longer be reclaimed.
func (t *Throttle) ResetLastAllowedUse() {
	t.lastUse = reservation{}
}

// Free returns the capacity free as of the last decision.
func (t *Throttle) Free() uint64 {
	return t.bucket.Free()
}

// CapacityFree returns the capacity that would be free at [now] without
// changing the throttle.
func (t *Throttle) CapacityFree(now time.Time) uint64 {
	restorable := opsCapacityRestorable(t.mtps, t.timeline.elapsed(now))
	return min(t.bucket.Capacity(), t.bucket.Free()+min(restorable, t.bucket.Used()))
}

// PercentUsed returns the percentage of capacity that would be used at [now].
// It is only intended for reporting.
func (t *Throttle) PercentUsed(now time.Time) float64 {
	used := t.bucket.Capacity() - t.CapacityFree(now)
	return 100 * float64(used) / float64(t.bucket.Capacity())
}

func (t *Throttle) UsageSnapshot() UsageSnapshot {
	return UsageSnapshot{
		Used:             t.bucket.Used(),
		LastDecisionTime: t.timeline.lastDecisionTime,
	}
}

// ResetToSnapshot overwrites the usage of the throttle with [snapshot]. Any
// outstanding allowed use is forgotten.
func (t *Throttle) ResetToSnapshot(snapshot UsageSnapshot) error {
	if err := t.bucket.ResetUsed(snapshot.Used); err != nil {
		return fmt.Errorf("throttle %q: %w", t.name, err)
	}
	t.timeline.reset(snapshot.LastDecisionTime)
	t.lastUse = reservation{}
	return nil
}

// LeakUntil restores the capacity leaked since the last decision, recording
// [now] as a decision that consumed nothing. Any outstanding allowed use can
// still be reclaimed.
func (t *Throttle) LeakUntil(now time.Time) {
	t.bucket.Leak(opsCapacityRestorable(t.mtps, t.timeline.advance(now)))
}

func (t *Throttle) String() string {
	return fmt.Sprintf("%s(mtps=%d, capacity=%d, used=%d)", t.name, t.mtps, t.bucket.Capacity(), t.bucket.Used())
}
