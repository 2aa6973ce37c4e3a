// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"errors"
	"time"

	safemath "github.com/ava-labs/throttling/utils/math"
	"github.com/ava-labs/throttling/utils/units"
)

// ErrNoAllowedUse is the panic value of a reclaim with nothing to reclaim.
var ErrNoAllowedUse = errors.New("no allowed use to reclaim")

// timeline tracks the instant of the latest decision. It is only ever moved
// by the caller supplied time and never moves backwards.
type timeline struct {
	lastDecisionTime time.Time
	hasDecided       bool
}

// advance returns the time elapsed since the last decision and records [now]
// as the latest decision. The first decision, and any [now] that is not after
// the last decision, report zero elapsed time.
func (t *timeline) advance(now time.Time) time.Duration {
	elapsed := t.elapsed(now)
	if !t.hasDecided || now.After(t.lastDecisionTime) {
		t.lastDecisionTime = now
		t.hasDecided = true
	}
	return elapsed
}

func (t *timeline) elapsed(now time.Time) time.Duration {
	if !t.hasDecided {
		return 0
	}
	return max(now.Sub(t.lastDecisionTime), 0)
}

func (t *timeline) reset(lastDecisionTime time.Time) {
	t.lastDecisionTime = lastDecisionTime
	t.hasDecided = !lastDecisionTime.IsZero()
}

// reservation remembers the capacity committed by the most recent successful
// decision so that it can be undone exactly once.
type reservation struct {
	units       uint64
	outstanding bool
}

func (r *reservation) record(units uint64) {
	r.units = units
	r.outstanding = true
}

// take returns the outstanding units and clears the reservation.
//
// Panics if there is no outstanding reservation.
func (r *reservation) take() uint64 {
	if !r.outstanding {
		panic(ErrNoAllowedUse)
	}
	units := r.units
	*r = reservation{}
	return units
}

// opsCapacityRestorable returns the capacity units a bucket draining at
// [mtps] milli-operations per second restores over [elapsed].
func opsCapacityRestorable(mtps uint64, elapsed time.Duration) uint64 {
	if elapsed <= 0 {
		return 0
	}
	// One milli-operation per second restores one capacity unit per
	// nanosecond, see [units.CapacityUnitsPerOp].
	return safemath.SaturatingMul(uint64(elapsed), mtps)
}

// gasCapacityRestorable returns the gas a bucket of [gasPerSecond] restores
// over [elapsed]. A full second, or more, restores the entire bucket.
func gasCapacityRestorable(gasPerSecond uint64, elapsed time.Duration) uint64 {
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= time.Second:
		return gasPerSecond
	default:
		return safemath.MulDiv(uint64(elapsed), gasPerSecond, uint64(time.Second))
	}
}

// capacityFor returns the capacity units of [burstPeriod] at [mtps].
func capacityFor(mtps uint64, burstPeriod time.Duration) uint64 {
	return opsCapacityRestorable(mtps, burstPeriod)
}

// capacityRequiredFor returns the capacity units consumed by [n] operations.
func capacityRequiredFor(n uint64) uint64 {
	return safemath.SaturatingMul(n, units.CapacityUnitsPerOp)
}
