// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/throttling/utils/units"
)

var consensusStart = time.Unix(1_234_567, 0).UTC()

func newTestThrottle(t *testing.T, tps uint64) *Throttle {
	t.Helper()

	throttle, err := NewThrottleWithTPS("test", tps)
	require.NoError(t, err)
	return throttle
}

func TestNewThrottle(t *testing.T) {
	tests := []struct {
		name        string
		mtps        uint64
		burstPeriod time.Duration
		wantErr     error
		capacity    uint64
	}{
		{
			name:        "one op per second",
			mtps:        1_000,
			burstPeriod: time.Second,
			capacity:    units.CapacityUnitsPerOp,
		},
		{
			name:        "fractional rate with long burst",
			mtps:        500,
			burstPeriod: 4 * time.Second,
			capacity:    2 * units.CapacityUnitsPerOp,
		},
		{
			name:        "zero rate",
			mtps:        0,
			burstPeriod: time.Second,
			wantErr:     ErrZeroRate,
		},
		{
			name:        "zero burst period",
			mtps:        1_000,
			burstPeriod: 0,
			wantErr:     ErrZeroBurstPeriod,
		},
		{
			name:        "cannot hold one op",
			mtps:        999,
			burstPeriod: time.Second,
			wantErr:     ErrCapacityBelowOneOp,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			throttle, err := NewThrottle("bucket", test.mtps, test.burstPeriod)
			require.ErrorIs(err, test.wantErr)
			if test.wantErr != nil {
				return
			}
			require.Equal(test.capacity, throttle.Capacity())
			require.Equal(test.mtps, throttle.MTPS())
			require.Equal("bucket", throttle.Name())
			require.Zero(throttle.Used())
		})
	}
}

func TestThrottleAllow(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 2)

	require.True(throttle.Allow(1, consensusStart))
	require.True(throttle.Allow(1, consensusStart))
	require.False(throttle.Allow(1, consensusStart))
	require.Equal(throttle.Capacity(), throttle.Used())

	// Half a second restores one of two operations.
	halfSecondLater := consensusStart.Add(500 * time.Millisecond)
	require.True(throttle.Allow(1, halfSecondLater))
	require.False(throttle.Allow(1, halfSecondLater))
	require.Equal(halfSecondLater, throttle.LastDecisionTime())

	// A long pause restores everything, but no more than the capacity.
	require.True(throttle.Allow(2, halfSecondLater.Add(time.Hour)))
	require.False(throttle.Allow(1, halfSecondLater.Add(time.Hour)))
}

func TestThrottleRejectStillLeaks(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 2)
	require.True(throttle.Allow(2, consensusStart))

	// Rejected, as 3 ops never fit, but the elapsed second is still applied.
	require.False(throttle.Allow(3, consensusStart.Add(time.Second)))
	require.Zero(throttle.Used())
	require.Equal(consensusStart.Add(time.Second), throttle.LastDecisionTime())
}

func TestThrottleTimeNeverRunsBackwards(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 1)
	later := consensusStart.Add(time.Minute)
	require.True(throttle.Allow(1, later))

	// An earlier time restores nothing and does not rewind the timeline.
	require.False(throttle.Allow(1, consensusStart))
	require.Equal(later, throttle.LastDecisionTime())

	require.True(throttle.Allow(1, later.Add(time.Second)))
}

func TestThrottleZeroOps(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 1)
	require.True(throttle.Allow(1, consensusStart))
	require.True(throttle.Allow(0, consensusStart))
	require.Equal(throttle.Capacity(), throttle.Used())
}

func TestThrottleReclaimLastAllowedUse(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 5)
	require.True(throttle.Allow(2, consensusStart))
	before := throttle.Used()

	require.True(throttle.Allow(3, consensusStart))
	throttle.ReclaimLastAllowedUse()
	require.Equal(before, throttle.Used())

	// Only the most recent use can be reclaimed, and only once.
	require.PanicsWithValue(ErrNoAllowedUse, throttle.ReclaimLastAllowedUse)
}

func TestThrottleReclaimWithoutAllowPanics(t *testing.T) {
	throttle := newTestThrottle(t, 1)
	require.False(t, throttle.Allow(2, consensusStart))
	require.PanicsWithValue(t, ErrNoAllowedUse, throttle.ReclaimLastAllowedUse)
}

func TestThrottleResetLastAllowedUse(t *testing.T) {
	throttle := newTestThrottle(t, 1)
	require.True(t, throttle.Allow(1, consensusStart))
	throttle.ResetLastAllowedUse()
	require.PanicsWithValue(t, ErrNoAllowedUse, throttle.ReclaimLastAllowedUse)
}

func TestThrottleCapacityFree(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 4)
	require.Equal(throttle.Capacity(), throttle.CapacityFree(consensusStart))

	require.True(throttle.Allow(4, consensusStart))
	require.Zero(throttle.CapacityFree(consensusStart))
	require.Equal(units.CapacityUnitsPerOp, throttle.CapacityFree(consensusStart.Add(250*time.Millisecond)))
	require.Equal(throttle.Capacity(), throttle.CapacityFree(consensusStart.Add(time.Hour)))
	require.InDelta(75.0, throttle.PercentUsed(consensusStart.Add(250*time.Millisecond)), 0.0001)

	// Reading the free capacity does not change the throttle.
	require.Equal(throttle.Capacity(), throttle.Used())
	require.Equal(consensusStart, throttle.LastDecisionTime())
}

func TestThrottleSnapshotRoundTrip(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 10)
	require.True(throttle.Allow(7, consensusStart))
	snapshot := throttle.UsageSnapshot()

	require.True(throttle.Allow(3, consensusStart.Add(time.Millisecond)))
	require.NoError(throttle.ResetToSnapshot(snapshot))
	require.Equal(snapshot, throttle.UsageSnapshot())

	// A fresh throttle restored from the snapshot decides identically.
	replica := newTestThrottle(t, 10)
	require.NoError(replica.ResetToSnapshot(snapshot))
	next := consensusStart.Add(150 * time.Millisecond)
	require.Equal(throttle.Allow(4, next), replica.Allow(4, next))
	require.Equal(throttle.UsageSnapshot(), replica.UsageSnapshot())
}

func TestThrottleResetToInvalidSnapshot(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 1)
	err := throttle.ResetToSnapshot(UsageSnapshot{
		Used:             throttle.Capacity() + 1,
		LastDecisionTime: consensusStart,
	})
	require.ErrorIs(err, ErrSnapshotExceedsCapacity)
	require.Zero(throttle.Used())
}

func TestThrottleResetToNeverDecidedSnapshot(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 1)
	require.True(throttle.Allow(1, consensusStart))
	require.NoError(throttle.ResetToSnapshot(UsageSnapshot{}))

	// Never having decided, the next decision restores nothing.
	require.True(throttle.Allow(1, consensusStart))
	require.False(throttle.Allow(1, consensusStart))
}

func TestThrottleProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	type step struct {
		ops     uint64
		elapsed time.Duration
	}
	genStep := gopter.CombineGens(
		gen.UInt64Range(0, 12),
		gen.Int64Range(-int64(time.Second), int64(3*time.Second)),
	).Map(func(values []interface{}) step {
		return step{
			ops:     values[0].(uint64),
			elapsed: time.Duration(values[1].(int64)),
		}
	})

	properties.Property("used never exceeds capacity", prop.ForAll(
		func(steps []step) bool {
			throttle, err := NewThrottleWithTPS("prop", 10)
			if err != nil {
				return false
			}
			now := consensusStart
			for _, s := range steps {
				now = now.Add(s.elapsed)
				throttle.Allow(s.ops, now)
				if throttle.Used() > throttle.Capacity() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genStep),
	))

	properties.Property("reclaim restores the pre-allow usage", prop.ForAll(
		func(steps []step, ops uint64) bool {
			throttle, err := NewThrottleWithTPS("prop", 10)
			if err != nil {
				return false
			}
			now := consensusStart
			for _, s := range steps {
				now = now.Add(s.elapsed)
				throttle.Allow(s.ops, now)
			}

			// Apply the leak first, so only the allowance is measured.
			throttle.Allow(0, now)
			before := throttle.Used()
			if !throttle.Allow(ops, now) {
				return throttle.Used() == before
			}
			throttle.ReclaimLastAllowedUse()
			return throttle.Used() == before
		},
		gen.SliceOf(genStep),
		gen.UInt64Range(0, 12),
	))

	properties.Property("replicas fed the same decisions agree", prop.ForAll(
		func(steps []step) bool {
			a, err := NewThrottleWithTPS("a", 7)
			if err != nil {
				return false
			}
			b, err := NewThrottleWithTPS("b", 7)
			if err != nil {
				return false
			}
			now := consensusStart
			for _, s := range steps {
				now = now.Add(s.elapsed)
				if a.Allow(s.ops, now) != b.Allow(s.ops, now) {
					return false
				}
				if a.UsageSnapshot() != b.UsageSnapshot() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genStep),
	))

	properties.TestingRun(t)
}

func TestThrottleLeakUntil(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 2)
	require.True(throttle.Allow(2, consensusStart))
	require.Zero(throttle.Free())

	throttle.LeakUntil(consensusStart.Add(500 * time.Millisecond))
	require.Equal(units.CapacityUnitsPerOp, throttle.Free())
	require.Equal(consensusStart.Add(500*time.Millisecond), throttle.LastDecisionTime())

	// Leaking doesn't discard the outstanding use.
	throttle.ReclaimLastAllowedUse()
	require.Equal(throttle.Capacity(), throttle.Free())
}
