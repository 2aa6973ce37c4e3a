// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"errors"
	"fmt"

	safemath "github.com/ava-labs/throttling/utils/math"
)

var (
	ErrInsufficientCapacity    = errors.New("insufficient free capacity")
	ErrSnapshotExceedsCapacity = errors.New("snapshot usage exceeds capacity")
)

// LeakyBucket is a fixed capacity that is consumed by requests and restored
// by leaking. Usage is always in [0, capacity].
type LeakyBucket struct {
	capacity uint64
	used     uint64
}

func NewLeakyBucket(capacity uint64) LeakyBucket {
	return LeakyBucket{capacity: capacity}
}

func (b *LeakyBucket) Capacity() uint64 {
	return b.capacity
}

func (b *LeakyBucket) Used() uint64 {
	return b.used
}

func (b *LeakyBucket) Free() uint64 {
	return b.capacity - b.used
}

// Leak restores up to [units] of used capacity.
func (b *LeakyBucket) Leak(units uint64) {
	b.used = safemath.SaturatingSub(b.used, units)
}

// Use consumes [units] of capacity. If fewer than [units] are free, nothing is
// consumed and an error is returned.
func (b *LeakyBucket) Use(units uint64) error {
	newUsed, err := safemath.Add(b.used, units)
	if err != nil || newUsed > b.capacity {
		return fmt.Errorf("%w: %d requested, %d free", ErrInsufficientCapacity, units, b.Free())
	}
	b.used = newUsed
	return nil
}

// ResetUsed overwrites the used capacity, typically from a snapshot.
func (b *LeakyBucket) ResetUsed(used uint64) error {
	if used > b.capacity {
		return fmt.Errorf("%w: %d used, %d capacity", ErrSnapshotExceedsCapacity, used, b.capacity)
	}
	b.used = used
	return nil
}
