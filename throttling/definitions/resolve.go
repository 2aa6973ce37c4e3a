// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package definitions

import (
	"errors"
	"fmt"

	"github.com/ava-labs/throttling/throttling"

	safemath "github.com/ava-labs/throttling/utils/math"
)

var (
	ErrInvalidSplit     = errors.New("capacity split must be positive")
	ErrSplitTooFine     = errors.New("capacity split leaves bucket without a rate")
	ErrRateOverflow     = errors.New("bucket rate overflows")
	ErrUnsatisfiable    = errors.New("group requirement exceeds bucket capacity")
	errUnvalidatedGroup = errors.New("group was not validated")
)

// Resolved is a bucket instantiated as a throttle, along with the number of
// operations each of its operations consumes from it.
type Resolved struct {
	Throttle *throttling.Throttle
	// OpsRequired maps an operation name, or DefaultOperation, to the number
	// of throttle operations it consumes.
	OpsRequired map[string]uint64
}

// Resolve instantiates the bucket for a network whose capacity is split
// across [n] nodes.
//
// The bucket runs at the least common multiple of the rates of its groups,
// so that each group can be expressed as a whole number of operations. The
// rate is then divided by [n].
func (b *Bucket) Resolve(n int) (*Resolved, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSplit, n)
	}

	var (
		logicalMops uint64 = 1
		groupMops          = make([]uint64, len(b.ThrottleGroups))
	)
	for i := range b.ThrottleGroups {
		mops, err := b.ThrottleGroups[i].MilliOps()
		if err != nil {
			return nil, fmt.Errorf("bucket %q: %w", b.Name, err)
		}
		if mops == 0 {
			return nil, fmt.Errorf("bucket %q: %w", b.Name, errUnvalidatedGroup)
		}
		groupMops[i] = mops

		logicalMops, err = safemath.LCM(logicalMops, mops)
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %q", ErrRateOverflow, b.Name)
		}
	}

	nodeMops := logicalMops / uint64(n)
	if nodeMops == 0 {
		return nil, fmt.Errorf("%w: bucket %q split across %d nodes", ErrSplitTooFine, b.Name, n)
	}
	throttle, err := throttling.NewThrottle(b.Name, nodeMops, b.BurstPeriod())
	if err != nil {
		return nil, err
	}

	opsRequired := make(map[string]uint64)
	for i, group := range b.ThrottleGroups {
		ops := logicalMops / groupMops[i]
		if throttle.CapacityRequiredFor(ops) > throttle.Capacity() {
			return nil, fmt.Errorf("%w: bucket %q group %d requires %d ops, capacity is %s",
				ErrUnsatisfiable,
				b.Name,
				i,
				ops,
				throttle,
			)
		}
		for _, op := range group.Operations {
			opsRequired[op] = ops
		}
	}
	return &Resolved{
		Throttle:    throttle,
		OpsRequired: opsRequired,
	}, nil
}

// RequirementFor returns the requirement [op] places on the resolved bucket.
// Operations the bucket doesn't name fall back to its default group, if any.
func (r *Resolved) RequirementFor(op string) (throttling.Requirement, bool) {
	ops, ok := r.OpsRequired[op]
	if !ok {
		ops, ok = r.OpsRequired[DefaultOperation]
	}
	return throttling.Requirement{
		Throttle:    r.Throttle,
		OpsRequired: ops,
	}, ok
}

// DefaultRequirement returns the requirement of the default group, if the
// bucket has one.
func (r *Resolved) DefaultRequirement() (throttling.Requirement, bool) {
	ops, ok := r.OpsRequired[DefaultOperation]
	return throttling.Requirement{
		Throttle:    r.Throttle,
		OpsRequired: ops,
	}, ok
}
