// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"time"

	safemath "github.com/ava-labs/throttling/utils/math"
)

// Identity is the ScaleFactor that leaves requirements unchanged.
var Identity = ScaleFactor{Numerator: 1, Denominator: 1}

// ScaleFactor scales the operations required of each throttle in a group.
type ScaleFactor struct {
	Numerator   uint64
	Denominator uint64
}

// Scale returns ops * Numerator / Denominator, but never less than one
// operation.
func (s ScaleFactor) Scale(ops uint64) uint64 {
	if s == Identity || s.Denominator == 0 {
		return ops
	}
	return max(1, safemath.MulDiv(ops, s.Numerator, s.Denominator))
}

// Requirement is the number of operations an operation kind consumes from a
// throttle.
type Requirement struct {
	Throttle    *Throttle
	OpsRequired uint64
}

// RequirementGroup reserves capacity across several throttles at once. Either
// every throttle admits its requirement, or none of them is charged.
type RequirementGroup struct {
	reqs []Requirement
}

// NewRequirementGroup keeps [reqs] in the given order, which is the order in
// which throttles are consulted.
func NewRequirementGroup(reqs []Requirement) *RequirementGroup {
	return &RequirementGroup{
		reqs: append([]Requirement(nil), reqs...),
	}
}

// Requirements returns a copy of the requirements of the group.
func (g *RequirementGroup) Requirements() []Requirement {
	return append([]Requirement(nil), g.reqs...)
}

func (g *RequirementGroup) Throttles() []*Throttle {
	throttles := make([]*Throttle, len(g.reqs))
	for i, req := range g.reqs {
		throttles[i] = req.Throttle
	}
	return throttles
}

// AllReqsMetAt reports whether every requirement of the group fits at [now].
func (g *RequirementGroup) AllReqsMetAt(now time.Time) bool {
	return g.AllReqsMetAtScaled(now, 1, Identity)
}

// AllReqsMetAtScaled reports whether [n] operations fit in every throttle of
// the group at [now], after scaling each requirement by [scale].
//
// Every throttle is consulted, even after one rejects, so that each restores
// the capacity leaked since its last decision. If any throttle rejects, the
// throttles that admitted their requirement are reclaimed.
func (g *RequirementGroup) AllReqsMetAtScaled(now time.Time, n uint64, scale ScaleFactor) bool {
	var (
		passed    = make([]bool, len(g.reqs))
		allPassed = true
	)
	for i, req := range g.reqs {
		ops := safemath.SaturatingMul(scale.Scale(req.OpsRequired), n)
		passed[i] = req.Throttle.Allow(ops, now)
		allPassed = allPassed && passed[i]
	}
	if allPassed {
		return true
	}

	for i, req := range g.reqs {
		if passed[i] {
			req.Throttle.ReclaimLastAllowedUse()
		}
	}
	return false
}

// CurrentUsage returns the usage of each throttle in the group, in order.
func (g *RequirementGroup) CurrentUsage() []UsageSnapshot {
	snapshots := make([]UsageSnapshot, len(g.reqs))
	for i, req := range g.reqs {
		snapshots[i] = req.Throttle.UsageSnapshot()
	}
	return snapshots
}
