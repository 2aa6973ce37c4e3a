// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ava-labs/throttling/throttling"
	"github.com/ava-labs/throttling/throttling/definitions"
)

// table is an immutable snapshot of the router configuration. The throttles
// it references are mutated by decisions, but the mapping itself is never
// modified once built.
type table struct {
	throttles    []*throttling.Throttle
	groups       map[string]*throttling.RequirementGroup
	defaultGroup *throttling.RequirementGroup
	gas          *throttling.GasThrottle
}

func newEmptyTable(gasPerSecond uint64) *table {
	return &table{
		groups: make(map[string]*throttling.RequirementGroup),
		gas:    throttling.NewGasThrottle(gasPerSecond),
	}
}

// buildTable resolves every bucket of [doc] with a capacity split of [n].
//
// A bucket applies its default group to every operation it doesn't name, so
// an operation named by one bucket still draws from the default group of
// every other bucket that has one.
func buildTable(doc *definitions.Document, n int, gas *throttling.GasThrottle) (*table, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	resolved := make([]*definitions.Resolved, len(doc.Buckets))
	throttles := make([]*throttling.Throttle, len(doc.Buckets))
	for i := range doc.Buckets {
		r, err := doc.Buckets[i].Resolve(n)
		if err != nil {
			return nil, fmt.Errorf("couldn't resolve bucket %q: %w", doc.Buckets[i].Name, err)
		}
		resolved[i] = r
		throttles[i] = r.Throttle
	}

	t := &table{
		throttles: throttles,
		groups:    make(map[string]*throttling.RequirementGroup),
		gas:       gas,
	}
	for _, op := range doc.Operations() {
		var reqs []throttling.Requirement
		for _, r := range resolved {
			if req, ok := r.RequirementFor(op); ok {
				reqs = append(reqs, req)
			}
		}
		t.groups[op] = throttling.NewRequirementGroup(reqs)
	}

	var defaultReqs []throttling.Requirement
	for _, r := range resolved {
		if req, ok := r.DefaultRequirement(); ok {
			defaultReqs = append(defaultReqs, req)
		}
	}
	if len(defaultReqs) > 0 {
		t.defaultGroup = throttling.NewRequirementGroup(defaultReqs)
	}
	return t, nil
}

// groupFor returns the group deciding [kind] and the label its decisions are
// reported under. A nil group means [kind] is always throttled.
func (t *table) groupFor(kind string) (*throttling.RequirementGroup, string) {
	if group, ok := t.groups[kind]; ok {
		return group, kind
	}
	if t.defaultGroup != nil {
		return t.defaultGroup, definitions.DefaultOperation
	}
	return nil, unknownKindLabel
}

// withGas returns a copy of the table deciding gas with [gas].
func (t *table) withGas(gas *throttling.GasThrottle) *table {
	return &table{
		throttles:    t.throttles,
		groups:       t.groups,
		defaultGroup: t.defaultGroup,
		gas:          gas,
	}
}

// operations returns the explicitly throttled operation kinds, sorted.
func (t *table) operations() []string {
	operations := maps.Keys(t.groups)
	slices.Sort(operations)
	return operations
}
