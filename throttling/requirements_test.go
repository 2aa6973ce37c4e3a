// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScaleFactor(t *testing.T) {
	tests := []struct {
		name  string
		scale ScaleFactor
		ops   uint64
		want  uint64
	}{
		{
			name:  "identity",
			scale: Identity,
			ops:   7,
			want:  7,
		},
		{
			name:  "halved",
			scale: ScaleFactor{Numerator: 1, Denominator: 2},
			ops:   7,
			want:  3,
		},
		{
			name:  "never below one",
			scale: ScaleFactor{Numerator: 1, Denominator: 100},
			ops:   7,
			want:  1,
		},
		{
			name:  "zero denominator",
			scale: ScaleFactor{Numerator: 5},
			ops:   7,
			want:  7,
		},
		{
			name:  "tripled",
			scale: ScaleFactor{Numerator: 3, Denominator: 1},
			ops:   7,
			want:  21,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, test.scale.Scale(test.ops))
		})
	}
}

func TestRequirementGroupAllOrNothing(t *testing.T) {
	require := require.New(t)

	wide := newTestThrottle(t, 10)
	narrow := newTestThrottle(t, 2)
	group := NewRequirementGroup([]Requirement{
		{Throttle: wide, OpsRequired: 3},
		{Throttle: narrow, OpsRequired: 1},
	})

	require.True(group.AllReqsMetAt(consensusStart))
	require.True(group.AllReqsMetAt(consensusStart))
	before := group.CurrentUsage()

	// The narrow throttle is exhausted, so the wide one must not be charged.
	require.False(group.AllReqsMetAt(consensusStart))
	require.Equal(before, group.CurrentUsage())
	require.Equal(6*wide.CapacityRequiredFor(1), wide.Used())
}

func TestRequirementGroupConsultsEveryThrottle(t *testing.T) {
	require := require.New(t)

	first := newTestThrottle(t, 1)
	second := newTestThrottle(t, 1)
	group := NewRequirementGroup([]Requirement{
		{Throttle: first, OpsRequired: 2},
		{Throttle: second, OpsRequired: 1},
	})

	// The first throttle rejects, yet the second still observes the decision.
	later := consensusStart.Add(time.Second)
	require.False(group.AllReqsMetAt(later))
	require.Equal(later, first.LastDecisionTime())
	require.Equal(later, second.LastDecisionTime())
	require.Zero(second.Used())
}

func TestRequirementGroupScaled(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 10)
	group := NewRequirementGroup([]Requirement{
		{Throttle: throttle, OpsRequired: 4},
	})

	half := ScaleFactor{Numerator: 1, Denominator: 2}
	require.True(group.AllReqsMetAtScaled(consensusStart, 3, half))
	require.Equal(throttle.CapacityRequiredFor(6), throttle.Used())
	require.False(group.AllReqsMetAtScaled(consensusStart, 3, half))
	require.Equal(throttle.CapacityRequiredFor(6), throttle.Used())
}

func TestRequirementGroupCopiesInput(t *testing.T) {
	require := require.New(t)

	throttle := newTestThrottle(t, 1)
	reqs := []Requirement{{Throttle: throttle, OpsRequired: 1}}
	group := NewRequirementGroup(reqs)
	reqs[0].OpsRequired = 5

	require.Equal(uint64(1), group.Requirements()[0].OpsRequired)
	require.Equal([]*Throttle{throttle}, group.Throttles())
}
