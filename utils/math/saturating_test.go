// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestSaturatingAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{name: "zero", a: 0, b: 0, want: 0},
		{name: "exact", a: 3, b: 4, want: 7},
		{name: "max boundary", a: 2, b: maxUint64 - 2, want: maxUint64},
		{name: "saturates", a: 3, b: maxUint64 - 2, want: maxUint64},
		{name: "both max", a: maxUint64, b: maxUint64, want: maxUint64},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, SaturatingAdd(test.a, test.b))
		})
	}
}

func TestSaturatingMul(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
	}{
		{name: "zero", a: 0, b: maxUint64, want: 0},
		{name: "exact", a: 3, b: 4, want: 12},
		{name: "fits", a: 2, b: maxUint64 / 2, want: maxUint64 - 1},
		{name: "saturates", a: 3, b: maxUint64 / 2, want: maxUint64},
		{name: "both max", a: maxUint64, b: maxUint64, want: maxUint64},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, SaturatingMul(test.a, test.b))
		})
	}
}

func TestSaturatingSub(t *testing.T) {
	require := require.New(t)

	require.Equal(uint64(1), SaturatingSub(3, 2))
	require.Zero(SaturatingSub(2, 3))
	require.Zero(SaturatingSub(0, maxUint64))
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c uint64
		want    uint64
	}{
		{name: "identity", a: 7, b: 1, c: 1, want: 7},
		{name: "floors", a: 7, b: 2, c: 4, want: 3},
		{name: "wide intermediate", a: maxUint64, b: maxUint64, c: maxUint64, want: maxUint64},
		{name: "wide intermediate shrinks", a: maxUint64, b: 1_000, c: 2_000, want: maxUint64 / 2},
		{name: "saturates", a: maxUint64, b: 3, c: 2, want: maxUint64},
		{name: "gas elapsed", a: 500_000_000, b: 15_000_000, c: 1_000_000_000, want: 7_500_000},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, MulDiv(test.a, test.b, test.c))
		})
	}
}

func TestMulDivPanicsOnZeroDivisor(t *testing.T) {
	require.Panics(t, func() {
		_ = MulDiv(1, 1, 0)
	})
}

func TestScaleBy(t *testing.T) {
	tests := []struct {
		name   string
		x      uint64
		ratios []Ratio
		want   uint64
	}{
		{name: "no ratios", x: 7, want: 7},
		{name: "floors every step", x: 7, ratios: []Ratio{{Num: 1, Den: 2}, {Num: 3, Den: 1}}, want: 9},
		{name: "wide intermediate shrinks", x: 1_000, ratios: []Ratio{{Num: maxUint64, Den: 1}, {Num: 1, Den: 2_000}}, want: maxUint64 / 2},
		{name: "saturates", x: maxUint64, ratios: []Ratio{{Num: 3, Den: 2}}, want: maxUint64},
		{name: "saturated rate stays saturated", x: maxUint64, ratios: []Ratio{{Num: 2, Den: 1}, {Num: 1, Den: 12}}, want: maxUint64 / 6},
		{name: "256 bit overflow", x: maxUint64, ratios: []Ratio{{Num: maxUint64, Den: 1}, {Num: maxUint64, Den: 1}, {Num: maxUint64, Den: 1}, {Num: maxUint64, Den: 1}, {Num: 1, Den: 3}}, want: maxUint64},
		{name: "zero numerator", x: maxUint64, ratios: []Ratio{{Num: maxUint64, Den: 1}, {Num: maxUint64, Den: 1}, {Num: maxUint64, Den: 1}, {Num: maxUint64, Den: 1}, {Num: 0, Den: 1}}, want: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, ScaleBy(test.x, test.ratios...))
		})
	}
}

func TestScaleByPanicsOnZeroDenominator(t *testing.T) {
	require.Panics(t, func() {
		_ = ScaleBy(0, Ratio{Num: 1, Den: 0})
	})
}

func TestLCM(t *testing.T) {
	require := require.New(t)

	got, err := LCM(4_000, 6_000)
	require.NoError(err)
	require.Equal(uint64(12_000), got)

	got, err = LCM(1, 1)
	require.NoError(err)
	require.Equal(uint64(1), got)

	got, err = LCM(0, 5)
	require.NoError(err)
	require.Zero(got)

	_, err = LCM(maxUint64, maxUint64-1)
	require.ErrorIs(err, ErrOverflow)
}

func TestSaturatingArithmeticProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	maxBig := new(big.Int).SetUint64(maxUint64)
	saturate := func(v *big.Int) uint64 {
		if v.Cmp(maxBig) > 0 {
			return maxUint64
		}
		return v.Uint64()
	}

	properties.Property("add matches saturated big arithmetic", prop.ForAll(
		func(a, b uint64) bool {
			want := new(big.Int).Add(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
			return SaturatingAdd(a, b) == saturate(want)
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.Property("mul matches saturated big arithmetic", prop.ForAll(
		func(a, b uint64) bool {
			want := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
			return SaturatingMul(a, b) == saturate(want)
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.Property("muldiv matches saturated big arithmetic", prop.ForAll(
		func(a, b, c uint64) bool {
			want := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
			want.Div(want, new(big.Int).SetUint64(c))
			return MulDiv(a, b, c) == saturate(want)
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.UInt64Range(1, maxUint64),
	))

	properties.TestingRun(t)
}
