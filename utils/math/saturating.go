// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"

	"github.com/holiman/uint256"
)

var uint64Ceiling = new(uint256.Int).SetUint64(math.MaxUint64)

// SaturatingAdd returns a + b, or MaxUint64 if the sum would overflow.
func SaturatingAdd(a, b uint64) uint64 {
	sum, err := Add(a, b)
	if err != nil {
		return math.MaxUint64
	}
	return sum
}

// SaturatingMul returns a * b, or MaxUint64 if the product would overflow.
func SaturatingMul(a, b uint64) uint64 {
	product, err := Mul(a, b)
	if err != nil {
		return math.MaxUint64
	}
	return product
}

// SaturatingSub returns a - b, or 0 if the difference would underflow.
func SaturatingSub(a, b uint64) uint64 {
	diff, err := Sub(a, b)
	if err != nil {
		return 0
	}
	return diff
}

// MulDiv returns floor(a * b / c). The product is computed on a 256 bit
// intermediate so the only loss of precision is the final division. If the
// result does not fit in a uint64, MaxUint64 is returned.
//
// Panics if c is zero.
//
// This function does not perform any memory allocations.
func MulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		panic("math: MulDiv by zero")
	}

	var (
		product uint256.Int
		divisor uint256.Int
	)
	product.SetUint64(a)            // range is [0, MaxUint64]
	divisor.SetUint64(b)            // range is [0, MaxUint64]
	product.Mul(&product, &divisor) // range is [0, MaxUint128]

	divisor.SetUint64(c)
	product.Div(&product, &divisor)
	if product.Gt(uint64Ceiling) {
		return math.MaxUint64
	}
	return product.Uint64()
}

// Ratio scales a value by Num/Den.
type Ratio struct {
	Num uint64
	Den uint64
}

// ScaleBy applies each of [ratios] to [x] in order, flooring after every
// division. Intermediates are kept on 256 bits rather than being clipped to a
// uint64, so MaxUint64 is only returned when the scaled value doesn't fit in a
// uint64. An intermediate overflowing 256 bits also returns MaxUint64, which
// is exact as long as the denominators multiply to less than 2^192.
//
// Panics if any denominator is zero.
func ScaleBy(x uint64, ratios ...Ratio) uint64 {
	for _, r := range ratios {
		if r.Den == 0 {
			panic("math: ScaleBy by zero")
		}
	}
	if x == 0 {
		return 0
	}
	for _, r := range ratios {
		if r.Num == 0 {
			return 0
		}
	}

	var (
		result uint256.Int
		scalar uint256.Int
	)
	result.SetUint64(x)
	for _, r := range ratios {
		scalar.SetUint64(r.Num)
		if _, overflow := result.MulOverflow(&result, &scalar); overflow {
			return math.MaxUint64
		}
		scalar.SetUint64(r.Den)
		result.Div(&result, &scalar)
	}
	if result.Gt(uint64Ceiling) {
		return math.MaxUint64
	}
	return result.Uint64()
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b.
//
// If overflow would occur, an error is returned.
func LCM(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	return Mul(a/GCD(a, b), b)
}
