// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package units

// Denominations of the native fee unit
const (
	Tiny  uint64 = 1
	Micro uint64 = 100 * Tiny
	Milli uint64 = 1000 * Micro
	Whole uint64 = 1000 * Milli

	// ThousandthsToTiny converts a price quoted in thousandths of a
	// currency-equivalent into tiny units, before the exchange rate applies.
	ThousandthsToTiny = Whole / 1000
)

// Denominations of throttle capacity
const (
	// MilliOpsPerOp is the number of milli-operations in one operation.
	MilliOpsPerOp uint64 = 1000

	// CapacityUnitsPerOp is the bucket capacity consumed by one operation.
	//
	// With this scale, a bucket leaking at r milli-operations per second
	// restores exactly r capacity units per elapsed nanosecond.
	CapacityUnitsPerOp uint64 = 1_000_000_000_000
)
