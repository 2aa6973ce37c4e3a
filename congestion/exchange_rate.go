// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package congestion

import (
	"errors"
	"fmt"

	"github.com/ava-labs/throttling/utils/units"

	safemath "github.com/ava-labs/throttling/utils/math"
)

var ErrZeroCentEquiv = errors.New("exchange rate cent equivalent must be positive")

// ExchangeRate values the native fee unit: [NativeEquiv] whole native units
// are worth [CentEquiv] cents.
type ExchangeRate struct {
	NativeEquiv uint64 `json:"nativeEquiv"`
	CentEquiv   uint64 `json:"centEquiv"`
}

func (r ExchangeRate) Verify() error {
	if r.CentEquiv == 0 {
		return ErrZeroCentEquiv
	}
	return nil
}

// ToNative converts a price in thousandths of a cent into tiny native units.
//
// Panics if the rate doesn't pass Verify.
func (r ExchangeRate) ToNative(thousandths uint64) uint64 {
	return safemath.ScaleBy(thousandths, r.ratios()...)
}

func (r ExchangeRate) ratios() []safemath.Ratio {
	return []safemath.Ratio{
		{Num: units.ThousandthsToTiny, Den: 1},
		{Num: r.NativeEquiv, Den: r.CentEquiv},
	}
}

func (r ExchangeRate) String() string {
	return fmt.Sprintf("%d native : %d cents", r.NativeEquiv, r.CentEquiv)
}
