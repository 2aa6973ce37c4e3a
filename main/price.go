// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/ava-labs/throttling/config"
	"github.com/ava-labs/throttling/congestion"
)

const (
	totalUsageKey     = "total-usage"
	currentUsageKey   = "current-usage"
	deltaKey          = "delta"
	lifetimeKey       = "lifetime"
	nativeEquivKey    = "native-equiv"
	centEquivKey      = "cent-equiv"
	renewalPeriodsKey = "renewal-periods"
)

var errZeroDelta = errors.New("delta must be positive for usage outside of the free tier")

func priceFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	fs.Uint64(totalUsageKey, 0, "Units held across the network")
	fs.Uint64(currentUsageKey, 0, "Units held by the paying entity")
	fs.Uint64(deltaKey, 0, "Units being added")
	fs.Duration(lifetimeKey, 0, "Lifetime of the added units. Defaults to the reference lifetime")
	fs.Uint64(nativeEquivKey, 1, "Native tokens worth the cent equivalent")
	fs.Uint64(centEquivKey, 1, "Cents worth the native equivalent")
	fs.Uint64(renewalPeriodsKey, 0, "If non-zero, quote renewing the current usage for this many reference lifetimes instead")
	return fs
}

// runPrice writes to [w] the price, in tiny native units, of the usage
// described by [args].
func runPrice(args []string, w io.Writer) error {
	v, err := config.GetViper(args, priceFlagSet())
	if err != nil {
		return err
	}
	tiers, err := config.GetTiers(v)
	if err != nil {
		return err
	}

	rate := congestion.ExchangeRate{
		NativeEquiv: v.GetUint64(nativeEquivKey),
		CentEquiv:   v.GetUint64(centEquivKey),
	}
	if err := rate.Verify(); err != nil {
		return err
	}

	var (
		totalUsage = v.GetUint64(totalUsageKey)
		usage      = congestion.UsageInfo{
			Current: v.GetUint64(currentUsageKey),
			Delta:   v.GetUint64(deltaKey),
		}
		price uint64
	)
	if periods := v.GetUint64(renewalPeriodsKey); periods > 0 {
		price = tiers.PriceOfAutoRenewal(rate, totalUsage, usage, periods)
	} else {
		lifetime := v.GetDuration(lifetimeKey)
		if lifetime <= 0 {
			lifetime = tiers.ReferenceLifetime()
		}
		if usage.Current > tiers.FreeTierLimit() && usage.Delta == 0 {
			return errZeroDelta
		}
		price = tiers.PriceOfPendingUsage(rate, totalUsage, lifetime, usage)
	}

	fmt.Fprintf(w, "tiers: %s\n", tiers)
	fmt.Fprintf(w, "exchange rate: %s\n", rate)
	fmt.Fprintf(w, "tier price: %d\n", tiers.TierPrice(totalUsage))
	if price == math.MaxUint64 {
		fmt.Fprintln(w, "price: rejected, the network is at its maximum usage")
		return nil
	}
	fmt.Fprintf(w, "price: %d\n", price)
	return nil
}
