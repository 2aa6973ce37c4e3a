// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package congestion prices the use of a bounded network resource, such as
// contract storage, by how close the network is to exhausting it.
package congestion

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	safemath "github.com/ava-labs/throttling/utils/math"
)

const tierSeparator = "til"

var (
	// ErrInvalidUsage is the panic value of a price requested for no usage
	// or no lifetime.
	ErrInvalidUsage = errors.New("price requested for non-positive usage")

	ErrEmptySchedule          = errors.New("empty tier schedule")
	ErrMalformedTier          = errors.New("malformed tier")
	ErrDecreasingPrice        = errors.New("tier prices must not decrease")
	ErrDecreasingUsage        = errors.New("tier usage thresholds must not decrease")
	ErrTierAboveMax           = errors.New("tier usage threshold exceeds the maximum usage")
	ErrZeroMaxTotalUnits      = errors.New("maximum usage must be positive")
	ErrZeroReferenceLifetime  = errors.New("reference lifetime must be positive")
	errUnknownUsageMultiplier = errors.New("unknown usage multiplier")

	usageSuffixes = []struct {
		suffix     string
		multiplier uint64
	}{
		{suffix: "B", multiplier: 1_000_000_000},
		{suffix: "M", multiplier: 1_000_000},
		{suffix: "K", multiplier: 1_000},
	}
)

// UsageInfo is the usage of a single entity.
type UsageInfo struct {
	// Current is the usage of the entity before the pending change.
	Current uint64 `json:"current"`
	// Delta is the pending additional usage of the entity.
	Delta uint64 `json:"delta"`
}

// Tiers prices usage in thousandths of a cent per unit per reference
// lifetime. The price of a unit is set by the tier the network wide usage
// falls in. Past the final tier, the price is multiplied by how congested the
// network is.
//
// Tiers is immutable and safe for concurrent use.
type Tiers struct {
	usageTiers        []uint64
	prices            []uint64
	freeTierLimit     uint64
	maxTotalUnits     uint64
	referenceLifetime time.Duration
}

// From parses [schedule], a comma separated list of <price>til<usage> tiers,
// where usage may carry a K, M or B suffix. For example:
//
//	10til50M,50til100M,100til150M
//
// prices units at 10 thousandths of a cent until 50 million units are used.
func From(
	schedule string,
	freeTierLimit uint64,
	maxTotalUnits uint64,
	referenceLifetime time.Duration,
) (*Tiers, error) {
	if maxTotalUnits == 0 {
		return nil, ErrZeroMaxTotalUnits
	}
	if referenceLifetime <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrZeroReferenceLifetime, referenceLifetime)
	}
	if strings.TrimSpace(schedule) == "" {
		return nil, ErrEmptySchedule
	}

	t := &Tiers{
		freeTierLimit:     freeTierLimit,
		maxTotalUnits:     maxTotalUnits,
		referenceLifetime: referenceLifetime,
	}
	for _, tier := range strings.Split(schedule, ",") {
		price, usage, err := parseTier(tier)
		if err != nil {
			return nil, err
		}
		if n := len(t.prices); n > 0 {
			if price < t.prices[n-1] {
				return nil, fmt.Errorf("%w: %d after %d", ErrDecreasingPrice, price, t.prices[n-1])
			}
			if usage < t.usageTiers[n-1] {
				return nil, fmt.Errorf("%w: %d after %d", ErrDecreasingUsage, usage, t.usageTiers[n-1])
			}
		}
		t.prices = append(t.prices, price)
		t.usageTiers = append(t.usageTiers, usage)
	}

	if last := t.usageTiers[len(t.usageTiers)-1]; last > maxTotalUnits {
		return nil, fmt.Errorf("%w: %d > %d", ErrTierAboveMax, last, maxTotalUnits)
	}
	return t, nil
}

func parseTier(tier string) (uint64, uint64, error) {
	priceStr, usageStr, ok := strings.Cut(strings.TrimSpace(tier), tierSeparator)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedTier, tier)
	}
	price, err := strconv.ParseUint(strings.TrimSpace(priceStr), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %w", ErrMalformedTier, tier, err)
	}
	usage, err := parseUsage(strings.TrimSpace(usageStr))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %w", ErrMalformedTier, tier, err)
	}
	return price, usage, nil
}

func parseUsage(s string) (uint64, error) {
	multiplier := uint64(1)
	for _, u := range usageSuffixes {
		if trimmed, ok := strings.CutSuffix(s, u.suffix); ok {
			s = trimmed
			multiplier = u.multiplier
			break
		}
	}
	if s != "" && (s[len(s)-1] < '0' || s[len(s)-1] > '9') {
		return 0, fmt.Errorf("%w: %q", errUnknownUsageMultiplier, s[len(s)-1:])
	}

	usage, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return safemath.Mul(usage, multiplier)
}

// PriceOfPendingUsage returns the price, in tiny native units, of adding
// [usage.Delta] units for [lifetime] while the network uses [totalUsage]
// units. An entity whose current usage is within the free tier pays
// nothing. If the network is at its maximum usage, the price is
// math.MaxUint64 and the usage must be rejected.
//
// Panics with ErrInvalidUsage if the usage isn't free and either
// [usage.Delta] or [lifetime] is not positive.
func (t *Tiers) PriceOfPendingUsage(
	rate ExchangeRate,
	totalUsage uint64,
	lifetime time.Duration,
	usage UsageInfo,
) uint64 {
	if usage.Current <= t.freeTierLimit {
		return 0
	}
	if usage.Delta == 0 || lifetime <= 0 {
		panic(ErrInvalidUsage)
	}
	return t.price(rate, totalUsage, lifetime, usage.Delta)
}

// PriceOfAutoRenewal returns the price, in tiny native units, of renewing
// [usage.Current] units for [numPeriods] reference lifetimes.
func (t *Tiers) PriceOfAutoRenewal(
	rate ExchangeRate,
	totalUsage uint64,
	usage UsageInfo,
	numPeriods uint64,
) uint64 {
	if numPeriods == 0 || usage.Current <= t.freeTierLimit {
		return 0
	}
	price := t.price(rate, totalUsage, t.referenceLifetime, usage.Current)
	return safemath.SaturatingMul(price, numPeriods)
}

func (t *Tiers) price(rate ExchangeRate, totalUsage uint64, lifetime time.Duration, units uint64) uint64 {
	if totalUsage >= t.maxTotalUnits {
		return math.MaxUint64
	}

	// The whole price is scaled on one 256 bit intermediate so that only a
	// price that doesn't fit in a uint64 saturates.
	ratios := make([]safemath.Ratio, 0, 5)
	ratios = append(ratios,
		safemath.Ratio{Num: units, Den: 1},
		safemath.Ratio{Num: uint64(lifetime), Den: uint64(t.referenceLifetime)},
	)
	if totalUsage > t.usageTiers[len(t.usageTiers)-1] {
		ratios = append(ratios, safemath.Ratio{Num: t.maxTotalUnits, Den: t.maxTotalUnits - totalUsage})
	}
	ratios = append(ratios, rate.ratios()...)
	return safemath.ScaleBy(t.TierPrice(totalUsage), ratios...)
}

// TierPrice returns the price, in thousandths of a cent per unit per
// reference lifetime, while the network uses [totalUsage] units. Usage
// exactly at a threshold is priced by that threshold's tier.
func (t *Tiers) TierPrice(totalUsage uint64) uint64 {
	for i, threshold := range t.usageTiers {
		if totalUsage <= threshold {
			return t.prices[i]
		}
	}
	return t.prices[len(t.prices)-1]
}

func (t *Tiers) FreeTierLimit() uint64 {
	return t.freeTierLimit
}

func (t *Tiers) MaxTotalUnits() uint64 {
	return t.maxTotalUnits
}

func (t *Tiers) ReferenceLifetime() time.Duration {
	return t.referenceLifetime
}

// String returns the schedule Tiers was parsed from, in canonical form.
func (t *Tiers) String() string {
	var sb strings.Builder
	for i := range t.prices {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.FormatUint(t.prices[i], 10))
		sb.WriteString(tierSeparator)
		sb.WriteString(formatUsage(t.usageTiers[i]))
	}
	return sb.String()
}

func formatUsage(usage uint64) string {
	for _, u := range usageSuffixes {
		if usage != 0 && usage%u.multiplier == 0 {
			return strconv.FormatUint(usage/u.multiplier, 10) + u.suffix
		}
	}
	return strconv.FormatUint(usage, 10)
}
