// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package expiry throttles the background work that removes expired
// entities, weighted by the store accesses each unit of work performs.
package expiry

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/throttling/throttling"
	"github.com/ava-labs/throttling/throttling/definitions"
	"github.com/ava-labs/throttling/utils/logging"

	safemath "github.com/ava-labs/throttling/utils/math"
)

// DefaultResource is the name of the resource holding the default expiry
// throttle definition.
const DefaultResource = "expiry-throttle.json"

var (
	ErrDisabled       = errors.New("expiry throttle is disabled")
	ErrNotOneBucket   = errors.New("expiry throttle must have exactly one bucket")
	ErrDefaultOp      = errors.New("expiry throttle can't have a default group")
	ErrUnpricedAccess = errors.New("access kind has no cost")

	//go:embed expiry-throttle.json
	defaultDefinition []byte

	// Assets holds the resources packaged with the binary.
	//
	//go:embed expiry-throttle.json
	Assets embed.FS
)

// Throttle admits expiry work while its accesses fit. Until it is rebuilt,
// or after it fails to load any definition, it rejects all work.
//
// Throttle is not safe for concurrent use.
type Throttle struct {
	log               logging.Logger
	loader            Loader
	defaultDefinition []byte

	throttle    *throttling.Throttle
	costs       map[AccessKind]uint64
	minUnitCost uint64
	usedDefault bool
}

// New returns a disabled throttle that loads its definitions with [loader].
func New(log logging.Logger, loader Loader) *Throttle {
	return &Throttle{
		log:               log,
		loader:            loader,
		defaultDefinition: defaultDefinition,
	}
}

// Rebuild replaces the throttle with the definition in [resource]. If the
// resource can't be loaded, the built-in default definition is used. If that
// fails as well, the throttle is disabled and rejects all work until rebuilt.
//
// [minUnitOfWork] is the set of accesses every unit of expiry work performs.
// The previous usage is discarded.
func (t *Throttle) Rebuild(ctx context.Context, resource string, minUnitOfWork []AccessKind) error {
	err := t.rebuildFrom(ctx, resource, minUnitOfWork)
	if err == nil {
		t.usedDefault = false
		t.log.Info("rebuilt expiry throttle",
			zap.String("resource", resource),
			zap.Stringer("throttle", t.throttle),
		)
		return nil
	}
	t.log.Warn("couldn't load expiry throttle, falling back to the default",
		zap.String("resource", resource),
		zap.Error(err),
	)

	defaultErr := t.build(t.defaultDefinition, minUnitOfWork)
	if defaultErr == nil {
		t.usedDefault = true
		t.log.Info("rebuilt expiry throttle",
			zap.String("resource", DefaultResource),
			zap.Stringer("throttle", t.throttle),
		)
		return nil
	}

	t.disable()
	t.log.Error("disabled expiry throttle",
		zap.String("resource", resource),
		zap.Error(defaultErr),
	)
	return fmt.Errorf("%w: %w", ErrDisabled, errors.Join(err, defaultErr))
}

func (t *Throttle) rebuildFrom(ctx context.Context, resource string, minUnitOfWork []AccessKind) error {
	b, err := t.loader.Load(ctx, resource)
	if err != nil {
		return fmt.Errorf("couldn't load %q: %w", resource, err)
	}
	return t.build(b, minUnitOfWork)
}

// build replaces the throttle with the JSON definition [b]. On failure the
// throttle is unchanged.
func (t *Throttle) build(b []byte, minUnitOfWork []AccessKind) error {
	doc, err := definitions.Parse(b)
	if err != nil {
		return err
	}
	if len(doc.Buckets) != 1 {
		return fmt.Errorf("%w: found %d", ErrNotOneBucket, len(doc.Buckets))
	}
	resolved, err := doc.Buckets[0].Resolve(1)
	if err != nil {
		return err
	}

	costs := make(map[AccessKind]uint64, len(resolved.OpsRequired))
	for name, ops := range resolved.OpsRequired {
		if name == definitions.DefaultOperation {
			return ErrDefaultOp
		}
		kind, err := ParseAccessKind(name)
		if err != nil {
			return err
		}
		costs[kind] = ops
	}

	minUnitCost, ok := sumCosts(costs, minUnitOfWork)
	if !ok {
		return fmt.Errorf("%w: minimum unit of work %v", ErrUnpricedAccess, minUnitOfWork)
	}

	t.throttle = resolved.Throttle
	t.costs = costs
	t.minUnitCost = minUnitCost
	return nil
}

func (t *Throttle) disable() {
	t.throttle = nil
	t.costs = nil
	t.minUnitCost = 0
	t.usedDefault = false
}

// sumCosts returns the total cost of [kinds], or false if any kind has no
// cost.
func sumCosts(costs map[AccessKind]uint64, kinds []AccessKind) (uint64, bool) {
	var total uint64
	for _, kind := range kinds {
		cost, ok := costs[kind]
		if !ok {
			return 0, false
		}
		total = safemath.SaturatingAdd(total, cost)
	}
	return total, true
}

// Enabled reports whether the throttle has a definition.
func (t *Throttle) Enabled() bool {
	return t.throttle != nil
}

// UsingDefault reports whether the built-in definition is in use.
func (t *Throttle) UsingDefault() bool {
	return t.usedDefault
}

// Cost returns the capacity, in operations, consumed by [kind].
func (t *Throttle) Cost(kind AccessKind) (uint64, bool) {
	cost, ok := t.costs[kind]
	return cost, ok
}

// Allow reports whether work performing [kinds] fits at [now], consuming its
// capacity if it does. Work with an access that has no cost is rejected.
func (t *Throttle) Allow(kinds []AccessKind, now time.Time) bool {
	if t.throttle == nil {
		return false
	}
	cost, ok := sumCosts(t.costs, kinds)
	if !ok {
		return false
	}
	return t.throttle.Allow(cost, now)
}

func (t *Throttle) AllowOne(kind AccessKind, now time.Time) bool {
	return t.Allow([]AccessKind{kind}, now)
}

// ReclaimLastAllowedUse restores the capacity of the last allowed work.
//
// Panics with throttling.ErrNoAllowedUse if there is no such work.
func (t *Throttle) ReclaimLastAllowedUse() {
	if t.throttle == nil {
		panic(throttling.ErrNoAllowedUse)
	}
	t.throttle.ReclaimLastAllowedUse()
}

// StillLacksMinFreeCapAfterLeakingUntil leaks the throttle until [now] and
// reports whether it still can't fit the minimum unit of work.
func (t *Throttle) StillLacksMinFreeCapAfterLeakingUntil(now time.Time) bool {
	if t.throttle == nil {
		return true
	}
	t.throttle.LeakUntil(now)
	return t.throttle.Free() < t.throttle.CapacityRequiredFor(t.minUnitCost)
}

// UsageSnapshot returns the usage of the throttle. A disabled throttle has no
// usage.
func (t *Throttle) UsageSnapshot() throttling.UsageSnapshot {
	if t.throttle == nil {
		return throttling.UsageSnapshot{}
	}
	return t.throttle.UsageSnapshot()
}

func (t *Throttle) ResetToSnapshot(snapshot throttling.UsageSnapshot) error {
	if t.throttle == nil {
		return ErrDisabled
	}
	return t.throttle.ResetToSnapshot(snapshot)
}
