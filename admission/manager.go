// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package admission is the throttling and pricing surface offered to the
// consensus pipeline and to fee charging.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ava-labs/throttling/congestion"
	"github.com/ava-labs/throttling/database"
	"github.com/ava-labs/throttling/state"
	"github.com/ava-labs/throttling/throttling"
	"github.com/ava-labs/throttling/throttling/definitions"
	"github.com/ava-labs/throttling/throttling/expiry"
	"github.com/ava-labs/throttling/throttling/router"
	"github.com/ava-labs/throttling/trace"
	"github.com/ava-labs/throttling/utils/logging"
	"github.com/ava-labs/throttling/utils/timer/mockable"
)

const (
	FrontendRouterName  = "frontend"
	ConsensusRouterName = "consensus"
)

var (
	errNoTiers       = errors.New("pricing tiers are required")
	errNoStore       = errors.New("usage store is required")
	errNoDefinitions = errors.New("throttle definitions are required")
)

type Config struct {
	// Definitions are the throttle definitions the routers start with.
	Definitions   *definitions.Document
	GasPerSecond  uint64
	CapacitySplit func() int

	// ExpiryLoader defaults to the packaged assets.
	ExpiryLoader expiry.Loader
	// ExpiryResource defaults to expiry.DefaultResource.
	ExpiryResource string
	// MinUnitOfWork is the set of accesses every unit of expiry work
	// performs.
	MinUnitOfWork []expiry.AccessKind

	Tiers *congestion.Tiers
	Store state.Store

	// Clock times frontend decisions. If nil, the wall clock is used.
	Clock      *mockable.Clock
	Log        logging.Logger
	Registerer prometheus.Registerer
	// Tracer defaults to a tracer that records nothing.
	Tracer trace.Tracer
}

// Manager owns the binding and the advisory throttles of a node.
//
// Binding decisions must be made serially, in consensus order, with the
// consensus timestamp of each operation.
type Manager struct {
	log       logging.Logger
	frontend  *router.Router
	consensus *router.Router
	expiry    *expiry.Throttle
	tiers     *congestion.Tiers
	store     state.Store
	tracer    trace.Tracer

	expiryResource string
	minUnitOfWork  []expiry.AccessKind
}

// New builds the routers from [config.Definitions] and loads the expiry
// throttle. An expiry throttle that can't be loaded is left disabled.
func New(ctx context.Context, config Config) (*Manager, error) {
	if config.Definitions == nil {
		return nil, errNoDefinitions
	}
	if config.Tiers == nil {
		return nil, errNoTiers
	}
	if config.Store == nil {
		return nil, errNoStore
	}
	if config.Log == nil {
		config.Log = logging.NoLog{}
	}
	if config.ExpiryLoader == nil {
		config.ExpiryLoader = &expiry.AssetLoader{FS: expiry.Assets}
	}
	if config.ExpiryResource == "" {
		config.ExpiryResource = expiry.DefaultResource
	}
	if config.Tracer == nil {
		config.Tracer = trace.Noop("admission")
	}

	frontend, consensus, err := router.NewPair(
		config.Definitions,
		router.Config{
			Name:          FrontendRouterName,
			CapacitySplit: config.CapacitySplit,
			GasPerSecond:  config.GasPerSecond,
			Clock:         config.Clock,
			Log:           config.Log,
			Registerer:    config.Registerer,
		},
		router.Config{
			Name:         ConsensusRouterName,
			GasPerSecond: config.GasPerSecond,
			Log:          config.Log,
			Registerer:   config.Registerer,
		},
	)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		log:            config.Log,
		frontend:       frontend,
		consensus:      consensus,
		expiry:         expiry.New(config.Log, config.ExpiryLoader),
		tiers:          config.Tiers,
		store:          config.Store,
		tracer:         config.Tracer,
		expiryResource: config.ExpiryResource,
		minUnitOfWork:  config.MinUnitOfWork,
	}
	if err := m.RebuildExpiry(ctx); err != nil {
		m.log.Warn("starting with expiry work disabled",
			zap.Error(err),
		)
	}
	return m, nil
}

// ShouldThrottleOperation reports whether an ordered operation of [kind],
// with consensus timestamp [now], must be throttled.
func (m *Manager) ShouldThrottleOperation(kind string, now time.Time) bool {
	return m.consensus.ShouldThrottle(kind, now)
}

// ShouldThrottleGas reports whether an ordered operation reserving [gas],
// with consensus timestamp [now], must be throttled.
func (m *Manager) ShouldThrottleGas(gas uint64, now time.Time) bool {
	return m.consensus.ShouldThrottleGas(gas, now)
}

// LeakPreviouslyReservedGas returns [amount] of reserved gas that execution
// didn't consume.
func (m *Manager) LeakPreviouslyReservedGas(amount uint64) {
	m.consensus.LeakUnusedGasPreviouslyReserved(amount)
}

// RebuildFrom replaces the throttles of both routers with the JSON
// definitions [b]. On error, both routers keep their throttles.
//
// The frontend router is rebuilt first. A document the frontend can split
// across the network can always be resolved by the consensus router.
func (m *Manager) RebuildFrom(b []byte) error {
	doc, err := definitions.Parse(b)
	if err != nil {
		m.log.Error("couldn't parse throttle definitions",
			zap.Error(err),
		)
		return err
	}
	if err := m.frontend.Rebuild(doc); err != nil {
		return err
	}
	return m.consensus.Rebuild(doc)
}

// RebuildExpiry reloads the expiry throttle from its resource.
func (m *Manager) RebuildExpiry(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "admission.RebuildExpiry", oteltrace.WithAttributes(
		attribute.String("resource", m.expiryResource),
	))
	defer span.End()

	return m.expiry.Rebuild(ctx, m.expiryResource, m.minUnitOfWork)
}

// CurrentUsageSnapshots returns the usage of the binding throttles.
func (m *Manager) CurrentUsageSnapshots() []throttling.UsageSnapshot {
	return m.consensus.UsageSnapshots()
}

// ResetToSnapshots restores the usage of the binding throttles.
func (m *Manager) ResetToSnapshots(snapshots []throttling.UsageSnapshot) error {
	return m.consensus.ResetUsageTo(snapshots)
}

func (m *Manager) usage() state.Usage {
	usage := state.Usage{
		Throttles: m.consensus.UsageSnapshots(),
		Gas:       m.consensus.GasUsageSnapshot(),
	}
	if m.expiry.Enabled() {
		expiryUsage := m.expiry.UsageSnapshot()
		usage.Expiry = &expiryUsage
	}
	return usage
}

// Persist writes the usage of every binding throttle. It must be called
// after the operations the usage reflects are applied.
func (m *Manager) Persist(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "admission.Persist")
	defer span.End()

	if err := m.store.Put(ctx, m.consensus.Name(), m.usage()); err != nil {
		return fmt.Errorf("couldn't persist throttle usage: %w", err)
	}
	return nil
}

// Restore resets every binding throttle to its persisted usage. Either all of
// the usage is restored or none of it is. If no usage was persisted, the
// throttles are left unchanged.
func (m *Manager) Restore(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "admission.Restore")
	defer span.End()

	usage, err := m.store.Get(ctx, m.consensus.Name())
	if errors.Is(err, database.ErrNotFound) {
		m.log.Info("no persisted throttle usage")
		return nil
	}
	if err != nil {
		return fmt.Errorf("couldn't read throttle usage: %w", err)
	}

	previous := m.usage()
	if err := m.reset(usage); err != nil {
		if revertErr := m.reset(previous); revertErr != nil {
			m.log.Fatal("couldn't revert throttle usage",
				zap.Error(revertErr),
			)
			return errors.Join(err, revertErr)
		}
		return fmt.Errorf("couldn't restore throttle usage: %w", err)
	}

	m.log.Info("restored throttle usage",
		zap.Int("numThrottles", len(usage.Throttles)),
		zap.Stringer("gas", usage.Gas),
		zap.Bool("hasExpiry", usage.Expiry != nil),
	)
	return nil
}

func (m *Manager) reset(usage state.Usage) error {
	if err := m.consensus.ResetUsageTo(usage.Throttles); err != nil {
		return err
	}
	if err := m.consensus.ResetGasUsageTo(usage.Gas); err != nil {
		return err
	}
	if usage.Expiry != nil && m.expiry.Enabled() {
		return m.expiry.ResetToSnapshot(*usage.Expiry)
	}
	return nil
}

// PriceOfPendingUsage prices [usage.Delta] additional units held for
// [lifetime]. See congestion.Tiers.PriceOfPendingUsage.
func (m *Manager) PriceOfPendingUsage(
	rate congestion.ExchangeRate,
	totalUsage uint64,
	lifetime time.Duration,
	usage congestion.UsageInfo,
) uint64 {
	return m.tiers.PriceOfPendingUsage(rate, totalUsage, lifetime, usage)
}

// PriceOfAutoRenewal prices renewing [usage.Current] units for [numPeriods]
// reference lifetimes. See congestion.Tiers.PriceOfAutoRenewal.
func (m *Manager) PriceOfAutoRenewal(
	rate congestion.ExchangeRate,
	totalUsage uint64,
	usage congestion.UsageInfo,
	numPeriods uint64,
) uint64 {
	return m.tiers.PriceOfAutoRenewal(rate, totalUsage, usage, numPeriods)
}

// Frontend returns the advisory router.
func (m *Manager) Frontend() *router.Router {
	return m.frontend
}

// Consensus returns the binding router.
func (m *Manager) Consensus() *router.Router {
	return m.consensus
}

func (m *Manager) Expiry() *expiry.Throttle {
	return m.expiry
}

func (m *Manager) Tiers() *congestion.Tiers {
	return m.tiers
}
