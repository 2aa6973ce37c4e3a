// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package router maps operation kinds to the throttles that admit them.
package router

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/throttling/throttling"
	"github.com/ava-labs/throttling/throttling/definitions"
	"github.com/ava-labs/throttling/utils/logging"
	"github.com/ava-labs/throttling/utils/timer/mockable"
)

var (
	// ErrNoClock is the panic value of a consensus router asked to read the
	// local clock.
	ErrNoClock = errors.New("consensus router can't read the local clock")

	ErrUnknownMode       = errors.New("unknown router mode")
	ErrSnapshotCount     = errors.New("wrong number of usage snapshots")
	errInvalidSplitCount = errors.New("capacity split must be positive")
)

// Config describes a Router.
type Config struct {
	// Name identifies the router in logs and metrics.
	Name string
	Mode Mode
	// CapacitySplit returns the number of nodes sharing the network capacity.
	// It is only consulted by Frontend routers. If nil, the capacity isn't
	// split.
	CapacitySplit func() int
	// GasPerSecond is the gas capacity of the network. Frontend routers
	// split it like their other throttles.
	GasPerSecond uint64
	// Clock is read by ShouldThrottleNow. It must be nil for Consensus
	// routers.
	Clock      *mockable.Clock
	Log        logging.Logger
	Registerer prometheus.Registerer
}

// Router decides whether operations should be throttled.
//
// Decisions are serialized, so a Router may be shared across goroutines. The
// table a decision runs against is replaced as a whole by Rebuild, so every
// decision observes either the previous or the new configuration.
type Router struct {
	name    string
	mode    Mode
	split   func() int
	clock   *mockable.Clock
	// gasPerSecond is the unsplit gas capacity.
	gasPerSecond uint64
	log     logging.Logger
	metrics *metrics

	// lock serializes decisions and table replacement.
	lock  sync.Mutex
	table atomic.Pointer[table]
}

// New returns a router that throttles every operation until it is rebuilt.
func New(config Config) (*Router, error) {
	switch config.Mode {
	case Frontend:
		if config.Clock == nil {
			config.Clock = &mockable.Clock{}
		}
	case Consensus:
		if config.Clock != nil {
			return nil, fmt.Errorf("%w: %q", ErrNoClock, config.Name)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, config.Mode)
	}
	if config.Log == nil {
		config.Log = logging.NoLog{}
	}

	m, err := newMetrics(config.Name, config.Registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't register %q router metrics: %w", config.Name, err)
	}

	r := &Router{
		name:         config.Name,
		mode:         config.Mode,
		split:        config.CapacitySplit,
		clock:        config.Clock,
		gasPerSecond: config.GasPerSecond,
		log:          config.Log.With(zap.String("router", config.Name), zap.Stringer("mode", config.Mode)),
		metrics:      m,
	}
	n, err := r.capacitySplit()
	if err != nil {
		return nil, fmt.Errorf("couldn't size %q router: %w", config.Name, err)
	}
	r.table.Store(newEmptyTable(r.gasPerSecond / uint64(n)))
	return r, nil
}

func (r *Router) Name() string {
	return r.name
}

func (r *Router) Mode() Mode {
	return r.mode
}

// ShouldThrottle reports whether one operation of [kind] should be throttled
// at [now].
func (r *Router) ShouldThrottle(kind string, now time.Time) bool {
	return r.ShouldThrottleN(kind, now, 1)
}

// ShouldThrottleN reports whether [n] operations of [kind] should be
// throttled at [now]. Either all [n] are admitted or none are.
//
// Kinds without an explicit group fall back to the default group. Without a
// default group they are always throttled.
func (r *Router) ShouldThrottleN(kind string, now time.Time, n uint64) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	t := r.table.Load()
	group, label := t.groupFor(kind)
	throttled := group == nil || !group.AllReqsMetAtScaled(now, n, throttling.Identity)

	r.metrics.observeDecision(label, throttled)
	if group != nil {
		r.metrics.observeUsage(group.Throttles())
	}
	r.log.Verbo("throttle decision",
		zap.String("kind", kind),
		zap.Uint64("n", n),
		zap.Time("now", now),
		zap.Bool("throttled", throttled),
	)
	return throttled
}

// ShouldThrottleNow is ShouldThrottle at the time of the router's clock.
//
// Panics with ErrNoClock on a Consensus router.
func (r *Router) ShouldThrottleNow(kind string) bool {
	if r.clock == nil {
		panic(ErrNoClock)
	}
	return r.ShouldThrottle(kind, r.clock.Time())
}

// ShouldThrottleGas reports whether [gas] should be throttled at [now].
func (r *Router) ShouldThrottleGas(gas uint64, now time.Time) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	throttled := !r.table.Load().gas.Allow(gas, now)
	r.metrics.observeDecision(gasKindLabel, throttled)
	return throttled
}

// LeakUnusedGasPreviouslyReserved returns [gas] reserved by an admitted
// operation that didn't consume it.
func (r *Router) LeakUnusedGasPreviouslyReserved(gas uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.table.Load().gas.LeakUnusedGasPreviouslyReserved(gas)
}

// Rebuild replaces the throttles of the router with fresh throttles built
// from [doc]. If any bucket of [doc] is invalid, the router is left
// unchanged.
//
// The gas throttle keeps its usage across rebuilds unless the capacity split
// changes its capacity.
func (r *Router) Rebuild(doc *definitions.Document) error {
	n, err := r.capacitySplit()
	if err != nil {
		return r.rebuildFailed(err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	gas := r.table.Load().gas
	if nodeGas := r.gasPerSecond / uint64(n); gas.Capacity() != nodeGas {
		gas = throttling.NewGasThrottle(nodeGas)
	}
	t, err := buildTable(doc, n, gas)
	if err != nil {
		return r.rebuildFailed(err)
	}
	r.table.Store(t)
	r.metrics.observeRebuild(nil)
	r.metrics.resetUsage(t.throttles)

	r.log.Info("rebuilt throttles",
		zap.Int("capacitySplit", n),
		zap.Strings("throttles", throttleNames(t.throttles)),
		zap.Strings("operations", t.operations()),
		zap.Bool("hasDefault", t.defaultGroup != nil),
	)
	return nil
}

func throttleNames(throttles []*throttling.Throttle) []string {
	names := make([]string, len(throttles))
	for i, t := range throttles {
		names[i] = t.String()
	}
	return names
}

func (r *Router) rebuildFailed(err error) error {
	r.metrics.observeRebuild(err)
	r.log.Error("couldn't rebuild throttles",
		zap.Error(err),
	)
	return fmt.Errorf("couldn't rebuild %q router: %w", r.name, err)
}

func (r *Router) capacitySplit() (int, error) {
	if r.mode == Consensus || r.split == nil {
		return 1, nil
	}
	n := r.split()
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", errInvalidSplitCount, n)
	}
	return n, nil
}

// ApplyGasConfig replaces the gas throttle with an empty throttle sized for
// a network capacity of [gasPerSecond].
func (r *Router) ApplyGasConfig(gasPerSecond uint64) error {
	n, err := r.capacitySplit()
	if err != nil {
		return fmt.Errorf("couldn't apply %q gas config: %w", r.name, err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.gasPerSecond = gasPerSecond
	nodeGas := gasPerSecond / uint64(n)
	r.table.Store(r.table.Load().withGas(throttling.NewGasThrottle(nodeGas)))
	r.log.Info("applied gas throttle config",
		zap.Uint64("gasPerSecond", gasPerSecond),
		zap.Uint64("nodeGasPerSecond", nodeGas),
		zap.Int("capacitySplit", n),
	)
	return nil
}

// ActiveThrottles returns the throttles of the router, in bucket order.
func (r *Router) ActiveThrottles() []*throttling.Throttle {
	return append([]*throttling.Throttle(nil), r.table.Load().throttles...)
}

// ThrottlesFor returns the throttles consulted when deciding [kind].
func (r *Router) ThrottlesFor(kind string) []*throttling.Throttle {
	group, _ := r.table.Load().groupFor(kind)
	if group == nil {
		return nil
	}
	return group.Throttles()
}

// GasPerSecond returns the capacity of the gas throttle, after the capacity
// split.
func (r *Router) GasPerSecond() uint64 {
	return r.table.Load().gas.Capacity()
}

// UsageSnapshots returns the usage of each active throttle, in bucket order.
func (r *Router) UsageSnapshots() []throttling.UsageSnapshot {
	r.lock.Lock()
	defer r.lock.Unlock()

	throttles := r.table.Load().throttles
	snapshots := make([]throttling.UsageSnapshot, len(throttles))
	for i, t := range throttles {
		snapshots[i] = t.UsageSnapshot()
	}
	return snapshots
}

// ThrottleUsage describes an active throttle and its usage.
type ThrottleUsage struct {
	Name     string `json:"name"`
	MTPS     uint64 `json:"mtps"`
	Capacity uint64 `json:"capacity"`
	throttling.UsageSnapshot
}

// Usage returns every active throttle and its usage, in bucket order, as of
// the same decision.
func (r *Router) Usage() []ThrottleUsage {
	r.lock.Lock()
	defer r.lock.Unlock()

	throttles := r.table.Load().throttles
	usage := make([]ThrottleUsage, len(throttles))
	for i, t := range throttles {
		usage[i] = ThrottleUsage{
			Name:          t.Name(),
			MTPS:          t.MTPS(),
			Capacity:      t.Capacity(),
			UsageSnapshot: t.UsageSnapshot(),
		}
	}
	return usage
}

// ResetUsageTo restores the usage of each active throttle, in bucket order.
// Either every throttle is restored or none are.
func (r *Router) ResetUsageTo(snapshots []throttling.UsageSnapshot) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	throttles := r.table.Load().throttles
	if len(snapshots) != len(throttles) {
		return fmt.Errorf("%w: expected %d, actual %d",
			ErrSnapshotCount,
			len(throttles),
			len(snapshots),
		)
	}

	previous := make([]throttling.UsageSnapshot, len(throttles))
	for i, t := range throttles {
		previous[i] = t.UsageSnapshot()
	}
	for i, t := range throttles {
		if err := t.ResetToSnapshot(snapshots[i]); err != nil {
			for j := 0; j < i; j++ {
				// Restoring a snapshot taken from the same throttle can't
				// fail.
				_ = throttles[j].ResetToSnapshot(previous[j])
			}
			return err
		}
	}
	r.metrics.observeUsage(throttles)
	return nil
}

func (r *Router) GasUsageSnapshot() throttling.UsageSnapshot {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.table.Load().gas.UsageSnapshot()
}

func (r *Router) ResetGasUsageTo(snapshot throttling.UsageSnapshot) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.table.Load().gas.ResetToSnapshot(snapshot)
}
