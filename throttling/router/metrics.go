// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/throttling/throttling"
)

const (
	routerLabel  = "router"
	kindLabel    = "kind"
	outcomeLabel = "outcome"
	bucketLabel  = "bucket"

	allowedOutcome   = "allowed"
	throttledOutcome = "throttled"
	successOutcome   = "success"
	failureOutcome   = "failure"

	gasKindLabel     = "gas"
	unknownKindLabel = "unknown"
)

type metrics struct {
	decisions   *prometheus.CounterVec
	rebuilds    *prometheus.CounterVec
	percentUsed *prometheus.GaugeVec
}

func newMetrics(name string, reg prometheus.Registerer) (*metrics, error) {
	constLabels := prometheus.Labels{routerLabel: name}
	m := &metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "throttle_decisions",
				Help:        "Number of throttle decisions made, by operation kind and outcome",
				ConstLabels: constLabels,
			},
			[]string{kindLabel, outcomeLabel},
		),
		rebuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "throttle_rebuilds",
				Help:        "Number of attempts to rebuild the throttle table, by outcome",
				ConstLabels: constLabels,
			},
			[]string{outcomeLabel},
		),
		percentUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "throttle_percent_used",
				Help:        "Percentage of the capacity of each bucket used as of its last decision",
				ConstLabels: constLabels,
			},
			[]string{bucketLabel},
		),
	}
	if reg == nil {
		return m, nil
	}

	err := errors.Join(
		reg.Register(m.decisions),
		reg.Register(m.rebuilds),
		reg.Register(m.percentUsed),
	)
	return m, err
}

func (m *metrics) observeDecision(label string, throttled bool) {
	outcome := allowedOutcome
	if throttled {
		outcome = throttledOutcome
	}
	m.decisions.WithLabelValues(label, outcome).Inc()
}

func (m *metrics) observeRebuild(err error) {
	outcome := successOutcome
	if err != nil {
		outcome = failureOutcome
	}
	m.rebuilds.WithLabelValues(outcome).Inc()
}

func (m *metrics) observeUsage(throttles []*throttling.Throttle) {
	for _, t := range throttles {
		m.percentUsed.WithLabelValues(t.Name()).Set(t.PercentUsed(t.LastDecisionTime()))
	}
}

// resetUsage drops the gauges of buckets that are no longer active.
func (m *metrics) resetUsage(throttles []*throttling.Throttle) {
	m.percentUsed.Reset()
	m.observeUsage(throttles)
}
