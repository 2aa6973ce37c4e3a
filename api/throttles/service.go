// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package throttles serves the state of the throttles of a node over HTTP.
package throttles

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ava-labs/throttling/admission"
	"github.com/ava-labs/throttling/database"
	"github.com/ava-labs/throttling/state"
	"github.com/ava-labs/throttling/throttling"
	"github.com/ava-labs/throttling/throttling/router"
	"github.com/ava-labs/throttling/utils/logging"
)

type RouterReply struct {
	Name         string                   `json:"name"`
	Mode         string                   `json:"mode"`
	GasPerSecond uint64                   `json:"gasPerSecond"`
	Gas          throttling.UsageSnapshot `json:"gas"`
	Throttles    []router.ThrottleUsage   `json:"throttles"`
}

type ExpiryReply struct {
	Enabled      bool `json:"enabled"`
	UsingDefault bool `json:"usingDefault"`
}

type ThrottlesReply struct {
	Frontend  RouterReply `json:"frontend"`
	Consensus RouterReply `json:"consensus"`
	Expiry    ExpiryReply `json:"expiry"`
}

type UsageReply struct {
	Router    string                     `json:"router"`
	Throttles []throttling.UsageSnapshot `json:"throttles"`
	Gas       throttling.UsageSnapshot   `json:"gas"`
	Expiry    *throttling.UsageSnapshot  `json:"expiry,omitempty"`
}

// Service answers read-only queries about the throttles of [manager] and the
// usage persisted in [store].
type Service struct {
	log     logging.Logger
	manager *admission.Manager
	store   state.Store
}

func NewService(log logging.Logger, manager *admission.Manager, store state.Store) *Service {
	return &Service{
		log:     log,
		manager: manager,
		store:   store,
	}
}

func routerReply(r *router.Router) RouterReply {
	return RouterReply{
		Name:         r.Name(),
		Mode:         r.Mode().String(),
		GasPerSecond: r.GasPerSecond(),
		Gas:          r.GasUsageSnapshot(),
		Throttles:    r.Usage(),
	}
}

// Throttles reports the active throttles of both routers.
func (s *Service) Throttles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, ThrottlesReply{
		Frontend:  routerReply(s.manager.Frontend()),
		Consensus: routerReply(s.manager.Consensus()),
		Expiry: ExpiryReply{
			Enabled:      s.manager.Expiry().Enabled(),
			UsingDefault: s.manager.Expiry().UsingDefault(),
		},
	})
}

// PersistedUsage reports the binding usage as of its last persist.
func (s *Service) PersistedUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := s.manager.Consensus().Name()
	usage, err := s.store.Get(r.Context(), name)
	switch {
	case errors.Is(err, database.ErrNotFound):
		http.Error(w, "no persisted usage", http.StatusNotFound)
		return
	case err != nil:
		s.log.Error("couldn't read persisted usage",
			zap.String("router", name),
			zap.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, UsageReply{
		Router:    name,
		Throttles: usage.Throttles,
		Gas:       usage.Gas,
		Expiry:    usage.Expiry,
	})
}

func (s *Service) writeJSON(w http.ResponseWriter, reply interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		s.log.Debug("couldn't write reply",
			zap.Error(err),
		)
	}
}
