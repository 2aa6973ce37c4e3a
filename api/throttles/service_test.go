// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package throttles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/throttling/admission"
	"github.com/ava-labs/throttling/congestion"
	"github.com/ava-labs/throttling/database/memdb"
	"github.com/ava-labs/throttling/state"
	"github.com/ava-labs/throttling/state/statemock"
	"github.com/ava-labs/throttling/throttling/definitions"
	"github.com/ava-labs/throttling/throttling/expiry"
	"github.com/ava-labs/throttling/utils/logging"
)

const testDefinitions = `{
  "version": 1,
  "buckets": [{
    "name": "ThroughputLimits",
    "burstPeriodMs": 1000,
    "throttleGroups": [{"opsPerSec": 10, "operations": ["*"]}]
  }]
}`

var consensusStart = time.Unix(1_700_000_000, 0).UTC()

func newTestService(t *testing.T, store state.Store) (*Service, *admission.Manager) {
	t.Helper()
	require := require.New(t)

	doc, err := definitions.Parse([]byte(testDefinitions))
	require.NoError(err)
	tiers, err := congestion.From("10til100", 0, 1_000, time.Hour)
	require.NoError(err)

	m, err := admission.New(context.Background(), admission.Config{
		Definitions:   doc,
		GasPerSecond:  100,
		CapacitySplit: func() int { return 2 },
		MinUnitOfWork: []expiry.AccessKind{expiry.AccountsGet},
		Tiers:         tiers,
		Store:         store,
		Log:           logging.NoLog{},
	})
	require.NoError(err)
	return NewService(logging.NoLog{}, m, store), m
}

func TestThrottles(t *testing.T) {
	require := require.New(t)

	s, m := newTestService(t, state.New(memdb.New()))
	require.False(m.ShouldThrottleOperation("Transfer", consensusStart))

	w := httptest.NewRecorder()
	s.Throttles(w, httptest.NewRequest(http.MethodGet, "/ext/throttles", nil))
	require.Equal(http.StatusOK, w.Code)
	require.Equal("application/json", w.Header().Get("Content-Type"))

	var reply ThrottlesReply
	require.NoError(json.NewDecoder(w.Body).Decode(&reply))
	require.Equal(admission.FrontendRouterName, reply.Frontend.Name)
	require.Equal("frontend", reply.Frontend.Mode)
	require.Equal(admission.ConsensusRouterName, reply.Consensus.Name)
	require.Equal(uint64(100), reply.Consensus.GasPerSecond)
	require.Equal(uint64(50), reply.Frontend.GasPerSecond)
	require.Len(reply.Consensus.Throttles, 1)
	require.Equal(uint64(10_000), reply.Consensus.Throttles[0].MTPS)
	require.Equal(uint64(5_000), reply.Frontend.Throttles[0].MTPS)
	require.Equal(m.CurrentUsageSnapshots()[0].Used, reply.Consensus.Throttles[0].Used)
	require.True(reply.Consensus.Throttles[0].LastDecisionTime.Equal(consensusStart))
	require.True(reply.Expiry.Enabled)
	require.False(reply.Expiry.UsingDefault)
}

func TestPersistedUsage(t *testing.T) {
	require := require.New(t)

	s, m := newTestService(t, state.New(memdb.New()))

	w := httptest.NewRecorder()
	s.PersistedUsage(w, httptest.NewRequest(http.MethodGet, "/ext/usage", nil))
	require.Equal(http.StatusNotFound, w.Code)

	require.False(m.ShouldThrottleOperation("Transfer", consensusStart))
	require.NoError(m.Persist(context.Background()))

	w = httptest.NewRecorder()
	s.PersistedUsage(w, httptest.NewRequest(http.MethodGet, "/ext/usage", nil))
	require.Equal(http.StatusOK, w.Code)

	var reply UsageReply
	require.NoError(json.NewDecoder(w.Body).Decode(&reply))
	require.Equal(admission.ConsensusRouterName, reply.Router)
	require.Len(reply.Throttles, 1)
	require.Equal(m.CurrentUsageSnapshots()[0].Used, reply.Throttles[0].Used)
	require.NotNil(reply.Expiry)
}

func TestPersistedUsageStoreError(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	store := statemock.NewStore(ctrl)
	s, _ := newTestService(t, store)

	store.EXPECT().Get(gomock.Any(), admission.ConsensusRouterName).Return(state.Usage{}, context.DeadlineExceeded)
	w := httptest.NewRecorder()
	s.PersistedUsage(w, httptest.NewRequest(http.MethodGet, "/ext/usage", nil))
	require.Equal(http.StatusInternalServerError, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestService(t, state.New(memdb.New()))

	for _, handler := range []http.HandlerFunc{s.Throttles, s.PersistedUsage} {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	}
}
