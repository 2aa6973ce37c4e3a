// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ava-labs/throttling/database"
	"github.com/ava-labs/throttling/state"
	"github.com/ava-labs/throttling/throttling"
)

var consensusStart = time.Unix(1_700_000_000, 123).UTC()

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return New(client, opts...), server
}

func TestPutGetDelete(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, server := newTestStore(t)

	_, err := s.Get(ctx, "consensus")
	require.ErrorIs(err, database.ErrNotFound)

	expiry := throttling.UsageSnapshot{Used: 7, LastDecisionTime: consensusStart}
	usage := state.Usage{
		Throttles: []throttling.UsageSnapshot{
			{Used: 1, LastDecisionTime: consensusStart},
			{Used: 2},
		},
		Gas:    throttling.UsageSnapshot{Used: 3, LastDecisionTime: consensusStart.Add(time.Second)},
		Expiry: &expiry,
	}
	require.NoError(s.Put(ctx, "consensus", usage))
	require.True(server.Exists(DefaultKeyPrefix + "consensus"))

	got, err := s.Get(ctx, "consensus")
	require.NoError(err)
	require.Equal(usage, got)

	// Replacing the usage drops fields that are no longer present.
	usage.Throttles = nil
	usage.Expiry = nil
	require.NoError(s.Put(ctx, "consensus", usage))
	got, err = s.Get(ctx, "consensus")
	require.NoError(err)
	require.Equal(usage, got)

	require.NoError(s.Delete(ctx, "consensus"))
	_, err = s.Get(ctx, "consensus")
	require.ErrorIs(err, database.ErrNotFound)
}

func TestKeyPrefix(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, server := newTestStore(t, WithKeyPrefix("replica-1:"))
	require.NoError(s.Put(ctx, "consensus", state.Usage{}))
	require.True(server.Exists("replica-1:consensus"))
	require.False(server.Exists(DefaultKeyPrefix + "consensus"))
}

func TestInvalidRouterName(t *testing.T) {
	s, _ := newTestStore(t)

	for _, name := range []string{"", "a:b", "a/b"} {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			require.ErrorIs(s.Put(ctx, name, state.Usage{}), state.ErrInvalidRouterName)
			_, err := s.Get(ctx, name)
			require.ErrorIs(err, state.ErrInvalidRouterName)
			require.ErrorIs(s.Delete(ctx, name), state.ErrInvalidRouterName)
		})
	}
}

func TestCorruptUsage(t *testing.T) {
	tests := []struct {
		name        string
		fields      []string
		expectedErr error
	}{
		{
			name:        "missing gas",
			fields:      []string{throttlesField, ""},
			expectedErr: errMissingGas,
		},
		{
			name:        "truncated throttles",
			fields:      []string{throttlesField, "short", gasField, string(throttling.UsageSnapshot{}.Bytes())},
			expectedErr: errTruncatedUsage,
		},
		{
			name:        "unexpected field",
			fields:      []string{"limits", "", gasField, string(throttling.UsageSnapshot{}.Bytes())},
			expectedErr: errUnexpectedField,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, server := newTestStore(t)
			server.HSet(DefaultKeyPrefix+"consensus", test.fields...)

			_, err := s.Get(context.Background(), "consensus")
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestUnavailable(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, server := newTestStore(t, WithTimeout(100*time.Millisecond))
	server.Close()

	require.Error(s.Put(ctx, "consensus", state.Usage{})) //nolint:forbidigo // any connection error
	_, err := s.Get(ctx, "consensus")
	require.Error(err) //nolint:forbidigo // any connection error
}
