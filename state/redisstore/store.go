// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package redisstore persists throttle usage in Redis, so that replicas
// without a local database can share the usage of a binding router.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ava-labs/throttling/database"
	"github.com/ava-labs/throttling/state"
	"github.com/ava-labs/throttling/throttling"
)

const (
	// Name is the name of this store for database switches
	Name = "redis"

	DefaultKeyPrefix = "throttling:usage:"
	DefaultTimeout   = 5 * time.Second

	throttlesField = "throttles"
	gasField       = "gas"
	expiryField    = "expiry"
)

var (
	_ state.Store = (*Store)(nil)

	errMissingGas      = errors.New("usage is missing the gas throttle")
	errTruncatedUsage  = errors.New("throttle usage is truncated")
	errUnexpectedField = errors.New("unexpected usage field")
)

// Store keeps the usage of each router in a Redis hash.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
	timeout   time.Duration
}

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default [DefaultKeyPrefix]).
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// WithTimeout bounds each call to Redis (default [DefaultTimeout]).
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) { s.timeout = timeout }
}

// New returns a Store over [client], which must be connected.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(router string) (string, error) {
	if router == "" || strings.ContainsAny(router, ":/") {
		return "", fmt.Errorf("%w: %q", state.ErrInvalidRouterName, router)
	}
	return s.keyPrefix + router, nil
}

// Put replaces the usage of [router] in a single transaction.
func (s *Store) Put(ctx context.Context, router string, usage state.Usage) error {
	key, err := s.key(router)
	if err != nil {
		return err
	}

	throttles := make([]byte, 0, len(usage.Throttles)*throttling.UsageSnapshotLen)
	for _, snapshot := range usage.Throttles {
		throttles = append(throttles, snapshot.Bytes()...)
	}
	fields := []interface{}{
		throttlesField, throttles,
		gasField, usage.Gas.Bytes(),
	}
	if usage.Expiry != nil {
		fields = append(fields, expiryField, usage.Expiry.Bytes())
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("couldn't write usage of %q: %w", router, err)
	}
	return nil
}

// Get returns the usage of [router], or database.ErrNotFound if none is
// stored.
func (s *Store) Get(ctx context.Context, router string) (state.Usage, error) {
	key, err := s.key(router)
	if err != nil {
		return state.Usage{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return state.Usage{}, fmt.Errorf("couldn't read usage of %q: %w", router, err)
	}
	if len(fields) == 0 {
		return state.Usage{}, database.ErrNotFound
	}
	return parseUsage(fields)
}

func parseUsage(fields map[string]string) (state.Usage, error) {
	var (
		usage  state.Usage
		hasGas bool
	)
	for field, value := range fields {
		switch field {
		case throttlesField:
			if len(value)%throttling.UsageSnapshotLen != 0 {
				return state.Usage{}, fmt.Errorf("%w: %d bytes", errTruncatedUsage, len(value))
			}
			for i := 0; i < len(value); i += throttling.UsageSnapshotLen {
				snapshot, err := throttling.ParseUsageSnapshot([]byte(value[i : i+throttling.UsageSnapshotLen]))
				if err != nil {
					return state.Usage{}, err
				}
				usage.Throttles = append(usage.Throttles, snapshot)
			}
		case gasField:
			snapshot, err := throttling.ParseUsageSnapshot([]byte(value))
			if err != nil {
				return state.Usage{}, fmt.Errorf("gas throttle: %w", err)
			}
			usage.Gas = snapshot
			hasGas = true
		case expiryField:
			snapshot, err := throttling.ParseUsageSnapshot([]byte(value))
			if err != nil {
				return state.Usage{}, fmt.Errorf("expiry throttle: %w", err)
			}
			usage.Expiry = &snapshot
		default:
			return state.Usage{}, fmt.Errorf("%w: %q", errUnexpectedField, field)
		}
	}
	if !hasGas {
		return state.Usage{}, errMissingGas
	}
	return usage, nil
}

// Delete removes the usage of [router].
func (s *Store) Delete(ctx context.Context, router string) error {
	key, err := s.key(router)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("couldn't delete usage of %q: %w", router, err)
	}
	return nil
}
