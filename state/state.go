// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists the usage of binding throttles so that a restarted
// or reconnected node resumes its decisions exactly where its peers are.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/throttling/database"
	"github.com/ava-labs/throttling/throttling"
)

var (
	_ Store = (*store)(nil)

	ErrInvalidRouterName = errors.New("invalid router name")
	errMissingGas        = errors.New("usage is missing the gas throttle")
	errMissingCount      = errors.New("usage is missing the throttle count")
	errUnorderedIndex    = errors.New("throttle usage is out of order")
	errThrottleCount     = errors.New("wrong number of throttle usages")

	usagePrefix  = []byte("usage/")
	throttlesKey = []byte("throttles/")
	gasKey       = []byte("gas")
	countKey     = []byte("count")
	expiryKey    = []byte("expiry")
)

// Usage is the usage of every binding throttle of a router.
type Usage struct {
	// Throttles holds one snapshot per active throttle, in bucket order.
	Throttles []throttling.UsageSnapshot
	Gas       throttling.UsageSnapshot
	// Expiry is nil if the expiry throttle is disabled.
	Expiry *throttling.UsageSnapshot
}

// Store persists Usage per router.
type Store interface {
	// Put replaces the usage stored for [router] in a single atomic write.
	Put(ctx context.Context, router string, usage Usage) error

	// Get returns the usage stored for [router]. Returns database.ErrNotFound
	// if no usage was ever stored.
	Get(ctx context.Context, router string) (Usage, error)

	// Delete removes the usage stored for [router].
	Delete(ctx context.Context, router string) error
}

type store struct {
	db database.Database
}

func New(db database.Database) Store {
	return &store{db: db}
}

// routerPrefix is usage/<router>/
func routerPrefix(router string) ([]byte, error) {
	if router == "" {
		return nil, ErrInvalidRouterName
	}
	if strings.ContainsRune(router, '/') {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRouterName, router)
	}
	prefix := make([]byte, 0, len(usagePrefix)+len(router)+1)
	prefix = append(prefix, usagePrefix...)
	prefix = append(prefix, router...)
	prefix = append(prefix, '/')
	return prefix, nil
}

func join(parts ...[]byte) []byte {
	var key []byte
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

func (s *store) Put(_ context.Context, router string, usage Usage) error {
	prefix, err := routerPrefix(router)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	if err := database.ClearPrefix(s.db, batch, prefix); err != nil {
		return fmt.Errorf("couldn't clear %q usage: %w", router, err)
	}
	for i, snapshot := range usage.Throttles {
		key := join(prefix, throttlesKey, database.PackUInt64(uint64(i)))
		if err := batch.Put(key, snapshot.Bytes()); err != nil {
			return err
		}
	}
	if err := database.PutUInt64(batch, join(prefix, countKey), uint64(len(usage.Throttles))); err != nil {
		return err
	}
	if err := batch.Put(join(prefix, gasKey), usage.Gas.Bytes()); err != nil {
		return err
	}
	if usage.Expiry != nil {
		if err := batch.Put(join(prefix, expiryKey), usage.Expiry.Bytes()); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (s *store) Get(_ context.Context, router string) (Usage, error) {
	prefix, err := routerPrefix(router)
	if err != nil {
		return Usage{}, err
	}

	gas, err := getSnapshot(s.db, join(prefix, gasKey))
	if errors.Is(err, database.ErrNotFound) {
		has, hasErr := s.hasAny(prefix)
		if hasErr != nil {
			return Usage{}, hasErr
		}
		if has {
			return Usage{}, fmt.Errorf("%w: %q", errMissingGas, router)
		}
	}
	if err != nil {
		return Usage{}, err
	}
	count, err := database.GetUInt64(s.db, join(prefix, countKey))
	if errors.Is(err, database.ErrNotFound) {
		return Usage{}, fmt.Errorf("%w: %q", errMissingCount, router)
	}
	if err != nil {
		return Usage{}, fmt.Errorf("couldn't read throttle count of %q: %w", router, err)
	}

	// The expiry throttle is absent while it is disabled.
	expiry, err := database.WithDefault(getOptionalSnapshot, s.db, join(prefix, expiryKey), nil)
	if err != nil {
		return Usage{}, err
	}
	usage := Usage{
		Gas:    gas,
		Expiry: expiry,
	}

	throttlesPrefix := join(prefix, throttlesKey)
	it := s.db.NewIteratorWithPrefix(throttlesPrefix)
	defer it.Release()

	for it.Next() {
		index, err := database.ParseUInt64(it.Key()[len(throttlesPrefix):])
		if err != nil {
			return Usage{}, fmt.Errorf("couldn't parse throttle index of %q: %w", router, err)
		}
		if index != uint64(len(usage.Throttles)) {
			return Usage{}, fmt.Errorf("%w: expected %d, found %d", errUnorderedIndex, len(usage.Throttles), index)
		}
		snapshot, err := throttling.ParseUsageSnapshot(it.Value())
		if err != nil {
			return Usage{}, fmt.Errorf("couldn't parse throttle %d usage of %q: %w", index, router, err)
		}
		usage.Throttles = append(usage.Throttles, snapshot)
	}
	if err := it.Error(); err != nil {
		return Usage{}, err
	}
	if uint64(len(usage.Throttles)) != count {
		return Usage{}, fmt.Errorf("%w: expected %d, found %d", errThrottleCount, count, len(usage.Throttles))
	}
	return usage, nil
}

func (s *store) Delete(_ context.Context, router string) error {
	prefix, err := routerPrefix(router)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	if err := database.ClearPrefix(s.db, batch, prefix); err != nil {
		return err
	}
	return batch.Write()
}

func (s *store) hasAny(prefix []byte) (bool, error) {
	count, err := database.Count(s.db, prefix)
	return count > 0, err
}

func getOptionalSnapshot(db database.KeyValueReader, key []byte) (*throttling.UsageSnapshot, error) {
	snapshot, err := getSnapshot(db, key)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func getSnapshot(db database.KeyValueReader, key []byte) (throttling.UsageSnapshot, error) {
	b, err := db.Get(key)
	if err != nil {
		return throttling.UsageSnapshot{}, err
	}
	return throttling.ParseUsageSnapshot(b)
}
