// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ava-labs/throttling/admission"
	"github.com/ava-labs/throttling/api/server"
	"github.com/ava-labs/throttling/api/throttles"
	"github.com/ava-labs/throttling/app"
	"github.com/ava-labs/throttling/config"
	"github.com/ava-labs/throttling/database/leveldb"
	"github.com/ava-labs/throttling/database/memdb"
	"github.com/ava-labs/throttling/state"
	"github.com/ava-labs/throttling/state/redisstore"
	"github.com/ava-labs/throttling/throttling/definitions"
	"github.com/ava-labs/throttling/trace"
	"github.com/ava-labs/throttling/utils/filesystem"
	"github.com/ava-labs/throttling/utils/logging"
)

// throttlesAlias also serves the throttles routes under /ext/admission.
const throttlesAlias = "admission"

var _ app.Reloader = (*node)(nil)

func runServe(args []string, stderr io.Writer) int {
	v, err := config.GetViper(args)
	if err != nil {
		return exitCode(stderr, err)
	}
	reader := filesystem.NewReader()
	nodeConfig, err := config.GetConfig(v, reader)
	if err != nil {
		return exitCode(stderr, err)
	}
	log, err := logging.NewLogger(nodeConfig.Log)
	if err != nil {
		return exitCode(stderr, fmt.Errorf("couldn't initialize logger: %w", err))
	}
	return app.Run(newNode(log, nodeConfig, reader))
}

// node persists the binding throttle usage of a node and serves the state of
// its throttles until stopped.
type node struct {
	log    logging.Logger
	config config.Config
	reader filesystem.Reader

	closer  io.Closer
	tracer  trace.Tracer
	manager *admission.Manager
	server  *server.Server

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group
}

func newNode(log logging.Logger, config config.Config, reader filesystem.Reader) *node {
	return &node{
		log:    log,
		config: config,
		reader: reader,
	}
}

// openStore opens the store of the binding throttle usage. The returned
// closer releases the resources backing the store.
func (n *node) openStore() (state.Store, io.Closer, error) {
	switch n.config.DBType {
	case leveldb.Name:
		db, err := leveldb.New(n.config.DBDir, n.log)
		if err != nil {
			return nil, nil, err
		}
		return state.New(db), db, nil
	case memdb.Name:
		n.log.Warn("throttle usage will not be persisted across restarts")
		db := memdb.New()
		return state.New(db), db, nil
	case redisstore.Name:
		client := goredis.NewClient(&goredis.Options{
			Addr: n.config.RedisAddress,
		})
		n.log.Info("persisting throttle usage to redis",
			zap.String("address", n.config.RedisAddress),
			zap.String("keyPrefix", n.config.RedisKeyPrefix),
		)
		return redisstore.New(client, redisstore.WithKeyPrefix(n.config.RedisKeyPrefix)), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown database type %q", n.config.DBType)
	}
}

func (n *node) Start() error {
	if err := n.start(); err != nil {
		n.log.Fatal("couldn't start node",
			zap.Error(err),
		)
		n.close()
		return err
	}
	return nil
}

func (n *node) start() error {
	tracer, err := trace.New(n.config.Trace)
	if err != nil {
		return fmt.Errorf("couldn't initialize tracer: %w", err)
	}
	n.tracer = tracer
	if n.config.Trace.Enabled {
		n.log.Info("tracing enabled",
			zap.Stringer("exporter", n.config.Trace.Type),
			zap.String("endpoint", n.config.Trace.Endpoint),
			zap.Float64("sampleRate", n.config.Trace.TraceSampleRate),
		)
	}

	store, closer, err := n.openStore()
	if err != nil {
		return fmt.Errorf("couldn't open usage store: %w", err)
	}
	n.closer = closer
	store = state.Trace(store, "state", tracer)

	registry := prometheus.NewRegistry()
	err = errors.Join(
		registry.Register(collectors.NewGoCollector()),
		registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	)
	if err != nil {
		return err
	}

	split := n.config.CapacitySplit
	n.manager, err = admission.New(context.Background(), admission.Config{
		Definitions:    n.config.Definitions,
		GasPerSecond:   n.config.GasPerSecond,
		CapacitySplit:  func() int { return split },
		ExpiryLoader:   n.config.ExpiryLoader(n.reader),
		ExpiryResource: n.config.ExpiryResource,
		MinUnitOfWork:  n.config.ExpiryMinUnitOfWork,
		Tiers:          n.config.Tiers,
		Store:          store,
		Log:            n.log,
		Registerer:     registry,
		Tracer:         tracer,
	})
	if err != nil {
		return fmt.Errorf("couldn't build throttles: %w", err)
	}
	if err := n.manager.Restore(context.Background()); err != nil {
		return err
	}

	n.server = server.New(
		n.log,
		n.config.HTTPHost,
		n.config.HTTPPort,
		n.config.HTTPAllowedOrigins,
		n.config.HTTPShutdownTimeout,
	)
	if err := n.addRoutes(registry, store); err != nil {
		return err
	}
	if err := n.server.Listen(); err != nil {
		return fmt.Errorf("couldn't listen on %s: %w", n.config.HTTPAddress(), err)
	}

	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.eg, n.ctx = errgroup.WithContext(n.ctx)
	n.eg.Go(n.server.Dispatch)
	n.eg.Go(n.persistLoop)
	return nil
}

func (n *node) addRoutes(registry *prometheus.Registry, store state.Store) error {
	service := throttles.NewService(n.log, n.manager, store)
	return errors.Join(
		n.server.AddRoute(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), "metrics", ""),
		n.server.AddRoute(http.HandlerFunc(service.Throttles), "throttles", ""),
		n.server.AddRoute(http.HandlerFunc(service.PersistedUsage), "throttles", "/usage"),
		n.server.AddAliases("throttles", throttlesAlias),
	)
}

func (n *node) persistLoop() error {
	ticker := time.NewTicker(n.config.PersistFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := n.manager.Persist(n.ctx); err != nil {
				n.log.Error("couldn't persist throttle usage",
					zap.Error(err),
				)
			}
		case <-n.ctx.Done():
			return nil
		}
	}
}

// Reload rebuilds both routers from the definitions file. On failure, the
// routers keep their throttles.
func (n *node) Reload() error {
	b, err := n.reader.ReadFile(n.config.DefinitionsFile)
	if err != nil {
		n.log.Error("couldn't read throttle definitions",
			zap.String("path", n.config.DefinitionsFile),
			zap.Error(err),
		)
		return err
	}
	doc, err := definitions.ParseFile(n.config.DefinitionsFile, b)
	if err != nil {
		n.log.Error("couldn't parse throttle definitions",
			zap.String("path", n.config.DefinitionsFile),
			zap.Error(err),
		)
		return err
	}
	canonical, err := doc.Bytes()
	if err != nil {
		return err
	}
	return n.manager.RebuildFrom(canonical)
}

func (n *node) Stop() error {
	n.cancel()
	return n.server.Shutdown()
}

func (n *node) ExitCode() (int, error) {
	err := n.eg.Wait()
	if persistErr := n.manager.Persist(context.Background()); persistErr != nil {
		n.log.Error("couldn't persist throttle usage on shutdown",
			zap.Error(persistErr),
		)
		err = errors.Join(err, persistErr)
	}
	n.close()
	if err != nil {
		return 1, err
	}
	return 0, nil
}

func (n *node) close() {
	if n.closer != nil {
		if err := n.closer.Close(); err != nil {
			n.log.Error("couldn't close usage store",
				zap.Error(err),
			)
		}
	}
	if n.tracer != nil {
		if err := n.tracer.Close(); err != nil {
			n.log.Error("couldn't close tracer",
				zap.Error(err),
			)
		}
	}
	n.log.Stop()
}
