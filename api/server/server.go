// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server is the HTTP server of throttlectl.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/ava-labs/throttling/utils/logging"
)

const (
	// HTTPHeaderInstanceID identifies the process that answered a request.
	HTTPHeaderInstanceID = "Instance-Id"

	baseURL           = "/ext"
	readHeaderTimeout = 10 * time.Second
)

var errNotDispatched = errors.New("server is not dispatched")

// Server maintains the HTTP router
type Server struct {
	log logging.Logger
	// points the the router handlers
	router  *router
	handler http.Handler
	// Listens for HTTP traffic on this address
	listenAddress   string
	shutdownTimeout time.Duration
	instanceID      uuid.UUID

	listener net.Listener
	srv      *http.Server
}

// New returns an HTTP server listening on [host]:[port] once dispatched.
func New(
	log logging.Logger,
	host string,
	port uint16,
	allowedOrigins []string,
	shutdownTimeout time.Duration,
) *Server {
	r := newRouter()
	instanceID := uuid.New()
	log.Info("API created",
		zap.Stringer("instanceID", instanceID),
		zap.Strings("allowedOrigins", allowedOrigins),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
	}).Handler(r)
	gzipHandler := gziphandler.GzipHandler(corsHandler)
	return &Server{
		log:    log,
		router: r,
		handler: http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(HTTPHeaderInstanceID, instanceID.String())
				gzipHandler.ServeHTTP(w, r)
			},
		),
		listenAddress:   fmt.Sprintf("%s:%d", host, port),
		shutdownTimeout: shutdownTimeout,
		instanceID:      instanceID,
	}
}

// InstanceID returns the identifier attached to every response.
func (s *Server) InstanceID() uuid.UUID {
	return s.instanceID
}

// AddRoute serves [handler] at /ext/[base][endpoint].
func (s *Server) AddRoute(handler http.Handler, base, endpoint string) error {
	url := fmt.Sprintf("%s/%s", baseURL, base)
	s.log.Info("adding route",
		zap.String("url", url),
		zap.String("endpoint", endpoint),
	)
	return s.router.AddRouter(url, endpoint, handler)
}

// AddAliases serves every route of /ext/[base] under each of [aliases] as
// well.
func (s *Server) AddAliases(base string, aliases ...string) error {
	url := fmt.Sprintf("%s/%s", baseURL, base)
	aliasURLs := make([]string, len(aliases))
	for i, alias := range aliases {
		aliasURLs[i] = fmt.Sprintf("%s/%s", baseURL, alias)
	}
	return s.router.AddAlias(url, aliasURLs...)
}

// Handler returns the handler of every route, wrapped for cors and gzip.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the listen address. It must be called before Dispatch.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return err
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.log.Info("HTTP API server listening",
		zap.Stringer("address", listener.Addr()),
	)
	return nil
}

// Addr returns the bound address, or nil if the server isn't listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Dispatch serves the API until Shutdown is called.
func (s *Server) Dispatch() error {
	if s.srv == nil {
		return errNotDispatched
	}
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown this server
func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
