// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ava-labs/throttling/trace"
)

var _ Store = (*tracedStore)(nil)

type tracedStore struct {
	s      Store
	put    string
	get    string
	delete string
	tracer trace.Tracer
}

// Trace records a span named [name].<Method> around every call to [s].
func Trace(s Store, name string, tracer trace.Tracer) Store {
	return &tracedStore{
		s:      s,
		put:    fmt.Sprintf("%s.Put", name),
		get:    fmt.Sprintf("%s.Get", name),
		delete: fmt.Sprintf("%s.Delete", name),
		tracer: tracer,
	}
}

func (s *tracedStore) Put(ctx context.Context, router string, usage Usage) error {
	ctx, span := s.tracer.Start(ctx, s.put, oteltrace.WithAttributes(
		attribute.String("router", router),
		attribute.Int("numThrottles", len(usage.Throttles)),
		attribute.Bool("hasExpiry", usage.Expiry != nil),
	))
	defer span.End()

	return recordError(span, s.s.Put(ctx, router, usage))
}

func (s *tracedStore) Get(ctx context.Context, router string) (Usage, error) {
	ctx, span := s.tracer.Start(ctx, s.get, oteltrace.WithAttributes(
		attribute.String("router", router),
	))
	defer span.End()

	usage, err := s.s.Get(ctx, router)
	return usage, recordError(span, err)
}

func (s *tracedStore) Delete(ctx context.Context, router string) error {
	ctx, span := s.tracer.Start(ctx, s.delete, oteltrace.WithAttributes(
		attribute.String("router", router),
	))
	defer span.End()

	return recordError(span, s.s.Delete(ctx, router))
}

func recordError(span oteltrace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
