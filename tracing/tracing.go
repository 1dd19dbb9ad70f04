// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package tracing

import (
	"context"

	"github.com/gogama/httpcmd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name New uses to obtain a tracer from the
// global provider when none is given.
const InstrumentationName = "github.com/gogama/httpcmd"

// System is the value of the db.system attribute set on every span.
const System = "couchbase"

// A Tracer starts OpenTelemetry spans for commands. It implements
// httpcmd.Tracer and is safe for concurrent use by multiple goroutines.
type Tracer struct {
	tracer trace.Tracer
}

// New wraps an OpenTelemetry tracer. If t is nil, the tracer named
// InstrumentationName is obtained from the global provider.
func New(t trace.Tracer) *Tracer {
	if t == nil {
		t = otel.Tracer(InstrumentationName)
	}

	return &Tracer{tracer: t}
}

// StartSpan starts a client span. If parent is a span started by this
// package, or obtained from FromContext, the new span is its child.
// Otherwise it is a root span.
func (t *Tracer) StartSpan(name string, parent httpcmd.Span) httpcmd.Span {
	ctx := context.Background()
	if p, ok := parent.(*Span); ok && p != nil {
		ctx = p.ctx
	}

	ctx, s := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", System)))
	return &Span{ctx: ctx, span: s}
}

// A Span adapts an OpenTelemetry span to httpcmd.Span. Tags become
// string attributes.
type Span struct {
	ctx  context.Context
	span trace.Span
}

// FromContext returns the span carried by ctx, suitable as the parent
// passed to httpcmd.WithParentSpan.
func FromContext(ctx context.Context) *Span {
	return &Span{ctx: ctx, span: trace.SpanFromContext(ctx)}
}

// AddTag sets the string attribute key to value.
func (s *Span) AddTag(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// End ends the span.
func (s *Span) End() {
	s.span.End()
}

// Context returns a context carrying the span.
func (s *Span) Context() context.Context {
	return s.ctx
}

// Nop is a tracer whose spans record nothing.
var Nop httpcmd.Tracer = nopTracer{}

type nopTracer struct{}

func (nopTracer) StartSpan(string, httpcmd.Span) httpcmd.Span {
	return nopSpan{}
}

type nopSpan struct{}

func (nopSpan) AddTag(string, string) {}

func (nopSpan) End() {}
