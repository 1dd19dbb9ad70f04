// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tracing implements the httpcmd.Tracer contract on top of
// OpenTelemetry.
//
//	tracer := tracing.New(otel.Tracer("my-app"))
//	cmd := httpcmd.NewCommand(l, req, httpcmd.WithTracer(tracer),
//		httpcmd.WithParentSpan(tracing.FromContext(ctx)))
//
// Span names are those of service.Type.SpanName, and command tags such
// as httpcmd.TagService become string attributes.
package tracing
