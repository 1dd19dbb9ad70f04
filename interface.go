// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpcmd

import (
	"strconv"
	"time"

	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/service"
)

// A Session is a reusable connection to one service endpoint over
// which a command writes encoded requests and awaits their responses.
//
// A Session is borrowed by a command, never owned: it belongs to a pool
// (see SessionSource) and only one command writes through it at a time.
// All Session methods are confined to the loop the command runs on.
type Session interface {
	// ID returns a stable identifier of the session.
	ID() string
	// LocalAddr describes the local endpoint of the session. It may
	// be empty until the session has carried a request.
	LocalAddr() string
	// RemoteAddr describes the remote endpoint of the session.
	RemoteAddr() string
	// LogPrefix returns a string identifying the session in log lines.
	LogPrefix() string
	// EncodeContext returns the context requests are encoded against.
	EncodeContext() *request.Context
	// WriteAndAwait transmits enc and awaits the response. The done
	// function runs on the loop exactly once per call, with either a
	// response or an error.
	//
	// WriteAndAwait must not retain enc after done runs.
	WriteAndAwait(enc *request.Encoded, done func(*request.Response, error))
	// Stop aborts any write in flight. A pending done function then
	// receives an error matching ErrAborted. Stopping a stopped
	// session does nothing.
	Stop()
}

// A Request is one concrete remote operation, for example an analytics
// query, that a command carries to a session.
type Request interface {
	// Service returns the service the request is addressed to.
	Service() service.Type
	// Timeout returns the end-to-end timeout of the operation. A zero
	// value means the command's timeout policy decides.
	Timeout() time.Duration
	// ClientContextID returns the caller-supplied correlation id.
	ClientContextID() string
	// EncodeTo encodes the request into enc using the encoding context
	// of the session the request is about to be sent over. The command
	// resets enc and sets its service type before calling EncodeTo.
	EncodeTo(enc *request.Encoded, ctx *request.Context) error
}

// A Tracer starts tracing spans. Implementations must be safe for
// concurrent use by multiple goroutines.
//
// Package tracing provides an OpenTelemetry implementation.
type Tracer interface {
	// StartSpan starts a span with the given name. The parent may be
	// nil for a root span.
	StartSpan(name string, parent Span) Span
}

// A Span is a tracing record of one operation phase.
type Span interface {
	AddTag(key, value string)
	End()
}

// A Meter hands out latency recorders. Implementations must be safe
// for concurrent use by multiple goroutines.
//
// Package metrics provides a Prometheus implementation.
type Meter interface {
	// Recorder returns the recorder for the named metric with the
	// given tags. The command does not retain tags.
	Recorder(name string, tags map[string]string) Recorder
}

// A Recorder records a value measured in microseconds.
type Recorder interface {
	Record(micros int64)
}

// A Decision is the answer of a continuation to a delivered result.
type Decision int

const (
	// Accept ends the command with the delivered result.
	Accept Decision = iota
	// Retry asks the command to send the request again over the same
	// session, within the same deadline. Retry is ignored when the
	// delivered result is terminal: a timeout, an encoding error, or
	// an aborted attempt.
	Retry
)

// String returns the name of the decision.
func (d Decision) String() string {
	switch d {
	case Accept:
		return "Accept"
	case Retry:
		return "Retry"
	default:
		return "Decision(" + strconv.Itoa(int(d)) + ")"
	}
}

// A Continuation receives the outcome of a command. The execution's
// Response or Err field holds the result being delivered.
//
// Once the command has completed, the continuation is never called
// again.
type Continuation func(e *request.Execution) Decision
