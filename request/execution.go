// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/http"
	"time"

	"github.com/gogama/httpcmd/service"
	"github.com/gogama/httpcmd/transient"
)

// An Execution represents the state of a single command execution.
//
// An Execution is created with its command and updated as the command
// progresses: when it is started, when each attempt is sent over a
// session, when a response or error arrives, and when the outcome is
// delivered. The same Execution is handed to the command's continuation,
// to retry and timeout policies, and to event handlers.
//
// Continuations, policies and event handlers may set values on an
// Execution using its SetValue method and read them back using the
// Value method. They should treat the exported fields as read-only,
// since the command relies on them.
type Execution struct {
	// Service identifies the service the command is addressed to.
	Service service.Type

	// ClientContextID is the caller-supplied correlation id of the
	// command. It is sent with every attempt.
	ClientContextID string

	// Start is the time the command was started. It is zero until the
	// command is started, and constant thereafter.
	Start time.Time

	// End is the time the final outcome was delivered. It contains the
	// zero value until then.
	End time.Time

	// Deadline is the absolute instant after which the command times
	// out. It bounds all attempts together and never moves.
	Deadline time.Time

	// Attempt is the zero-based number of the current attempt. It is
	// zero on the initial attempt, one on the first retry, and so on.
	Attempt int

	// Encoded is the wire form of the current (or most recent)
	// attempt. It is nil until the first attempt is encoded.
	Encoded *Encoded

	// SessionID identifies the session the command is bound to. It is
	// empty until the command is bound to a session.
	SessionID string

	// Response is the response received in the most recent attempt. It
	// is nil if the most recent attempt ended in an error, or if no
	// attempt has completed.
	Response *Response

	// Err is the error of the most recent attempt, or the error the
	// command completed with (for example a timeout or an encoding
	// failure). Once the execution has ended, Err does not change.
	Err error

	data context.Context
}

// StatusCode returns the status code of the most recent response, or
// 0 if there is no response.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// Header returns the header of the most recent response, or the nil
// header if there is no response.
//
// A nil return value is always safe for read-only operations, since
// http.Header is a map type.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		var nilHeader http.Header
		return nilHeader
	}

	return e.Response.Header
}

// Duration returns the duration of the execution.
//
// If the execution has not yet started, the duration is zero. If the
// execution has ended, the duration returned is equal to End minus
// Start. Otherwise, it is equal to the current time minus Start.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Since(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Remaining returns the time left until the deadline, or zero if the
// deadline has passed or was never set.
func (e *Execution) Remaining() time.Duration {
	if e.Deadline.IsZero() {
		return 0
	}
	if d := time.Until(e.Deadline); d > 0 {
		return d
	}
	return 0
}

// Started indicates whether the execution has started.
func (e *Execution) Started() bool {
	return !e.Start.IsZero()
}

// Ended indicates whether the final outcome has been delivered. Once
// true, there will be no further changes to the execution.
func (e *Execution) Ended() bool {
	return !e.End.IsZero()
}

// Timeout indicates whether Err currently contains a timeout.
func (e *Execution) Timeout() bool {
	return transient.Categorize(e.Err) == transient.Timeout
}

// SetValue allows continuations, policies and event handlers to store
// arbitrary data in the execution.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • it may not be nil;
//
// • it must be comparable;
//
// • it should not be of type string or any other built-in type to avoid
// collisions between different users of the same execution.
func (e *Execution) SetValue(key, value interface{}) {
	ctx := e.data
	if ctx == nil {
		ctx = context.Background()
	}

	e.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this execution for key,
// or nil if there is no value associated with key.
func (e *Execution) Value(key interface{}) interface{} {
	ctx := e.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}
