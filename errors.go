// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpcmd

import "errors"

// A TimeoutError reports that a command ran out of time. Its Timeout
// method always returns true, so transient.Categorize classifies it as
// transient.Timeout.
//
// Compare against ErrUnambiguousTimeout and ErrAmbiguousTimeout with
// errors.Is rather than inspecting the value.
type TimeoutError struct {
	ambiguous bool
	cause     error
}

var (
	// ErrUnambiguousTimeout is delivered when the command deadline
	// passes. The remote side did not complete the operation as far as
	// the command observed, so it is safe to assume it did not execute.
	ErrUnambiguousTimeout error = &TimeoutError{}

	// ErrAmbiguousTimeout is delivered when the bound session is
	// stopped while an attempt is outstanding. The remote side may or
	// may not have executed the operation.
	ErrAmbiguousTimeout error = &TimeoutError{ambiguous: true}

	// ErrAborted is the error a Session wraps when it is stopped with a
	// write in flight.
	ErrAborted error = abortedError{}

	// ErrClosed is returned when work is handed to a closed loop.
	ErrClosed = errors.New("httpcmd: loop closed")
)

func (e *TimeoutError) Error() string {
	var msg string
	if e.ambiguous {
		msg = "httpcmd: ambiguous timeout"
	} else {
		msg = "httpcmd: unambiguous timeout"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Timeout returns true.
func (e *TimeoutError) Timeout() bool {
	return true
}

// Ambiguous indicates whether the execution status of the remote
// operation is unknown.
func (e *TimeoutError) Ambiguous() bool {
	return e.ambiguous
}

// Unwrap returns the error that caused the timeout, if any.
func (e *TimeoutError) Unwrap() error {
	return e.cause
}

// Is matches e against the sentinels ErrUnambiguousTimeout and
// ErrAmbiguousTimeout.
func (e *TimeoutError) Is(target error) bool {
	t, ok := target.(*TimeoutError)
	return ok && t.cause == nil && t.ambiguous == e.ambiguous
}

func ambiguousTimeout(cause error) error {
	return &TimeoutError{ambiguous: true, cause: cause}
}

type abortedError struct{}

func (abortedError) Error() string {
	return "httpcmd: session stopped"
}

func (abortedError) Aborted() bool {
	return true
}
