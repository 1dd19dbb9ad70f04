// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/transient"
)

// A Decider looks at a finished attempt and reports whether the command
// should send it again. It is consulted on the event loop goroutine,
// after the attempt finished and before the command deadline expired,
// so e.Response or e.Err describe the attempt e.Attempt.
//
// A Decider shared between clients must be safe for concurrent use.
type Decider interface {
	Decide(e *request.Execution) bool
}

// DeciderFunc adapts a plain function to Decider. Deciders built from
// functions compose with And and Or.
type DeciderFunc func(e *request.Execution) bool

// DefaultTimes is the number of retries DefaultDecider allows on top of
// the first attempt.
const DefaultTimes = 3

// DefaultMinRemaining is the deadline budget below which DefaultDecider
// stops retrying.
const DefaultMinRemaining = 10 * time.Millisecond

// DefaultDecider retries up to DefaultTimes times while at least
// DefaultMinRemaining is left before the command deadline. It retries
// status codes 429 and 503, and errors accepted by TransientErr.
var DefaultDecider = Times(DefaultTimes).
	And(Remaining(DefaultMinRemaining)).
	And(StatusCode(429, 503).Or(TransientErr))

// TransientErr retries errors that transient.Categorize deems
// retryable, unless transient.Ambiguous reports that the attempt may
// have reached the service. An attempt that received a response has no
// error, so TransientErr is false for it.
var TransientErr DeciderFunc = transientErr

// Decide calls f(e).
func (f DeciderFunc) Decide(e *request.Execution) bool {
	return f(e)
}

// And returns a decider that is true when both f and g are. g is not
// called if f is false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) && g(e)
	}
}

// Or returns a decider that is true when f or g is. g is not called if
// f is true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(e *request.Execution) bool {
		return f(e) || g(e)
	}
}

// Times allows n retries. Attempt 0 is the first send, so the decider
// is true while e.Attempt < n.
func Times(n int) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Attempt < n
	}
}

// Remaining allows a retry only while at least d is left before the
// command deadline. Retries never move the deadline, so this is the
// budget the retried attempt gets.
func Remaining(d time.Duration) DeciderFunc {
	return func(e *request.Execution) bool {
		return e.Remaining() >= d
	}
}

// StatusCode retries attempts whose response carries one of the codes
// in ss. Attempts that ended in an error never match.
func StatusCode(ss ...int) DeciderFunc {
	codes := make(map[int]struct{}, len(ss))
	for _, s := range ss {
		codes[s] = struct{}{}
	}
	return func(e *request.Execution) bool {
		if e.Response == nil {
			return false
		}
		_, ok := codes[e.StatusCode()]
		return ok
	}
}

func transientErr(e *request.Execution) bool {
	if e.Err == nil || transient.Ambiguous(e.Err) {
		return false
	}
	return transient.Categorize(e.Err).Retryable()
}
