// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gogama/httpcmd/request"
	"github.com/jpillora/backoff"
)

// A Waiter returns the backoff before the retried attempt is sent.
// httpcmd.Client consults it after the Decider allowed a retry, with
// e.Attempt still naming the attempt that just finished, and arms the
// command's backoff timer for a positive result. Zero sends the retried
// attempt at once.
//
// The backoff runs against the command deadline. If the deadline comes
// first the command times out while it waits.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

// DefaultWaiter backs off exponentially from 50 milliseconds up to one
// second, with full jitter.
var DefaultWaiter = NewExpWaiter(50*time.Millisecond, time.Second,
	rand.New(rand.NewSource(time.Now().UnixNano())))

// NewFixedWaiter returns a Waiter that always waits d.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter returns a Waiter whose ceiling after attempt n is
// base*2^n, capped at max. With a nil r the waiter returns the ceiling.
// Otherwise it returns a uniform draw from [0, ceiling) taken from r,
// which the waiter serializes access to.
//
// NewExpWaiter panics unless 0 < base <= max.
func NewExpWaiter(base, max time.Duration, r *rand.Rand) Waiter {
	if base <= 0 {
		panic("httpcmd/retry: base must be positive")
	}
	if max < base {
		panic("httpcmd/retry: max must be at least base")
	}
	return &expWaiter{base: base, max: max, rand: r}
}

type expWaiter struct {
	base time.Duration
	max  time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

func (w *expWaiter) Wait(e *request.Execution) time.Duration {
	ceil := w.max
	// Shifting past max/base, or by a bogus attempt index, saturates.
	if n := e.Attempt; n >= 0 && n < 63 && w.base <= w.max>>uint(n) {
		ceil = w.base << uint(n)
	}
	if w.rand == nil {
		return ceil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Duration(w.rand.Int63n(int64(ceil)))
}

// NewBackoffWaiter returns a Waiter that waits b.ForAttempt(e.Attempt).
// The waiter copies b and only reads the copy, so one waiter serves any
// number of commands.
func NewBackoffWaiter(b *backoff.Backoff) Waiter {
	if b == nil {
		panic("httpcmd/retry: nil backoff")
	}
	c := *b
	return backoffWaiter{b: &c}
}

type backoffWaiter struct {
	b *backoff.Backoff
}

func (w backoffWaiter) Wait(e *request.Execution) time.Duration {
	return w.b.ForAttempt(float64(e.Attempt))
}
