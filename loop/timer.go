// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loop

import (
	"time"
)

// A Timer runs a function on its loop once a deadline passes.
//
// Timer methods are confined to the loop goroutine. The expiry function
// also runs on the loop goroutine, so it never races with the code that
// arms or cancels the timer.
//
// Unlike time.Timer, cancelling a Timer is exact: once Cancel (or a
// new Arm) returns, the previously armed expiry function will not run,
// even if the underlying runtime timer already fired and its task is
// sitting in the loop queue.
//
// Closing the loop expires every armed timer at once; see Loop.Close.
type Timer struct {
	l     *Loop
	t     *time.Timer
	f     func()
	gen   uint64
	armed bool
	at    time.Time
}

// NewTimer creates an unarmed timer bound to the loop.
func (l *Loop) NewTimer() *Timer {
	return &Timer{l: l}
}

// Arm arms the timer to run f on the loop after d elapses. Any earlier
// arming is cancelled first.
func (t *Timer) Arm(d time.Duration, f func()) {
	t.ArmAt(time.Now().Add(d), f)
}

// ArmAt arms the timer to run f on the loop at time at. If at is in
// the past, f runs as soon as the loop gets to it. Any earlier arming
// is cancelled first.
func (t *Timer) ArmAt(at time.Time, f func()) {
	if f == nil {
		panic("httpcmd/loop: nil timer func")
	}

	t.Cancel()
	t.gen++
	gen := t.gen
	t.armed = true
	t.at = at
	t.f = f
	l := t.l
	l.timers[t] = struct{}{}
	t.t = time.AfterFunc(time.Until(at), func() {
		l.Post(func() { t.fire(gen, f) })
	})
}

// Cancel disarms the timer. It returns true if the timer was armed and
// is now cancelled, and false if it was not armed (never armed, already
// expired, or already cancelled).
func (t *Timer) Cancel() bool {
	if !t.armed {
		return false
	}

	t.armed = false
	t.gen++
	t.f = nil
	delete(t.l.timers, t)
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	return true
}

// Armed indicates whether the timer is armed and has not yet expired.
func (t *Timer) Armed() bool {
	return t.armed
}

// Deadline returns the instant the timer was most recently armed for.
// It returns the zero time if the timer was never armed.
func (t *Timer) Deadline() time.Time {
	return t.at
}

func (t *Timer) fire(gen uint64, f func()) {
	if !t.armed || gen != t.gen {
		return
	}

	t.armed = false
	t.t = nil
	t.f = nil
	delete(t.l.timers, t)
	f()
}

// expire runs the armed expiry function now.
func (t *Timer) expire() {
	if !t.armed {
		delete(t.l.timers, t)
		return
	}
	if t.t != nil {
		t.t.Stop()
	}
	t.fire(t.gen, t.f)
}
