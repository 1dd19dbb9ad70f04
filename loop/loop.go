// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package loop

import (
	"sort"
	"sync"
)

const nilTaskMsg = "httpcmd/loop: nil task"

// A Loop is a single-threaded cooperative executor. Tasks posted to a
// Loop run one at a time, in the order they were posted, on a single
// goroutine owned by the Loop.
//
// Code running on the loop goroutine may freely touch state confined
// to the loop (commands, timers, sessions) without locking. Code
// running on any other goroutine must hand work to the loop using Post
// or Do.
//
// The zero value is not usable. Create loops with New.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}

	// Armed timers. Only touched on the loop goroutine.
	timers map[*Timer]struct{}
}

// New creates a Loop and starts its goroutine. Release the goroutine
// by calling Close when the loop is no longer needed.
func New() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		timers: make(map[*Timer]struct{}),
	}
	go l.run()
	return l
}

// Post enqueues f to run on the loop goroutine. It is safe to call
// Post from any goroutine, including from a task running on the loop.
//
// Post returns false, and f is never run, if the loop is closed.
func (l *Loop) Post(f func()) bool {
	if f == nil {
		panic(nilTaskMsg)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	l.signal()
	return true
}

// Do runs f on the loop goroutine and waits for it to return. Do
// returns false, without running f, if the loop is closed.
//
// Do must not be called from a task running on the loop, since the
// task would then wait on itself forever.
func (l *Loop) Do(f func()) bool {
	if f == nil {
		panic(nilTaskMsg)
	}

	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		f()
	}) {
		return false
	}
	<-ran
	return true
}

// Close stops the loop from accepting new tasks, waits for the tasks
// already queued to run, expires every timer still armed, and then
// waits for the loop goroutine to exit. Expired timers run in deadline
// order, on the loop goroutine, with Closed reporting true; timers they
// arm are expired in turn.
//
// Close is idempotent. Like Do, it must not be called from the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.signal()
	<-l.done
}

// Closed indicates whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)

	var batch []func()
	for {
		l.mu.Lock()
		batch, l.queue = l.queue, batch[:0]
		closed := l.closed
		l.mu.Unlock()

		for i, f := range batch {
			batch[i] = nil
			f()
		}

		if len(batch) == 0 {
			if closed {
				l.expireTimers()
				return
			}
			<-l.wake
		}
	}
}

func (l *Loop) expireTimers() {
	for len(l.timers) > 0 {
		armed := make([]*Timer, 0, len(l.timers))
		for t := range l.timers {
			armed = append(armed, t)
		}
		sort.Slice(armed, func(i, j int) bool {
			return armed[i].at.Before(armed[j].at)
		})
		for _, t := range armed {
			t.expire()
		}
	}
}
