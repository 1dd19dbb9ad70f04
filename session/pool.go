// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"log/slog"

	"github.com/gogama/httpcmd"
	"github.com/gogama/httpcmd/loop"
)

// A Factory creates a new session for a pool.
type Factory func() (httpcmd.Session, error)

// A Pool is an httpcmd.SessionSource holding up to a fixed number of
// sessions to one endpoint. Each session serves one command at a time.
//
// When every session is in use, Acquire defers the caller until a
// session is released, in first-come first-served order. Sessions that
// come back stopped (for example after a command deadline stopped them)
// are discarded and replaced on demand by the factory.
//
// Pool is confined to its loop, like the commands using it.
type Pool struct {
	factory Factory
	max     int
	logger  *slog.Logger

	idle    []httpcmd.Session
	waiters []func(httpcmd.Session)
	size    int
	closed  bool
}

// NewPool creates an empty pool that creates at most max sessions using
// factory. Sessions are created lazily, on Acquire.
func NewPool(factory Factory, max int, logger *slog.Logger) *Pool {
	if factory == nil {
		panic("httpcmd/session: nil factory")
	}
	if max < 1 {
		panic("httpcmd/session: max must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		factory: factory,
		max:     max,
		logger:  logger,
	}
}

// HTTPFactory returns a factory creating HTTP sessions.
func HTTPFactory(l *loop.Loop, base string, opts ...Option) Factory {
	return func() (httpcmd.Session, error) {
		u, err := parseEndpoint(base)
		if err != nil {
			return nil, err
		}
		s, err := New(l, u, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Acquire calls f with an idle session, with a newly created one if the
// pool is below its maximum size, or else later, once a session is
// released. After Close, f is never called.
func (p *Pool) Acquire(f func(httpcmd.Session)) {
	if f == nil {
		panic("httpcmd/session: nil acquire func")
	}
	if p.closed {
		return
	}

	if len(p.idle) > 0 {
		s := p.idle[0]
		p.idle = p.idle[1:]
		f(s)
		return
	}

	if s := p.grow(); s != nil {
		f(s)
		return
	}

	p.waiters = append(p.waiters, f)
	p.logger.Debug("session acquisition deferred", "waiting", len(p.waiters), "size", p.size)
}

// Release hands s back to the pool, passing it straight to the oldest
// deferred caller if there is one.
func (p *Pool) Release(s httpcmd.Session) {
	if s == nil {
		panic("httpcmd/session: nil session")
	}

	if stopped(s) {
		p.size--
		p.logger.Debug("discarding stopped session", "session", s.LogPrefix())
		if !p.closed && len(p.waiters) > 0 {
			if r := p.grow(); r != nil {
				p.handOff(r)
			}
		}
		return
	}

	if p.closed {
		p.size--
		s.Stop()
		return
	}

	if len(p.waiters) > 0 {
		p.handOff(s)
		return
	}

	p.idle = append(p.idle, s)
}

// Close stops the idle sessions and drops every deferred caller.
// Sessions still in use are stopped when released.
func (p *Pool) Close() {
	if p.closed {
		return
	}

	p.closed = true
	if len(p.waiters) > 0 {
		p.logger.Debug("dropping deferred acquisitions", "waiting", len(p.waiters))
	}
	p.waiters = nil
	for _, s := range p.idle {
		s.Stop()
		p.size--
	}
	p.idle = nil
}

// Size returns the number of live sessions, idle or in use.
func (p *Pool) Size() int {
	return p.size
}

// Idle returns the number of idle sessions.
func (p *Pool) Idle() int {
	return len(p.idle)
}

// Waiting returns the number of deferred Acquire calls.
func (p *Pool) Waiting() int {
	return len(p.waiters)
}

func (p *Pool) grow() httpcmd.Session {
	if p.size >= p.max {
		return nil
	}

	s, err := p.factory()
	if err != nil {
		p.logger.Warn("session creation failed", "error", err)
		return nil
	}
	p.size++
	return s
}

func (p *Pool) handOff(s httpcmd.Session) {
	f := p.waiters[0]
	p.waiters[0] = nil
	p.waiters = p.waiters[1:]
	f(s)
}

func stopped(s httpcmd.Session) bool {
	st, ok := s.(interface{ Stopped() bool })
	return ok && st.Stopped()
}
