// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpcmd

import (
	"log/slog"

	"github.com/gogama/httpcmd/loop"
	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/retry"
	"github.com/gogama/httpcmd/timeout"
)

// A SessionSource hands out sessions to commands and takes them back.
// Its methods are confined to the client's loop.
//
// Package session provides a pool implementation.
type SessionSource interface {
	// Acquire calls f with a session as soon as one is free. The call
	// may happen synchronously, or later from a loop task. If the
	// source is closed before a session is free, f may never run.
	Acquire(f func(Session))
	// Release returns a session obtained from Acquire.
	Release(s Session)
}

// A Client executes requests as commands on a loop, drawing sessions
// from a SessionSource and retrying failed attempts according to its
// retry policy.
//
// The zero value is not usable: Loop and Sessions are required. The
// remaining fields are optional.
//
// Client adds the following to a bare Command:
//
// • it acquires a session for the command, and releases it once the
// outcome is known, including after a timeout;
//
// • it turns its retry policy into the command's continuation, so the
// policy's Decider picks Retry or Accept, and its Waiter arms the
// command's backoff timer, whose expiry sends the retried attempt; and
//
// • it offers a blocking entry point, Do, for callers outside the loop.
type Client struct {
	// Loop runs every command of the client.
	Loop *loop.Loop
	// Sessions supplies sessions.
	Sessions SessionSource
	// Tracer starts the spans of each command. If nil, commands are
	// not traced.
	Tracer Tracer
	// Meter records attempt latencies. If nil, nothing is recorded.
	Meter Meter
	// RetryPolicy decides when to retry failed attempts and how long
	// to back off first.
	//
	// If RetryPolicy is nil, retry.DefaultPolicy is used. Use
	// retry.Never to disable retries.
	RetryPolicy retry.Policy
	// TimeoutPolicy sets the deadline of requests without a timeout.
	//
	// If TimeoutPolicy is nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// Handlers allows custom handler chains to be invoked when
	// designated events occur during execution of a command.
	//
	// If Handlers is nil, no custom handlers will be run.
	Handlers *HandlerGroup
	// Logger receives debug logs of every command. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
	// SpanPolicy decides how retried attempts are traced.
	SpanPolicy SpanPolicy
}

// Execute posts req to the client's loop, where it is run as a command.
// The done function runs on the loop, exactly once, with the final
// execution state; its Err field holds the error, if any.
//
// Execute returns false, and done never runs, if the loop is closed.
func Execute[R Request](c *Client, req R, done func(*request.Execution)) bool {
	if done == nil {
		panic("httpcmd: nil done func")
	}

	l := c.loop()
	sessions := c.sessions()
	return l.Post(func() {
		execute(c, l, sessions, req, done)
	})
}

// Do executes req and waits for the outcome. It must not be called from
// a task running on the client's loop.
//
// The returned Execution is nil only if the loop was already closed
// when Do was called. If the loop closes while req is outstanding, Do
// returns the execution with ErrClosed. Once Do returns the execution
// does not change any more.
func Do[R Request](c *Client, req R) (*request.Execution, error) {
	ch := make(chan *request.Execution, 1)
	if !Execute(c, req, func(e *request.Execution) { ch <- e }) {
		return nil, ErrClosed
	}
	e := <-ch
	return e, e.Err
}

func execute[R Request](c *Client, l *loop.Loop, sessions SessionSource, req R, done func(*request.Execution)) {
	policy := c.retryPolicy()
	logger := c.logger()

	cmd := NewCommand(l, req,
		WithTracer(c.Tracer),
		WithMeter(c.Meter),
		WithHandlers(c.Handlers),
		WithLogger(logger),
		WithTimeoutPolicy(c.TimeoutPolicy),
		WithSpanPolicy(c.SpanPolicy))

	var bound Session
	release := func() {
		if bound != nil {
			sessions.Release(bound)
			bound = nil
		}
	}

	cmd.Start(func(e *request.Execution) Decision {
		if cmd.Retryable() && policy.Decide(e) {
			wait := policy.Wait(e)
			logger.Debug("retrying request",
				"attempt", e.Attempt,
				"status", e.StatusCode(),
				"wait", wait,
				"client_context_id", e.ClientContextID,
				"error", e.Err)
			if wait > 0 {
				s := bound
				cmd.Backoff().Arm(wait, func() { cmd.SendTo(s) })
			}
			return Retry
		}
		release()
		done(e)
		return Accept
	})

	sessions.Acquire(func(s Session) {
		if s == nil {
			return
		}
		bound = s
		if !cmd.SendTo(s) {
			bound = nil
			sessions.Release(s)
		}
	})
}

func (c *Client) loop() *loop.Loop {
	if c.Loop == nil {
		panic("httpcmd: nil loop")
	}

	return c.Loop
}

func (c *Client) sessions() SessionSource {
	if c.Sessions == nil {
		panic("httpcmd: nil session source")
	}

	return c.Sessions
}

func (c *Client) retryPolicy() retry.Policy {
	if c.RetryPolicy == nil {
		return retry.DefaultPolicy
	}

	return c.RetryPolicy
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}

	return c.Logger
}
