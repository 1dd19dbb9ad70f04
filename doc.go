// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httpcmd provides the request-dispatch core of an HTTP database
client: a Command carries one logical operation over a pooled session,
enforces its end-to-end deadline, retries it when asked to, and delivers
its outcome to a continuation exactly once.

Commands run on a single-threaded loop (package loop). Everything a
command touches, including its timers and its bound session, is confined
to that loop, so no locks are needed:

	l := loop.New()
	defer l.Close()

	l.Post(func() {
		cmd := httpcmd.NewCommand(l, req,
			httpcmd.WithTracer(tracing.New(otel.Tracer("app"))),
			httpcmd.WithMeter(meter))
		cmd.Start(func(e *request.Execution) httpcmd.Decision {
			if e.StatusCode() == 503 {
				return httpcmd.Retry
			}
			handle(e.Response, e.Err)
			return httpcmd.Accept
		})
		pool.Acquire(func(s httpcmd.Session) {
			if !cmd.SendTo(s) {
				pool.Release(s)
			}
		})
	})

The continuation's Decision is the only way a command retries. A retry
is sent over the same session, within the deadline armed by Start.
Retry is ignored for terminal outcomes: ErrUnambiguousTimeout when the
deadline passes, ErrAmbiguousTimeout when the session is stopped under
an outstanding attempt, and encoding errors.

Most callers use a Client, which wires a session source (package
session), a retry policy (package retry) and a timeout policy (package
timeout) around each command:

	client := &httpcmd.Client{
		Loop:     l,
		Sessions: pool,
		Meter:    metrics.New(prometheus.DefaultRegisterer),
	}
	e, err := httpcmd.Do(client, &operations.AnalyticsRequest{
		Statement: "SELECT 1",
	})

To hook into the fine-grained details of command execution, install a
handler into the appropriate handler chain:

	handlers := &httpcmd.HandlerGroup{}
	handlers.PushBack(httpcmd.BeforeAttempt, httpcmd.HandlerFunc(
		func(_ httpcmd.Event, e *request.Execution) {
			logger.Info("attempt", "n", e.Attempt, "path", e.Encoded.Path)
		}),
	)
*/
package httpcmd
