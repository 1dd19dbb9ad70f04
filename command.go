// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpcmd

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/httpcmd/loop"
	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/timeout"
)

// Span tags, metric names and headers written by a command.
const (
	TagService      = "db.service"
	TagOperationID  = "db.operation_id"
	TagOperation    = "db.operation"
	TagLocalID      = "db.local_id"
	TagLocalSocket  = "db.local_socket"
	TagRemoteSocket = "db.remote_socket"
	TagAttempt      = "db.attempt"

	MetricOperations = "db.operations"

	HeaderClientContextID = "client-context-id"
)

// A State is the lifecycle state of a Command.
type State int

const (
	// Idle is the state of a new command.
	Idle State = iota
	// Armed means the command is started: its deadline is running and
	// it waits for a session.
	Armed
	// Dispatched means an attempt is in flight on the bound session.
	Dispatched
	// Retrying means the continuation asked for a retry and the command
	// waits for its backoff timer, or for an explicit SendTo.
	Retrying
	// Completed is the terminal state: the outcome has been delivered.
	Completed
)

var stateNames = []string{
	"Idle",
	"Armed",
	"Dispatched",
	"Retrying",
	"Completed",
}

// String returns the name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// A SpanPolicy decides how a command traces retried attempts.
type SpanPolicy int

const (
	// SpanPerOperation opens one span when the command starts. The span
	// ends before the first delivery, so retried attempts are counted
	// in metrics but not traced.
	SpanPerOperation SpanPolicy = iota
	// SpanPerAttempt additionally opens a fresh span, tagged with
	// TagAttempt, for every retried attempt.
	SpanPerAttempt
)

// An Option configures a Command.
type Option func(*options)

type options struct {
	tracer        Tracer
	meter         Meter
	handlers      *HandlerGroup
	logger        *slog.Logger
	timeoutPolicy timeout.Policy
	spanPolicy    SpanPolicy
	parent        Span
}

// WithTracer sets the tracer spans are started on. Without a tracer the
// command is not traced.
func WithTracer(t Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMeter sets the meter attempt latencies are recorded on. Without a
// meter latencies are not recorded.
func WithMeter(m Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithHandlers installs event handlers.
func WithHandlers(g *HandlerGroup) Option {
	return func(o *options) { o.handlers = g }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeoutPolicy sets the policy consulted when the request has no
// timeout of its own. The default is timeout.DefaultPolicy.
func WithTimeoutPolicy(p timeout.Policy) Option {
	return func(o *options) { o.timeoutPolicy = p }
}

// WithSpanPolicy sets how retried attempts are traced.
func WithSpanPolicy(p SpanPolicy) Option {
	return func(o *options) { o.spanPolicy = p }
}

// WithParentSpan sets the parent of the spans the command starts.
func WithParentSpan(s Span) Option {
	return func(o *options) { o.parent = s }
}

// A Command carries one logical operation, possibly spanning several
// attempts, to a session and delivers its outcome to a continuation
// exactly once.
//
// A Command is confined to the loop it was created for: NewCommand and
// every method must be called from a task running on that loop.
//
// A Command moves through the states Idle, Armed, Dispatched, Retrying
// and Completed. The end-to-end deadline armed by Start bounds every
// attempt and is never extended by a retry.
type Command[R Request] struct {
	l    *loop.Loop
	req  R
	enc  request.Encoded
	exec request.Execution

	deadline *loop.Timer
	backoff  *loop.Timer

	tracer        Tracer
	meter         Meter
	handlers      *HandlerGroup
	logger        *slog.Logger
	timeoutPolicy timeout.Policy
	spanPolicy    SpanPolicy
	parent        Span

	span    Span
	session Session
	cont    Continuation
	state   State
	final   bool
	write   uint64
}

var emptyHandlers = HandlerGroup{}

// NewCommand creates an idle command for req, bound to loop l.
func NewCommand[R Request](l *loop.Loop, req R, opts ...Option) *Command[R] {
	if l == nil {
		panic("httpcmd: nil loop")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.handlers == nil {
		o.handlers = &emptyHandlers
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.timeoutPolicy == nil {
		o.timeoutPolicy = timeout.DefaultPolicy
	}

	return &Command[R]{
		l:    l,
		req:  req,
		exec: request.Execution{
			Service:         req.Service(),
			ClientContextID: req.ClientContextID(),
		},
		deadline:      l.NewTimer(),
		backoff:       l.NewTimer(),
		tracer:        o.tracer,
		meter:         o.meter,
		handlers:      o.handlers,
		logger:        o.logger,
		timeoutPolicy: o.timeoutPolicy,
		spanPolicy:    o.spanPolicy,
		parent:        o.parent,
	}
}

// Request returns the request the command carries.
func (c *Command[R]) Request() R {
	return c.req
}

// State returns the lifecycle state of the command.
func (c *Command[R]) State() State {
	return c.state
}

// Session returns the bound session, or nil if the command was never
// sent.
func (c *Command[R]) Session() Session {
	return c.session
}

// Execution returns the execution state of the command. Treat it as
// read-only.
func (c *Command[R]) Execution() *request.Execution {
	return &c.exec
}

// Backoff returns the backoff timer. The command never arms it. A retry
// orchestrator may arm it from the continuation before returning Retry:
// the command then holds the retried attempt in state Retrying until
// the orchestrator calls SendTo, typically from the timer's expiry. The
// command cancels the timer when it completes or is sent again.
func (c *Command[R]) Backoff() *loop.Timer {
	return c.backoff
}

// Retryable reports whether a Retry returned by the continuation for
// the result it is being handed would be honored. It is false outside
// the continuation, and for terminal results: timeouts, aborted
// attempts and encoding errors.
func (c *Command[R]) Retryable() bool {
	return c.state == Completed && c.cont != nil && !c.final
}

// Start registers the continuation, starts the span and arms the
// deadline. Start does not touch any session; call SendTo once one is
// available.
//
// Start panics if cont is nil or if the command was already started.
func (c *Command[R]) Start(cont Continuation) {
	if cont == nil {
		panic("httpcmd: nil continuation")
	}
	if c.state != Idle {
		panic("httpcmd: command already started")
	}

	c.cont = cont
	c.state = Armed
	c.exec.Start = time.Now()
	d := c.req.Timeout()
	if d <= 0 {
		d = c.timeoutPolicy.Timeout(&c.exec)
	}
	c.exec.Deadline = c.exec.Start.Add(d)
	c.startSpan()
	c.deadline.ArmAt(c.exec.Deadline, c.cancel)
	c.handlers.run(AfterStart, &c.exec)
}

// SendTo binds the command to s, replacing any previously bound
// session, and sends the request over it.
//
// SendTo returns false, without touching s, if the command is not
// started or has already delivered its outcome. In that case the caller
// keeps ownership of s.
func (c *Command[R]) SendTo(s Session) bool {
	if s == nil {
		panic("httpcmd: nil session")
	}
	if c.state == Idle || c.state == Completed {
		return false
	}

	c.session = s
	c.exec.SessionID = s.ID()
	if c.span != nil {
		c.span.AddTag(TagLocalID, s.ID())
	}
	c.backoff.Cancel()
	c.send()
	return true
}

func (c *Command[R]) send() {
	s := c.session
	c.state = Dispatched
	c.enc.Reset(c.req.Service())
	c.enc.Timeout = c.exec.Deadline.Sub(c.exec.Start)
	c.exec.Encoded = &c.enc
	c.exec.Response = nil
	c.exec.Err = nil

	if err := c.req.EncodeTo(&c.enc, s.EncodeContext()); err != nil {
		c.logger.Debug("request encoding failed",
			"session", s.LogPrefix(),
			"client_context_id", c.exec.ClientContextID,
			"error", err)
		c.complete(err)
		return
	}
	c.enc.Header.Set(HeaderClientContextID, c.exec.ClientContextID)
	c.handlers.run(BeforeAttempt, &c.exec)

	c.logger.Debug("sending request",
		"session", s.LogPrefix(),
		"service", c.exec.Service.Name(),
		"method", c.enc.Method,
		"path", c.enc.Path,
		"attempt", c.exec.Attempt,
		"client_context_id", c.exec.ClientContextID)

	c.write++
	gen := c.write
	sent := time.Now()
	fired := false
	s.WriteAndAwait(&c.enc, func(resp *request.Response, err error) {
		if fired {
			return
		}
		fired = true
		if gen != c.write || c.state != Dispatched {
			return
		}
		c.onComplete(s, sent, resp, err)
	})
}

func (c *Command[R]) onComplete(s Session, sent time.Time, resp *request.Response, err error) {
	if err != nil && errors.Is(err, ErrAborted) {
		c.exec.Response = nil
		c.exec.Err = ambiguousTimeout(err)
		c.handlers.run(AfterAbort, &c.exec)
		c.logger.Debug("request aborted",
			"session", s.LogPrefix(),
			"client_context_id", c.exec.ClientContextID,
			"error", err)
		c.complete(c.exec.Err)
		return
	}

	elapsed := time.Since(sent)
	if c.meter != nil {
		c.meter.Recorder(MetricOperations, map[string]string{
			TagService:   c.exec.Service.Name(),
			TagOperation: operationPath(c.enc.Path),
		}).Record(elapsed.Microseconds())
	}
	c.deadline.Cancel()
	if c.span != nil {
		c.span.AddTag(TagRemoteSocket, s.RemoteAddr())
		c.span.AddTag(TagLocalSocket, s.LocalAddr())
	}
	c.endSpan()
	c.exec.Response = resp
	c.exec.Err = err
	c.handlers.run(AfterAttempt, &c.exec)

	c.logger.Debug("received response",
		"session", s.LogPrefix(),
		"status", c.exec.StatusCode(),
		"elapsed", elapsed,
		"attempt", c.exec.Attempt,
		"client_context_id", c.exec.ClientContextID,
		"error", err)

	if c.deliver(false) == Retry {
		c.retry()
		return
	}
	c.backoff.Cancel()
	c.finish()
}

// cancel runs on deadline expiry, and when the loop closes under the
// command, in which case the outcome is ErrClosed.
func (c *Command[R]) cancel() {
	if c.state == Idle || c.state == Completed {
		return
	}

	err := ErrUnambiguousTimeout
	if c.l.Closed() {
		err = ErrClosed
	}
	c.exec.Response = nil
	c.exec.Err = err
	c.handlers.run(AfterDeadline, &c.exec)
	c.logger.Debug("command deadline passed",
		"state", c.state.String(),
		"attempt", c.exec.Attempt,
		"client_context_id", c.exec.ClientContextID)

	// Any completion Stop triggers belongs to a write that is no longer
	// current.
	c.write++
	if c.session != nil {
		c.stopSession(c.session)
	}
	c.complete(err)
}

// complete delivers a terminal error. The span ends before the
// continuation runs and both timers are cancelled after it.
func (c *Command[R]) complete(err error) {
	c.exec.Response = nil
	c.exec.Err = err
	c.endSpan()
	c.deliver(true)
	c.backoff.Cancel()
	c.deadline.Cancel()
	c.finish()
}

func (c *Command[R]) deliver(final bool) Decision {
	c.state = Completed
	c.final = final
	c.exec.End = time.Now()
	return c.cont(&c.exec)
}

func (c *Command[R]) finish() {
	c.cont = nil
	c.handlers.run(AfterComplete, &c.exec)
	c.logger.Debug("command completed",
		"attempts", c.exec.Attempt+1,
		"duration", c.exec.Duration(),
		"client_context_id", c.exec.ClientContextID,
		"error", c.exec.Err)
}

func (c *Command[R]) retry() {
	c.state = Retrying
	c.exec.End = time.Time{}
	c.exec.Attempt++

	if c.l.Closed() || !time.Now().Before(c.exec.Deadline) {
		c.cancel()
		return
	}
	c.deadline.ArmAt(c.exec.Deadline, c.cancel)

	if c.spanPolicy == SpanPerAttempt {
		c.startSpan()
		if c.span != nil {
			c.span.AddTag(TagAttempt, strconv.Itoa(c.exec.Attempt))
			c.span.AddTag(TagLocalID, c.exec.SessionID)
		}
	}

	if c.backoff.Armed() {
		c.logger.Debug("holding retry for backoff",
			"until", c.backoff.Deadline(),
			"attempt", c.exec.Attempt,
			"client_context_id", c.exec.ClientContextID)
		return
	}
	c.send()
}

func (c *Command[R]) startSpan() {
	if c.tracer == nil {
		return
	}
	c.span = c.tracer.StartSpan(c.exec.Service.SpanName(), c.parent)
	c.span.AddTag(TagService, c.exec.Service.Name())
	c.span.AddTag(TagOperationID, c.exec.ClientContextID)
}

func (c *Command[R]) endSpan() {
	if c.span == nil {
		return
	}
	c.span.End()
	c.span = nil
}

func (c *Command[R]) stopSession(s Session) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("session stop panicked",
				"session", s.LogPrefix(),
				"panic", r)
		}
	}()
	s.Stop()
}

func operationPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
