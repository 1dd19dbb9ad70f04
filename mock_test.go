// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpcmd

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gogama/httpcmd/loop"
	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/service"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRequest struct {
	svc       service.Type
	timeout   time.Duration
	id        string
	encodeErr error
	encodes   int
}

func (r *fakeRequest) Service() service.Type   { return r.svc }
func (r *fakeRequest) Timeout() time.Duration  { return r.timeout }
func (r *fakeRequest) ClientContextID() string { return r.id }

func (r *fakeRequest) EncodeTo(enc *request.Encoded, ctx *request.Context) error {
	r.encodes++
	if r.encodeErr != nil {
		return r.encodeErr
	}
	enc.Method = "POST"
	enc.Path = "/analytics/service?pretty=false"
	enc.Header.Set("Content-Type", "application/json")
	enc.SetBasicAuth(ctx.Credentials.Username, ctx.Credentials.Password)
	enc.Body = append(enc.Body, `{"statement":"SELECT 1"}`...)
	return nil
}

type reply struct {
	delay time.Duration
	resp  *request.Response
	err   error
}

// fakeSession is confined to its loop, like a real session. With a nil
// replyFunc it never completes a write until told to.
type fakeSession struct {
	l          *loop.Loop
	id         string
	ctx        request.Context
	replyFunc  func(n int) reply
	stopPanics bool

	writes    []request.Encoded
	writeTime []time.Time
	pending   []func(*request.Response, error)
	stops     int
}

func newFakeSession(l *loop.Loop, id string) *fakeSession {
	return &fakeSession{
		l:  l,
		id: id,
		ctx: request.Context{
			Hostname:    "db1.example.com",
			Port:        8095,
			Credentials: request.Credentials{Username: "admin", Password: "secret"},
		},
	}
}

func (s *fakeSession) ID() string                      { return s.id }
func (s *fakeSession) LocalAddr() string               { return "10.0.0.1:50123" }
func (s *fakeSession) RemoteAddr() string              { return "10.0.0.2:8095" }
func (s *fakeSession) LogPrefix() string               { return "[" + s.id + "]" }
func (s *fakeSession) EncodeContext() *request.Context { return &s.ctx }

func (s *fakeSession) WriteAndAwait(enc *request.Encoded, done func(*request.Response, error)) {
	cp := request.Encoded{
		Type:    enc.Type,
		Method:  enc.Method,
		Path:    enc.Path,
		Header:  enc.Header.Clone(),
		Body:    append([]byte(nil), enc.Body...),
		Timeout: enc.Timeout,
	}
	n := len(s.writes)
	s.writes = append(s.writes, cp)
	s.writeTime = append(s.writeTime, time.Now())
	if s.replyFunc == nil {
		s.pending = append(s.pending, done)
		return
	}
	r := s.replyFunc(n)
	if r.delay <= 0 {
		s.l.Post(func() { done(r.resp, r.err) })
		return
	}
	time.AfterFunc(r.delay, func() {
		s.l.Post(func() { done(r.resp, r.err) })
	})
}

func (s *fakeSession) Stop() {
	s.stops++
	pending := s.pending
	s.pending = nil
	for _, done := range pending {
		done := done
		s.l.Post(func() { done(nil, fmt.Errorf("session %s: %w", s.id, ErrAborted)) })
	}
	if s.stopPanics {
		panic("stop exploded")
	}
}

// complete completes the oldest pending write. Call it on the loop.
func (s *fakeSession) complete(resp *request.Response, err error) {
	done := s.pending[0]
	s.pending = s.pending[1:]
	done(resp, err)
}

func okResponse() *request.Response {
	return &request.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(`{"status":"success"}`),
	}
}

type fakeSpan struct {
	name   string
	parent Span
	tags   map[string]string
	ends   int
}

func (s *fakeSpan) AddTag(key, value string) {
	s.tags[key] = value
}

func (s *fakeSpan) End() {
	s.ends++
}

type fakeTracer struct {
	mu    sync.Mutex
	spans []*fakeSpan
}

func (t *fakeTracer) StartSpan(name string, parent Span) Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &fakeSpan{name: name, parent: parent, tags: map[string]string{}}
	t.spans = append(t.spans, s)
	return s
}

// open returns the number of spans started but not ended.
func (t *fakeTracer) open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.spans {
		if s.ends == 0 {
			n++
		}
	}
	return n
}

type measurement struct {
	name   string
	tags   map[string]string
	micros int64
}

type fakeMeter struct {
	mu  sync.Mutex
	got []measurement
}

func (m *fakeMeter) Recorder(name string, tags map[string]string) Recorder {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	return recorderFunc(func(micros int64) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.got = append(m.got, measurement{name: name, tags: cp, micros: micros})
	})
}

func (m *fakeMeter) measurements() []measurement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]measurement(nil), m.got...)
}

type recorderFunc func(int64)

func (f recorderFunc) Record(micros int64) { f(micros) }

type delivery struct {
	n             int
	err           error
	resp          *request.Response
	attempt       int
	openSpans     int
	deadlineArmed bool
	retryable     bool
	at            time.Time
}

// harness drives commands on a real loop from the test goroutine.
type harness struct {
	t        *testing.T
	l        *loop.Loop
	tracer   *fakeTracer
	meter    *fakeMeter
	handlers *HandlerGroup
	events   *trace
	out      chan delivery
}

func newHarness(t *testing.T) *harness {
	l := loop.New()
	t.Cleanup(l.Close)
	h := &harness{
		t:        t,
		l:        l,
		tracer:   &fakeTracer{},
		meter:    &fakeMeter{},
		handlers: &HandlerGroup{},
		out:      make(chan delivery, 100),
	}
	h.events = traceEvents(h.handlers)
	return h
}

func (h *harness) command(req *fakeRequest, opts ...Option) *Command[*fakeRequest] {
	var cmd *Command[*fakeRequest]
	opts = append([]Option{
		WithTracer(h.tracer),
		WithMeter(h.meter),
		WithHandlers(h.handlers),
	}, opts...)
	require.True(h.t, h.l.Do(func() { cmd = NewCommand(h.l, req, opts...) }))
	return cmd
}

// start starts cmd with a continuation that records every delivery and
// answers with decide.
func (h *harness) start(cmd *Command[*fakeRequest], decide func(n int, e *request.Execution) Decision) {
	n := 0
	require.True(h.t, h.l.Do(func() {
		cmd.Start(func(e *request.Execution) Decision {
			d := delivery{
				n:             n,
				err:           e.Err,
				resp:          e.Response,
				attempt:       e.Attempt,
				openSpans:     h.tracer.open(),
				deadlineArmed: cmd.deadline.Armed(),
				retryable:     cmd.Retryable(),
				at:            time.Now(),
			}
			dec := Accept
			if decide != nil {
				dec = decide(n, e)
			}
			n++
			h.out <- d
			return dec
		})
	}))
}

func (h *harness) sendTo(cmd *Command[*fakeRequest], s Session) bool {
	var ok bool
	require.True(h.t, h.l.Do(func() { ok = cmd.SendTo(s) }))
	return ok
}

func (h *harness) do(f func()) {
	require.True(h.t, h.l.Do(f))
}

func (h *harness) next() delivery {
	select {
	case d := <-h.out:
		return d
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for delivery")
		return delivery{}
	}
}

func (h *harness) noMore(d time.Duration) {
	select {
	case got := <-h.out:
		h.t.Fatalf("unexpected delivery #%d: %+v", got.n, got)
	case <-time.After(d):
	}
}

func (h *harness) eventNames() []string {
	var calls []string
	h.do(func() { calls = append(calls, h.events.calls...) })
	return calls
}

type trace struct {
	calls []string
}

func traceEvents(g *HandlerGroup) *trace {
	tr := &trace{}
	f := func(evt Event, _ *request.Execution) {
		tr.calls = append(tr.calls, evt.Name())
	}
	h := HandlerFunc(f)
	for _, evt := range Events() {
		g.PushBack(evt, h)
	}
	return tr
}

type mockTimeoutPolicy struct {
	mock.Mock
}

func newMockTimeoutPolicy(t *testing.T) *mockTimeoutPolicy {
	m := &mockTimeoutPolicy{}
	m.Test(t)
	return m
}

func (m *mockTimeoutPolicy) Timeout(e *request.Execution) time.Duration {
	args := m.Called(e)
	return args.Get(0).(time.Duration)
}

type mockRetryPolicy struct {
	mock.Mock
}

func newMockRetryPolicy(t *testing.T) *mockRetryPolicy {
	m := &mockRetryPolicy{}
	m.Test(t)
	return m
}

func (m *mockRetryPolicy) Decide(e *request.Execution) bool {
	args := m.Called(e)
	return args.Bool(0)
}

func (m *mockRetryPolicy) Wait(e *request.Execution) time.Duration {
	args := m.Called(e)
	return args.Get(0).(time.Duration)
}
