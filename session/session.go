// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gogama/httpcmd"
	"github.com/gogama/httpcmd/loop"
	"github.com/gogama/httpcmd/request"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/bytebufferpool"
)

var (
	// ErrBusy is delivered when a write is issued to a session that
	// already has a write in flight.
	ErrBusy = errors.New("httpcmd/session: write already in flight")

	// ErrStopped is delivered when a write is issued to a stopped
	// session. Nothing is sent.
	ErrStopped = errors.New("httpcmd/session: session stopped")
)

// An HTTPDoer implements a Do method in the same manner as the GoLang
// standard library http.Client from the net/http package.
type HTTPDoer interface {
	// Do sends an HTTP request and returns an HTTP response following
	// policy (such as redirects, cookies, auth) configured on the
	// HTTPDoer.
	//
	// The Do method must follow the contract documented on the GoLang
	// standard library http.Client from the net/http package.
	Do(r *http.Request) (*http.Response, error)
}

// An Option configures an HTTP session.
type Option func(*HTTP)

// WithDoer sets the HTTPDoer requests are sent with. The default is
// http.DefaultClient.
func WithDoer(d HTTPDoer) Option {
	return func(s *HTTP) { s.doer = d }
}

// WithCredentials sets the credentials operations encode into their
// requests.
func WithCredentials(c request.Credentials) Option {
	return func(s *HTTP) { s.ectx.Credentials = c }
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(s *HTTP) { s.ectx.UserAgent = ua }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *HTTP) { s.logger = l }
}

// HTTP is an httpcmd.Session carrying one request at a time to a
// service endpoint over net/http.
//
// HTTP is confined to its loop, like the commands using it. The
// HTTPDoer runs on a separate goroutine and the outcome is posted back
// to the loop.
type HTTP struct {
	l      *loop.Loop
	id     string
	base   *url.URL
	doer   HTTPDoer
	ectx   request.Context
	logger *slog.Logger

	local   string
	remote  string
	busy    bool
	stopped bool
	cancel  context.CancelFunc
}

// New creates a session sending requests to the endpoint base, for
// example http://db1.example.com:8095.
func New(l *loop.Loop, base *url.URL, opts ...Option) (*HTTP, error) {
	if l == nil {
		panic("httpcmd/session: nil loop")
	}
	if base == nil || base.Host == "" {
		return nil, fmt.Errorf("httpcmd/session: endpoint must be an absolute URL: %w", request.ErrInvalidArgument)
	}

	port := 0
	if p := base.Port(); p != "" {
		var err error
		if port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("httpcmd/session: bad port %q: %w", p, request.ErrInvalidArgument)
		}
	} else if base.Scheme == "https" {
		port = 443
	} else {
		port = 80
	}

	s := &HTTP{
		l:    l,
		id:   uuid.NewString(),
		base: base,
		doer: http.DefaultClient,
		ectx: request.Context{
			Hostname: base.Hostname(),
			Port:     port,
			TLS:      base.Scheme == "https",
		},
		remote: base.Host,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// ID returns the random identifier assigned to the session.
func (s *HTTP) ID() string {
	return s.id
}

// LocalAddr returns the local address of the connection that carried
// the most recent request, or the empty string before the first.
func (s *HTTP) LocalAddr() string {
	return s.local
}

// RemoteAddr returns the remote address of the connection that carried
// the most recent request, or the endpoint host before the first.
func (s *HTTP) RemoteAddr() string {
	return s.remote
}

// LogPrefix identifies the session in log lines.
func (s *HTTP) LogPrefix() string {
	return "[" + s.id[:8] + "/" + s.base.Host + "]"
}

// EncodeContext returns the context requests are encoded against.
func (s *HTTP) EncodeContext() *request.Context {
	return &s.ectx
}

// Stopped indicates whether Stop has been called.
func (s *HTTP) Stopped() bool {
	return s.stopped
}

// Busy indicates whether a write is in flight.
func (s *HTTP) Busy() bool {
	return s.busy
}

// Stop aborts the write in flight, if any, and marks the session
// stopped. Later writes fail with ErrStopped.
func (s *HTTP) Stop() {
	if s.stopped {
		return
	}

	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// WriteAndAwait sends enc and posts done to the loop with the buffered
// response. If the session is stopped while the request is in flight,
// done receives an error matching httpcmd.ErrAborted.
func (s *HTTP) WriteAndAwait(enc *request.Encoded, done func(*request.Response, error)) {
	if s.stopped {
		s.l.Post(func() { done(nil, ErrStopped) })
		return
	}
	if s.busy {
		s.l.Post(func() { done(nil, ErrBusy) })
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &addrs{}
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: a.gotConn,
	})
	r, err := enc.ToRequest(ctx, s.base)
	if err != nil {
		cancel()
		s.l.Post(func() { done(nil, err) })
		return
	}
	if s.ectx.UserAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", s.ectx.UserAgent)
	}
	if r.Header.Get("Accept-Encoding") == "" {
		r.Header.Set("Accept-Encoding", "gzip")
	}

	s.busy = true
	s.cancel = cancel
	doer := s.doer
	go func() {
		resp, err := roundTrip(doer, r)
		aborted := ctx.Err() != nil
		cancel()
		local, remote := a.get()
		if !s.l.Post(func() {
			s.busy = false
			s.cancel = nil
			if local != "" {
				s.local = local
			}
			if remote != "" {
				s.remote = remote
			}
			if err != nil && aborted {
				err = fmt.Errorf("%w: %w", httpcmd.ErrAborted, err)
			}
			done(resp, err)
		}) {
			s.logger.Debug("loop closed before response was delivered", "session", s.id)
		}
	}()
}

func roundTrip(doer HTTPDoer, r *http.Request) (*request.Response, error) {
	resp, err := doer.Do(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return &request.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var rd io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpcmd/session: bad gzip body: %w", err)
		}
		defer func() {
			_ = zr.Close()
		}()
		rd = zr
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(rd); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

func parseEndpoint(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("httpcmd/session: bad endpoint %q: %w", s, request.ErrInvalidArgument)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("httpcmd/session: endpoint %q must use http or https: %w", s, request.ErrInvalidArgument)
	}
	return u, nil
}

type addrs struct {
	mu     sync.Mutex
	local  string
	remote string
}

func (a *addrs) gotConn(info httptrace.GotConnInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.local = info.Conn.LocalAddr().String()
	a.remote = info.Conn.RemoteAddr().String()
}

func (a *addrs) get() (string, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.local, a.remote
}
