// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"
	"time"

	"github.com/gogama/httpcmd/service"
	"golang.org/x/net/http/httpguts"
)

// An Encoded is the wire form of a request, ready for transmission over
// a session.
//
// The field structure mirrors the parts of an http.Request that an
// operation encoder controls. Everything that depends on the session
// rather than on the operation (scheme, host, port, TLS) is supplied
// by the session when the Encoded is converted with ToRequest.
//
// A command owns its Encoded and reuses it across retried attempts,
// calling Reset before each attempt so that the operation encoder always
// starts from a clean form while the body buffer keeps its capacity.
type Encoded struct {
	// Type identifies the service the request is addressed to.
	Type service.Type

	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// Path is the absolute path, optionally with a query string, of the
	// service endpoint, for example "/analytics/service".
	Path string

	// Header contains the request header fields to be sent.
	Header http.Header

	// Body is the pre-buffered request body to be sent. A nil or
	// empty body indicates no request body should be sent.
	Body []byte

	// Timeout is the end-to-end timeout of the command carrying the
	// request, set before the operation encoder runs. Encoders that
	// pass a timeout on to the service use it. Zero means unknown.
	Timeout time.Duration
}

// Reset clears e for encoding a new attempt against service t. Header
// map and body capacity are retained.
func (e *Encoded) Reset(t service.Type) {
	e.Type = t
	e.Method = ""
	e.Path = ""
	if e.Header == nil {
		e.Header = make(http.Header)
	} else {
		for k := range e.Header {
			delete(e.Header, k)
		}
	}
	e.Body = e.Body[:0]
	e.Timeout = 0
}

// SetBasicAuth sets the Authorization header to use HTTP Basic
// Authentication with the provided username and password.
func (e *Encoded) SetBasicAuth(username, password string) {
	if e.Header == nil {
		e.Header = make(http.Header)
	}
	e.Header.Set("Authorization", "Basic "+basicAuth(username, password))
}

// Validate checks that the method and headers of e are well-formed and
// that the path is absolute. It returns an error wrapping
// ErrInvalidArgument otherwise.
func (e *Encoded) Validate() error {
	if e.Method != "" && strings.IndexFunc(e.Method, isNotToken) != -1 {
		return fmt.Errorf("httpcmd/request: invalid method %q: %w", e.Method, ErrInvalidArgument)
	}
	if !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("httpcmd/request: path %q is not absolute: %w", e.Path, ErrInvalidArgument)
	}
	for k, vs := range e.Header {
		if !httpguts.ValidHeaderFieldName(k) {
			return fmt.Errorf("httpcmd/request: invalid header name %q: %w", k, ErrInvalidArgument)
		}
		for _, v := range vs {
			if !httpguts.ValidHeaderFieldValue(v) {
				return fmt.Errorf("httpcmd/request: invalid value for header %q: %w", k, ErrInvalidArgument)
			}
		}
	}
	return nil
}

// ToRequest creates the HTTP request for e addressed to the service
// endpoint base. The context of the new request is set to ctx, which
// may not be nil.
//
// The body is copied so the returned request stays valid if e is reset
// for a later attempt while the request is still being written.
func (e *Encoded) ToRequest(ctx context.Context, base *urlpkg.URL) (*http.Request, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	ref, err := urlpkg.Parse(e.Path)
	if err != nil {
		return nil, fmt.Errorf("httpcmd/request: invalid path %q: %w", e.Path, ErrInvalidArgument)
	}
	method := e.Method
	if method == "" {
		method = http.MethodGet
	}

	u := base.ResolveReference(ref)
	var body io.Reader
	if len(e.Body) > 0 {
		body = bytes.NewReader(append([]byte(nil), e.Body...))
	}
	r, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	r.Header = e.Header.Clone()
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r, nil
}

// basicAuth is lifted verbatim from net/http/client.go.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}
