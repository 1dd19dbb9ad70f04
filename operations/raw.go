// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package operations

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/service"
	"github.com/google/uuid"
)

// A RawRequest is an arbitrary HTTP request to one of the services, for
// example a management REST call. It implements httpcmd.Request.
type RawRequest struct {
	// Type is the service the request is addressed to.
	Type service.Type

	// Method is the HTTP method. An empty string means GET.
	Method string

	// Path is the absolute path, with optional query string.
	Path string

	// Header holds additional header fields.
	Header http.Header

	// Body is the request body. It may be nil, a string, a []byte or an
	// io.Reader; see request.BodyBytes. A reader body is consumed by
	// the first attempt and buffered for later ones.
	Body interface{}

	// ContextID correlates the request with server-side logs. If empty,
	// a random one is generated when the request is executed.
	ContextID string

	// RequestTimeout is the end-to-end timeout. If zero, the timeout
	// policy of the command applies.
	RequestTimeout time.Duration

	body     []byte
	buffered bool
}

// Service returns r.Type.
func (r *RawRequest) Service() service.Type {
	return r.Type
}

// Timeout returns RequestTimeout.
func (r *RawRequest) Timeout() time.Duration {
	return r.RequestTimeout
}

// ClientContextID returns ContextID, generating it first if it is
// empty.
func (r *RawRequest) ClientContextID() string {
	if r.ContextID == "" {
		r.ContextID = uuid.NewString()
	}
	return r.ContextID
}

// EncodeTo copies r into enc. Credentials of ctx are sent with HTTP
// basic authentication unless Header already has an Authorization
// field.
func (r *RawRequest) EncodeTo(enc *request.Encoded, ctx *request.Context) error {
	if !r.Type.Valid() {
		return fmt.Errorf("httpcmd/operations: unknown service type %d: %w", int(r.Type), request.ErrInvalidArgument)
	}
	if !r.buffered {
		b, err := request.BodyBytes(r.Body)
		if err != nil {
			return err
		}
		r.body = b
		r.buffered = true
	}

	enc.Method = r.Method
	enc.Path = r.Path
	enc.Body = append(enc.Body[:0], r.body...)
	if enc.Header == nil {
		enc.Header = make(http.Header)
	}
	for k, vs := range r.Header {
		enc.Header[k] = append([]string(nil), vs...)
	}
	if ctx != nil && !ctx.Credentials.Empty() && enc.Header.Get("Authorization") == "" {
		enc.SetBasicAuth(ctx.Credentials.Username, ctx.Credentials.Password)
	}
	return enc.Validate()
}
