// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the value types that flow through a command:
Encoded (the wire form of one attempt), Context (the encoding context a
session supplies), Response (a buffered response) and Execution (the
state of one command, shared with continuations, policies and event
handlers).

An operation encodes itself into an Encoded against the Context of the
session it is dispatched to:

	func (r *PingRequest) EncodeTo(enc *request.Encoded, ctx *request.Context) error {
		enc.Method = "GET"
		enc.Path = "/admin/ping"
		enc.SetBasicAuth(ctx.Credentials.Username, ctx.Credentials.Password)
		return nil
	}

The session then turns the Encoded into an http.Request addressed to its
endpoint with Encoded.ToRequest.

Execution is the input type of every callback a command invokes. You will
typically not allocate Execution instances yourself, but will work with
the one owned by a command.
*/
package request
