// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

// Credentials hold the username and password used to authenticate
// requests sent over a session.
type Credentials struct {
	Username string
	Password string
}

// Empty indicates whether no username was configured.
func (c Credentials) Empty() bool {
	return c.Username == ""
}

// A Context is the encoding context a session supplies to operation
// encoders. It describes the remote endpoint and the identity the
// request is sent with, so that the same request value can be encoded
// against whichever session it is eventually dispatched to.
type Context struct {
	// Hostname is the host name of the remote endpoint.
	Hostname string

	// Port is the TCP port of the remote endpoint.
	Port int

	// TLS indicates whether the session encrypts traffic.
	TLS bool

	// Credentials authenticate the request.
	Credentials Credentials

	// UserAgent is the value of the User-Agent header encoders should
	// set.
	UserAgent string
}
