// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package session provides the HTTP session commands write through, and a
pool handing sessions out to commands one at a time.

An HTTP session sends each encoded request with an HTTPDoer, by default
http.DefaultClient, on its own goroutine and posts the buffered response
back to the loop. Gzip-encoded response bodies are decoded before
delivery. Stopping a session cancels the request in flight; the pending
completion then carries an error matching httpcmd.ErrAborted.

A Pool is the httpcmd.SessionSource used by httpcmd.Client:

	l := loop.New()
	pool := session.NewPool(session.HTTPFactory(l, "http://db1:8095",
		session.WithCredentials(request.Credentials{Username: "u", Password: "p"})), 4, nil)
	cl := &httpcmd.Client{Loop: l, Sessions: pool}

When every session is in use, commands wait for one to be released. A
command that times out while waiting is completed without a session.
*/
package session
