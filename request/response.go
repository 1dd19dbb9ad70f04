// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import "net/http"

// A Response is the fully buffered HTTP response received for an
// encoded request.
type Response struct {
	// StatusCode is the HTTP status code, e.g. 200.
	StatusCode int

	// Header contains the response header fields.
	Header http.Header

	// Body is the complete response body, already decompressed if the
	// server used a content encoding the session understands.
	Body []byte
}

// Success indicates whether the status code is in the 2XX range.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
