// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"io"
)

// ErrInvalidArgument is wrapped by errors returned from operation
// encoders when the request value cannot be encoded as given.
var ErrInvalidArgument = errors.New("httpcmd/request: invalid argument")

const badBodyTypeMsg = "httpcmd/request: invalid type (for body use nil, " +
	"string, []byte, io.Reader or io.ReadCloser)"

// BodyBytes buffers an operation body so that every attempt of a
// command sends the same bytes. A string or []byte is used as is and
// nil yields a nil slice. A reader is read to EOF once, and closed if
// it is an io.ReadCloser; a read or close error is returned unchanged.
// Any other type yields an error wrapping ErrInvalidArgument.
func BodyBytes(body interface{}) ([]byte, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case io.ReadCloser:
		b, err := io.ReadAll(x)
		if err != nil {
			return nil, err
		}
		err = x.Close()
		if err != nil {
			return nil, err
		}
		return b, nil
	case io.Reader:
		return BodyBytes(io.NopCloser(x))
	default:
		return nil, &bodyTypeError{}
	}
}

type bodyTypeError struct{}

func (*bodyTypeError) Error() string {
	return badBodyTypeMsg
}

func (*bodyTypeError) Unwrap() error {
	return ErrInvalidArgument
}
