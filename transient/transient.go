// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"syscall"
)

// A Category is the transience category of a particular error, as
// reported by function Categorize().
//
// The category Not means the error is not transient from the
// perspective of completing a command attempt successfully, or in other
// words that a retry after encountering this error is very unlikely to
// succeed.
//
// The category Aborted means the attempt was torn down locally while
// outstanding. Whether the remote side executed it is unknown, so it is
// not safe to treat it as transient.
//
// All other categories indicate the error is transient, or in other
// words that a retry after encountering this error has some prospect
// of success.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout.
	//
	// Function Categorize() will return Timeout if the error or any of
	// its wrapped causes has a Timeout() function that reports true.
	Timeout
	// ConnRefused indicates the remote host refused the connection, and
	// corresponds to the POSIX error code ECONNREFUSED.
	//
	// Although connection refusal may be a permanent condition, it is
	// classified as transient because it can happen while the service
	// on the remote node is starting or restarting.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, and corresponds to the POSIX
	// error code ECONNRESET.
	ConnReset
	// Aborted indicates the session was stopped while the attempt was
	// outstanding.
	//
	// Function Categorize() will return Aborted if the error is not a
	// Timeout, and the error or any of its wrapped causes has an
	// Aborted() function that reports true.
	Aborted
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"Aborted",
}

// String returns the name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Retryable indicates whether an error in the category has some
// prospect of success on retry.
func (c Category) Retryable() bool {
	return c == Timeout || c == ConnRefused || c == ConnReset
}

// Categorize returns the transience category of the given error. A nil
// error, and an error that is not transient, both produce Not.
//
// In assessing transience, Categorize looks at wrapped cause errors
// contained within err, not just err itself. However, Categorize never
// checks if an error has a Temporary() function that returns true, as
// the semantics of Temporary() aren't entirely clear.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var hasAborted hasAborted
	if errors.As(err, &hasAborted) && hasAborted.Aborted() {
		return Aborted
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == syscall.ECONNRESET {
			return ConnReset
		} else if errno == syscall.ECONNREFUSED {
			return ConnRefused
		}
	}

	return Not
}

// Ambiguous reports whether err leaves the execution status of the
// remote operation unknown, that is whether the error or any of its
// wrapped causes has an Ambiguous() function that reports true.
func Ambiguous(err error) bool {
	var a hasAmbiguous
	return errors.As(err, &a) && a.Ambiguous()
}

type hasTimeout interface {
	Timeout() bool
}

type hasAborted interface {
	Aborted() bool
}

type hasAmbiguous interface {
	Ambiguous() bool
}
