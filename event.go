// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpcmd

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in a Command or a Client to extend it
// with custom functionality, such as access logging.
type Event int

const (
	// AfterStart identifies the event that occurs after a command is
	// started.
	//
	// When a command fires AfterStart, the execution's Start and
	// Deadline fields are set, and the deadline timer is armed.
	AfterStart Event = iota
	// BeforeAttempt identifies the event that occurs before each
	// individual attempt is written to the session.
	//
	// When a command fires BeforeAttempt, the execution's Encoded
	// field holds the encoded request that WILL BE written after all
	// BeforeAttempt handlers have finished. Handlers may add headers.
	BeforeAttempt
	// AfterAttempt identifies the event that occurs after an attempt
	// completes with a response or a transport error, before the
	// result is delivered to the continuation.
	//
	// When a command fires AfterAttempt, the span is already ended and
	// the deadline timer cancelled.
	AfterAttempt
	// AfterDeadline identifies the event that occurs when the command
	// deadline passes before the command completed.
	//
	// When a command fires AfterDeadline, the execution's Err field is
	// set to ErrUnambiguousTimeout and the bound session, if any, has
	// not yet been stopped.
	AfterDeadline
	// AfterAbort identifies the event that occurs when the session is
	// stopped with an attempt outstanding.
	//
	// When a command fires AfterAbort, the execution's Err field is an
	// error matching ErrAmbiguousTimeout.
	AfterAbort
	// AfterComplete identifies the event that occurs after the final
	// outcome has been delivered to the continuation.
	//
	// When a command fires AfterComplete, the execution has ended and
	// will not change any more.
	AfterComplete
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"AfterStart",
	"BeforeAttempt",
	"AfterAttempt",
	"AfterDeadline",
	"AfterAbort",
	"AfterComplete",
}

// Events returns a slice containing all events which can occur in a
// command execution, in the order in which they would occur.
func Events() []Event {
	return []Event{
		AfterStart,
		BeforeAttempt,
		AfterAttempt,
		AfterDeadline,
		AfterAbort,
		AfterComplete,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
