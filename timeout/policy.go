// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/service"
)

// A Policy defines a timeout policy which may be plugged into a command
// (httpcmd.WithTimeoutPolicy) or a client (httpcmd.Client) to direct
// the end-to-end deadline of a command whose request does not specify
// its own timeout.
//
// The timeout returned is consulted once, when the command is started,
// and bounds all attempts of the command together.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the end-to-end timeout of the command.
	//
	// Parameter e contains the state of the command execution at the
	// time it is started, in particular its Service. The return value
	// must be positive.
	Timeout(e *request.Execution) time.Duration
}

// DefaultHTTPTimeout is the timeout DefaultPolicy applies to every
// HTTP service.
const DefaultHTTPTimeout = 75 * time.Second

// DefaultPolicy is the default timeout policy. It sets a timeout of
// DefaultHTTPTimeout on commands addressed to any service.
var DefaultPolicy Policy = PerService(map[service.Type]time.Duration{
	service.Query:      DefaultHTTPTimeout,
	service.Analytics:  DefaultHTTPTimeout,
	service.Search:     DefaultHTTPTimeout,
	service.View:       DefaultHTTPTimeout,
	service.Management: DefaultHTTPTimeout,
	service.Eventing:   DefaultHTTPTimeout,
}, DefaultHTTPTimeout)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(1<<63 - 1)

// Fixed constructs a timeout policy that uses the same value for every
// command. The return value is a timeout policy that always returns the
// value d.
func Fixed(d time.Duration) Policy {
	if d <= 0 {
		panic("httpcmd/timeout: timeout must be positive")
	}
	return fixed(d)
}

// PerService constructs a timeout policy that looks up the timeout by
// the service type of the command. Services missing from m get the
// timeout fallback.
//
// The map m is copied, so later changes to it do not affect the
// returned policy.
func PerService(m map[service.Type]time.Duration, fallback time.Duration) Policy {
	if fallback <= 0 {
		panic("httpcmd/timeout: fallback must be positive")
	}
	p := perService{
		m:        make(map[service.Type]time.Duration, len(m)),
		fallback: fallback,
	}
	for t, d := range m {
		if d <= 0 {
			panic("httpcmd/timeout: timeout must be positive")
		}
		p.m[t] = d
	}
	return p
}

type fixed time.Duration

func (f fixed) Timeout(_ *request.Execution) time.Duration {
	return time.Duration(f)
}

type perService struct {
	m        map[service.Type]time.Duration
	fallback time.Duration
}

func (p perService) Timeout(e *request.Execution) time.Duration {
	if d, ok := p.m[e.Service]; ok {
		return d
	}

	return p.fallback
}
