// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides policies deciding whether a command should
// send an attempt again, and how long to back off before it does.
//
// A command never retries by itself. httpcmd.Client builds the
// command's continuation from a Policy: when the Decider allows a
// retry, the Client asks the Waiter for a backoff and arms the
// command's backoff timer with it, and the timer's expiry sends the
// retried attempt. All attempts share the deadline of the command.
//
// The interface Policy defines a retry Policy. A Policy instance can be
// constructed using NewPolicy by providing a decision-maker, Decider,
// and a wait time calculator, Waiter:
//
//     decider := retry.Times(3).
//                    And(retry.Remaining(50 * time.Millisecond)).
//                    And(retry.StatusCode(503).Or(retry.TransientErr))
//     waiter := retry.NewBackoffWaiter(&backoff.Backoff{Min: 10 * time.Millisecond, Max: time.Second, Jitter: true})
//     policy := retry.NewPolicy(decider, waiter)
//
// If the built-in functionality is insufficient, fully custom retry
// policies can be created via custom implementations of Decider,
// Waiter, or Policy.
package retry
