// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package loop provides the single-threaded executor on which commands,
sessions and their timers run.

Every asynchronous event targeting a command (deadline expiry, session
write completion, retry backoff expiry) is delivered as a task on one
Loop. Tasks never run concurrently with each other, so loop-confined
state needs no locks. Races between independently scheduled events are
still possible, and are resolved by the state of the object the task
operates on rather than by mutual exclusion.

	l := loop.New()
	defer l.Close()

	t := l.NewTimer()
	l.Post(func() {
		t.Arm(50*time.Millisecond, func() {
			fmt.Println("expired")
		})
	})
*/
package loop
