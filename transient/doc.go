// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors delivered by commands as
// transient or non-transient, and as ambiguous or unambiguous with
// respect to whether the remote side executed the operation. This is
// handy for writing retry policies, and for bucketing error metrics.
//
// Package transient depends only on the standard library packages
// "errors" and "syscall". Error types opt in to the Timeout, Aborted
// and Ambiguous classifications by implementing methods of those names.
package transient
