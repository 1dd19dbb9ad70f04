// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines policies for choosing the end-to-end deadline
// of a command whose request carries no timeout of its own. A generic
// interface for timeout policies is provided, Policy, along with
// several useful policy generating functions and built-in policies.
package timeout
