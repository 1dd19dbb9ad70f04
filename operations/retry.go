// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package operations

import (
	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/retry"
	"github.com/gogama/httpcmd/service"
	"github.com/tidwall/gjson"
)

// AnalyticsTemporary is a retry.DeciderFunc that is true for analytics
// responses whose first error code reports a transient service
// condition (codes 21002, 23000, 23003 and 23007).
var AnalyticsTemporary retry.DeciderFunc = analyticsTemporary

// AnalyticsPolicy is the retry policy for analytics requests. It
// retries up to retry.DefaultTimes times, while enough of the deadline
// remains, after transient transport errors and temporary analytics
// failures.
var AnalyticsPolicy = retry.NewPolicy(
	retry.Times(retry.DefaultTimes).
		And(retry.Remaining(retry.DefaultMinRemaining)).
		And(retry.TransientErr.Or(AnalyticsTemporary)),
	retry.DefaultWaiter)

func analyticsTemporary(e *request.Execution) bool {
	if e.Service != service.Analytics || e.Response == nil || e.Err != nil {
		return false
	}

	code := gjson.GetBytes(e.Response.Body, "errors.0.code")
	switch code.Uint() {
	case 21002, 23000, 23003, 23007:
		return true
	default:
		return false
	}
}
