// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package operations provides concrete requests commands can carry.

AnalyticsRequest encodes an analytics statement and its options as a
JSON POST to the analytics service, and parses the response with
MakeResponse:

	req := &operations.AnalyticsRequest{
		Statement:       "SELECT VALUE name FROM airlines WHERE country = $country",
		NamedParameters: map[string]json.RawMessage{"country": json.RawMessage(`"France"`)},
	}
	cl := &httpcmd.Client{Loop: l, Sessions: pool, RetryPolicy: operations.AnalyticsPolicy}
	e, err := httpcmd.Do(cl, req)
	if err != nil {
		return err
	}
	resp, err := req.MakeResponse(e)

Errors reported by the service unwrap to sentinel errors such as
ErrDatasetNotFound; use errors.Is to test for them.

RawRequest sends an arbitrary request to any service.
*/
package operations
