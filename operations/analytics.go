// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package operations

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/service"
	"github.com/gogama/httpcmd/timeout"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// AnalyticsPath is the endpoint of the analytics service.
	AnalyticsPath = "/analytics/service"

	// HeaderAnalyticsPriority is sent with value -1 for requests
	// prioritized over regular ones.
	HeaderAnalyticsPriority = "Analytics-Priority"
)

// A ScanConsistency selects the consistency of an analytics query. The
// zero value leaves the choice to the service.
type ScanConsistency string

const (
	// NotBounded runs the query against whatever data is available.
	NotBounded ScanConsistency = "not_bounded"
	// RequestPlus waits until all mutations made before the query are
	// ingested.
	RequestPlus ScanConsistency = "request_plus"
)

// An AnalyticsRequest is an analytics statement with its options. It
// implements httpcmd.Request.
//
// Parameter and raw values are JSON documents, inserted into the
// request body as given.
type AnalyticsRequest struct {
	// Statement is the analytics statement to run.
	Statement string

	// ReadOnly asks the service to reject statements that modify data.
	ReadOnly bool

	// Priority prioritizes the request over regular ones.
	Priority bool

	// BucketName and ScopeName set the query context when both are
	// present.
	BucketName string
	ScopeName  string

	// ScopeQualifier, if set, is passed as the query context verbatim
	// and takes precedence over BucketName and ScopeName.
	ScopeQualifier string

	// ScanConsistency selects the consistency of the query.
	ScanConsistency ScanConsistency

	// Raw holds additional top-level body fields.
	Raw map[string]json.RawMessage

	// PositionalParameters are bound to the ? placeholders of the
	// statement.
	PositionalParameters []json.RawMessage

	// NamedParameters are bound to the $name placeholders of the
	// statement. A leading $ is added to names without one.
	NamedParameters map[string]json.RawMessage

	// ContextID correlates the request with server-side logs. If empty,
	// a random one is generated when the request is executed.
	ContextID string

	// RequestTimeout is the end-to-end timeout. If zero, the timeout
	// policy of the command applies, and the service is told the
	// resulting timeout (the default analytics timeout when encoded
	// outside a command).
	RequestTimeout time.Duration
}

// Service returns service.Analytics.
func (r *AnalyticsRequest) Service() service.Type {
	return service.Analytics
}

// Timeout returns RequestTimeout.
func (r *AnalyticsRequest) Timeout() time.Duration {
	return r.RequestTimeout
}

// ClientContextID returns ContextID, generating it first if it is
// empty.
func (r *AnalyticsRequest) ClientContextID() string {
	if r.ContextID == "" {
		r.ContextID = uuid.NewString()
	}
	return r.ContextID
}

// QueryContext returns the query context sent with the request, or the
// empty string if there is none.
func (r *AnalyticsRequest) QueryContext() string {
	if r.ScopeQualifier != "" {
		return r.ScopeQualifier
	}
	if r.BucketName != "" && r.ScopeName != "" {
		return "default:`" + r.BucketName + "`.`" + r.ScopeName + "`"
	}
	return ""
}

// EncodeTo encodes r as a POST to the analytics service endpoint. The
// body buffer of enc is reused.
func (r *AnalyticsRequest) EncodeTo(enc *request.Encoded, ctx *request.Context) error {
	if strings.TrimSpace(r.Statement) == "" {
		return fmt.Errorf("httpcmd/operations: empty statement: %w", request.ErrInvalidArgument)
	}
	switch r.ScanConsistency {
	case "", NotBounded, RequestPlus:
	default:
		return fmt.Errorf("httpcmd/operations: unknown scan consistency %q: %w", r.ScanConsistency, request.ErrInvalidArgument)
	}

	d := r.RequestTimeout
	if d <= 0 {
		d = enc.Timeout
	}
	if d <= 0 {
		d = timeout.DefaultHTTPTimeout
	}

	b := append(enc.Body[:0], '{', '}')
	var err error
	set := func(path string, value interface{}) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, value)
		}
	}
	setRaw := func(path string, value []byte) {
		if err != nil {
			return
		}
		if !gjson.ValidBytes(value) {
			err = fmt.Errorf("httpcmd/operations: %s is not valid JSON: %w", path, request.ErrInvalidArgument)
			return
		}
		b, err = sjson.SetRawBytes(b, path, value)
	}

	set("statement", r.Statement)
	set("client_context_id", r.ClientContextID())
	set("timeout", strconv.FormatInt(d.Milliseconds(), 10)+"ms")
	if r.ReadOnly {
		set("readonly", true)
	}
	if r.ScanConsistency != "" {
		set("scan_consistency", string(r.ScanConsistency))
	}
	if qc := r.QueryContext(); qc != "" {
		set("query_context", qc)
	}
	if len(r.PositionalParameters) > 0 {
		args := []byte{'['}
		for i, p := range r.PositionalParameters {
			if !gjson.ValidBytes(p) {
				return fmt.Errorf("httpcmd/operations: positional parameter %d is not valid JSON: %w", i, request.ErrInvalidArgument)
			}
			if i > 0 {
				args = append(args, ',')
			}
			args = append(args, p...)
		}
		setRaw("args", append(args, ']'))
	}
	for _, name := range sortedKeys(r.NamedParameters) {
		key := name
		if !strings.HasPrefix(key, "$") {
			key = "$" + key
		}
		setRaw(gjson.Escape(key), r.NamedParameters[name])
	}
	for _, name := range sortedKeys(r.Raw) {
		setRaw(gjson.Escape(name), r.Raw[name])
	}
	if err != nil {
		return err
	}

	enc.Method = http.MethodPost
	enc.Path = AnalyticsPath
	enc.Body = b
	if enc.Header == nil {
		enc.Header = make(http.Header)
	}
	enc.Header.Set("Content-Type", "application/json")
	enc.Header.Set("Accept", "application/json")
	if r.Priority {
		enc.Header.Set(HeaderAnalyticsPriority, "-1")
	}
	if ctx != nil {
		if !ctx.Credentials.Empty() {
			enc.SetBasicAuth(ctx.Credentials.Username, ctx.Credentials.Password)
		}
		if ctx.UserAgent != "" {
			enc.Header.Set("User-Agent", ctx.UserAgent)
		}
	}
	return nil
}

// MakeResponse parses the outcome of an executed analytics request.
// Transport and timeout errors are returned as they are. Otherwise the
// response body is parsed and an error reported by the service is
// returned as an *AnalyticsError; the parsed response is returned
// along with it.
func (r *AnalyticsRequest) MakeResponse(e *request.Execution) (*AnalyticsResponse, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Response == nil {
		return nil, fmt.Errorf("httpcmd/operations: no response: %w", ErrParsingFailure)
	}
	return parseAnalytics(r.Statement, r.ContextID, e.Response)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
