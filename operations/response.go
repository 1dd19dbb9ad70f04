// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package operations

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gogama/httpcmd"
	"github.com/gogama/httpcmd/request"
	"github.com/tidwall/gjson"
)

// Errors reported by the analytics service, by error code. Use
// errors.Is on the error returned by MakeResponse.
var (
	ErrAuthenticationFailure = errors.New("httpcmd/operations: authentication failure")
	ErrCompilationFailure    = errors.New("httpcmd/operations: compilation failure")
	ErrTemporaryFailure      = errors.New("httpcmd/operations: temporary failure")
	ErrJobQueueFull          = errors.New("httpcmd/operations: job queue full")
	ErrDatasetNotFound       = errors.New("httpcmd/operations: dataset not found")
	ErrDataverseNotFound     = errors.New("httpcmd/operations: dataverse not found")
	ErrDatasetExists         = errors.New("httpcmd/operations: dataset exists")
	ErrDataverseExists       = errors.New("httpcmd/operations: dataverse exists")
	ErrLinkNotFound          = errors.New("httpcmd/operations: link not found")
	ErrLinkExists            = errors.New("httpcmd/operations: link exists")
	ErrInternalServerFailure = errors.New("httpcmd/operations: internal server failure")
	ErrParsingFailure        = errors.New("httpcmd/operations: cannot parse response")
)

// An AnalyticsStatus is the status field of an analytics response.
type AnalyticsStatus string

const (
	StatusRunning   AnalyticsStatus = "running"
	StatusSuccess   AnalyticsStatus = "success"
	StatusErrors    AnalyticsStatus = "errors"
	StatusCompleted AnalyticsStatus = "completed"
	StatusStopped   AnalyticsStatus = "stopped"
	StatusTimeout   AnalyticsStatus = "timeout"
	StatusClosed    AnalyticsStatus = "closed"
	StatusFatal     AnalyticsStatus = "fatal"
	StatusAborted   AnalyticsStatus = "aborted"
	StatusUnknown   AnalyticsStatus = "unknown"
)

func parseStatus(s string) AnalyticsStatus {
	switch st := AnalyticsStatus(strings.ToLower(s)); st {
	case StatusRunning, StatusSuccess, StatusErrors, StatusCompleted, StatusStopped,
		StatusTimeout, StatusClosed, StatusFatal, StatusAborted:
		return st
	default:
		return StatusUnknown
	}
}

// AnalyticsMetrics are the execution metrics reported with a response.
type AnalyticsMetrics struct {
	ElapsedTime      time.Duration
	ExecutionTime    time.Duration
	ResultCount      uint64
	ResultSize       uint64
	ErrorCount       uint64
	ProcessedObjects uint64
	WarningCount     uint64
}

// An AnalyticsProblem is one entry of the errors or warnings of a
// response.
type AnalyticsProblem struct {
	Code    uint64
	Message string
}

// AnalyticsMeta is everything in a response except the rows.
type AnalyticsMeta struct {
	RequestID       string
	ClientContextID string
	Status          AnalyticsStatus
	Metrics         AnalyticsMetrics
	Signature       json.RawMessage
	Errors          []AnalyticsProblem
	Warnings        []AnalyticsProblem
}

// An AnalyticsResponse is a parsed analytics response.
type AnalyticsResponse struct {
	Meta AnalyticsMeta
	// Rows holds one JSON document per result row.
	Rows []json.RawMessage
}

// An AnalyticsError describes a failed analytics request. It unwraps to
// the sentinel error matching its first error code.
type AnalyticsError struct {
	// Code and Message are those of the first reported error. Both are
	// zero if the service reported a failure without any error.
	Code    uint64
	Message string

	StatusCode      int
	Statement       string
	ClientContextID string
	Errors          []AnalyticsProblem

	err error
}

func (e *AnalyticsError) Error() string {
	var b strings.Builder
	b.WriteString(e.err.Error())
	if e.Code != 0 {
		fmt.Fprintf(&b, " (%d: %s)", e.Code, e.Message)
	}
	fmt.Fprintf(&b, " [status=%d client_context_id=%s]", e.StatusCode, e.ClientContextID)
	return b.String()
}

// Unwrap returns the sentinel error matching e.Code.
func (e *AnalyticsError) Unwrap() error {
	return e.err
}

// errorForCode maps an analytics error code to a sentinel error.
func errorForCode(code uint64) error {
	switch code {
	case 21002:
		return httpcmd.ErrUnambiguousTimeout
	case 23000, 23003:
		return ErrTemporaryFailure
	case 23007:
		return ErrJobQueueFull
	case 24025, 24044, 24045:
		return ErrDatasetNotFound
	case 24034:
		return ErrDataverseNotFound
	case 24040:
		return ErrDatasetExists
	case 24039:
		return ErrDataverseExists
	case 24006:
		return ErrLinkNotFound
	case 24055:
		return ErrLinkExists
	}
	switch {
	case code >= 20000 && code < 21000:
		return ErrAuthenticationFailure
	case code >= 24000 && code < 25000:
		return ErrCompilationFailure
	default:
		return ErrInternalServerFailure
	}
}

func parseAnalytics(statement, contextID string, resp *request.Response) (*AnalyticsResponse, error) {
	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("httpcmd/operations: invalid JSON body with status %d: %w", resp.StatusCode, ErrParsingFailure)
	}

	doc := gjson.ParseBytes(resp.Body)
	meta := AnalyticsMeta{
		RequestID:       doc.Get("requestID").String(),
		ClientContextID: doc.Get("clientContextID").String(),
		Status:          parseStatus(doc.Get("status").String()),
		Errors:          problems(doc.Get("errors")),
		Warnings:        problems(doc.Get("warnings")),
	}
	if sig := doc.Get("signature"); sig.Exists() {
		meta.Signature = json.RawMessage(sig.Raw)
	}
	m := doc.Get("metrics")
	meta.Metrics = AnalyticsMetrics{
		ElapsedTime:      duration(m.Get("elapsedTime")),
		ExecutionTime:    duration(m.Get("executionTime")),
		ResultCount:      m.Get("resultCount").Uint(),
		ResultSize:       m.Get("resultSize").Uint(),
		ErrorCount:       m.Get("errorCount").Uint(),
		ProcessedObjects: m.Get("processedObjects").Uint(),
		WarningCount:     m.Get("warningCount").Uint(),
	}

	out := &AnalyticsResponse{Meta: meta}
	doc.Get("results").ForEach(func(_, row gjson.Result) bool {
		out.Rows = append(out.Rows, json.RawMessage(row.Raw))
		return true
	})

	if meta.Status == StatusSuccess && resp.Success() {
		return out, nil
	}

	if meta.ClientContextID != "" {
		contextID = meta.ClientContextID
	}
	ae := &AnalyticsError{
		StatusCode:      resp.StatusCode,
		Statement:       statement,
		ClientContextID: contextID,
		Errors:          meta.Errors,
		err:             ErrInternalServerFailure,
	}
	if len(meta.Errors) > 0 {
		ae.Code = meta.Errors[0].Code
		ae.Message = meta.Errors[0].Message
		ae.err = errorForCode(ae.Code)
	}
	return out, ae
}

func problems(r gjson.Result) []AnalyticsProblem {
	var ps []AnalyticsProblem
	r.ForEach(func(_, p gjson.Result) bool {
		ps = append(ps, AnalyticsProblem{
			Code:    p.Get("code").Uint(),
			Message: p.Get("msg").String(),
		})
		return true
	})
	return ps
}

func duration(r gjson.Result) time.Duration {
	d, err := time.ParseDuration(r.String())
	if err != nil {
		return 0
	}
	return d
}
