// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gogama/httpcmd/operations"
	"github.com/spf13/pflag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		bodies := make(chan map[string]json.RawMessage, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != operations.AnalyticsPath {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			b, _ := io.ReadAll(r.Body)
			var m map[string]json.RawMessage
			_ = json.Unmarshal(b, &m)
			bodies <- m
			_, _ = w.Write([]byte(`{"requestID":"r1","status":"success","results":[ {"a": 1}, {"b": [2, 3]} ],"metrics":{"elapsedTime":"1ms"}}`))
		}))
		defer srv.Close()
		var stdout, stderr bytes.Buffer

		err := run([]string{
			"--endpoint", srv.URL,
			"--param", "country=France",
			"--arg", "42",
			"--readonly",
			"--timeout", "5s",
			"SELECT * FROM airlines WHERE country = $country AND id = ?",
		}, &stdout, &stderr)

		require.NoError(t, err, stderr.String())
		assert.Equal(t, "{\"a\":1}\n{\"b\":[2,3]}\n", stdout.String())
		m := <-bodies
		assert.JSONEq(t, `"France"`, string(m["$country"]))
		assert.JSONEq(t, `[42]`, string(m["args"]))
		assert.JSONEq(t, `true`, string(m["readonly"]))
		assert.JSONEq(t, `"5000ms"`, string(m["timeout"]))
		assert.Contains(t, stderr.String(), "analytics request completed")
	})
	t.Run("configured timeout reaches the service", func(t *testing.T) {
		t.Setenv("HTTPCMD_TIMEOUT_ANALYTICS", "2s")
		bodies := make(chan map[string]json.RawMessage, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			var m map[string]json.RawMessage
			_ = json.Unmarshal(b, &m)
			bodies <- m
			_, _ = w.Write([]byte(`{"status":"success","results":[]}`))
		}))
		defer srv.Close()
		var stdout, stderr bytes.Buffer

		err := run([]string{"--endpoint", srv.URL, "SELECT 1"}, &stdout, &stderr)

		require.NoError(t, err, stderr.String())
		assert.JSONEq(t, `"2000ms"`, string((<-bodies)["timeout"]))
	})
	t.Run("service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"fatal","errors":[{"code":24045,"msg":"Cannot find dataset"}]}`))
		}))
		defer srv.Close()
		var stdout, stderr bytes.Buffer

		err := run([]string{"--endpoint", srv.URL, "SELECT * FROM missing"}, &stdout, &stderr)

		assert.ErrorIs(t, err, operations.ErrDatasetNotFound)
		assert.Empty(t, stdout.String())
	})
	t.Run("usage", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := run(nil, &stdout, &stderr)
		assert.Error(t, err)
		assert.Contains(t, stderr.String(), "Usage: httpcmd-analytics")

		err = run([]string{"--help"}, &stdout, &stderr)
		assert.ErrorIs(t, err, pflag.ErrHelp)
	})
	t.Run("bad endpoint", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := run([]string{"--endpoint", "nope", "SELECT 1"}, &stdout, &stderr)
		assert.Error(t, err)
	})
}

func TestBuildRequest(t *testing.T) {
	o := &options{
		timeout:         time.Second,
		scanConsistency: "request_plus",
		bucket:          "travel",
		scope:           "inventory",
		params:          []string{"a=1", "b=hello", `c={"x":1}`, "d="},
		args:            []string{"true", "plain text"},
	}

	req, err := buildRequest(o, "SELECT 1")

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", req.Statement)
	assert.Equal(t, time.Second, req.RequestTimeout)
	assert.Equal(t, operations.RequestPlus, req.ScanConsistency)
	assert.Equal(t, "default:`travel`.`inventory`", req.QueryContext())
	assert.Equal(t, map[string]json.RawMessage{
		"a": json.RawMessage(`1`),
		"b": json.RawMessage(`"hello"`),
		"c": json.RawMessage(`{"x":1}`),
		"d": json.RawMessage(`""`),
	}, req.NamedParameters)
	assert.Equal(t, []json.RawMessage{json.RawMessage(`true`), json.RawMessage(`"plain text"`)}, req.PositionalParameters)

	_, err = buildRequest(&options{params: []string{"novalue"}}, "SELECT 1")
	assert.Error(t, err)
	_, err = buildRequest(&options{params: []string{"=1"}}, "SELECT 1")
	assert.Error(t, err)
}
