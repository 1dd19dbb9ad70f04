// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// httpcmd-analytics runs one analytics statement and prints the result
// rows to standard output, one JSON document per line.
//
// Settings come from the optional --config file and HTTPCMD_*
// environment variables (see package config); flags override both.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gogama/httpcmd"
	"github.com/gogama/httpcmd/config"
	"github.com/gogama/httpcmd/loop"
	"github.com/gogama/httpcmd/metrics"
	"github.com/gogama/httpcmd/operations"
	"github.com/gogama/httpcmd/session"
	"github.com/gogama/httpcmd/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath      string
	endpoint        string
	username        string
	timeout         time.Duration
	readOnly        bool
	priority        bool
	scanConsistency string
	bucket          string
	scope           string
	contextID       string
	params          []string
	args            []string
	metricsListen   string
	verbose         bool
}

func parseFlags(argv []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	var o options
	fs := pflag.NewFlagSet("httpcmd-analytics", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: httpcmd-analytics [flags] STATEMENT\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.StringVarP(&o.configPath, "config", "c", "", "YAML or JSONC configuration file")
	fs.StringVar(&o.endpoint, "endpoint", "", "analytics endpoint URL (overrides config)")
	fs.StringVarP(&o.username, "username", "u", "", "user name; the password is read from HTTPCMD_PASSWORD")
	fs.DurationVarP(&o.timeout, "timeout", "t", 0, "end-to-end timeout (default from config)")
	fs.BoolVar(&o.readOnly, "readonly", false, "reject statements that modify data")
	fs.BoolVar(&o.priority, "priority", false, "run with elevated priority")
	fs.StringVar(&o.scanConsistency, "scan-consistency", "", "not_bounded or request_plus")
	fs.StringVar(&o.bucket, "bucket", "", "bucket of the query context")
	fs.StringVar(&o.scope, "scope", "", "scope of the query context")
	fs.StringVar(&o.contextID, "client-context-id", "", "client context id (default random)")
	fs.StringArrayVarP(&o.params, "param", "p", nil, "named parameter NAME=VALUE; VALUE is JSON or a plain string")
	fs.StringArrayVarP(&o.args, "arg", "a", nil, "positional parameter; JSON or a plain string")
	fs.StringVar(&o.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")

	if err := fs.Parse(argv); err != nil {
		return nil, nil, err
	}
	return &o, fs, nil
}

func run(argv []string, stdout, stderr io.Writer) error {
	o, fs, err := parseFlags(argv, stderr)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one statement, got %d arguments", fs.NArg())
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if fs.Changed("endpoint") {
		cfg.Endpoint = o.endpoint
	}
	if fs.Changed("username") {
		cfg.Username = o.username
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if fs.Changed("metrics-listen") {
		cfg.Metrics.Listen = o.metricsListen
	}
	if err = cfg.Validate(); err != nil {
		return err
	}

	req, err := buildRequest(o, fs.Arg(0))
	if err != nil {
		return err
	}

	logger := cfg.Logger(stderr)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	meter := metrics.New(reg, metrics.WithNamespace(cfg.Metrics.Namespace), metrics.WithLogger(logger))
	if cfg.Metrics.Listen != "" {
		stop, err := serveMetrics(cfg.Metrics.Listen, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	l := loop.New()
	defer l.Close()
	pool := session.NewPool(session.HTTPFactory(l, cfg.Endpoint,
		session.WithCredentials(cfg.Credentials()),
		session.WithUserAgent(userAgent(cfg)),
		session.WithLogger(logger)), cfg.PoolSize, logger)
	defer l.Do(pool.Close)

	cl := &httpcmd.Client{
		Loop:          l,
		Sessions:      pool,
		Tracer:        tracing.New(nil),
		Meter:         meter,
		RetryPolicy:   cfg.RetryPolicy(),
		TimeoutPolicy: cfg.TimeoutPolicy(),
		Logger:        logger,
		SpanPolicy:    cfg.SpanPolicy(),
	}

	e, err := httpcmd.Do(cl, req)
	if err != nil {
		if e != nil {
			logger.Error("analytics request failed",
				"client_context_id", e.ClientContextID,
				"attempts", e.Attempt+1,
				"duration", e.Duration(),
				"error", err)
		}
		return err
	}

	resp, err := req.MakeResponse(e)
	if resp == nil {
		return err
	}
	for _, row := range resp.Rows {
		if _, werr := fmt.Fprintf(stdout, "%s\n", compact(row)); werr != nil {
			return werr
		}
	}
	for _, w := range resp.Meta.Warnings {
		logger.Warn("analytics warning", "code", w.Code, "message", w.Message)
	}
	if err != nil {
		return err
	}
	logger.Info("analytics request completed",
		"request_id", resp.Meta.RequestID,
		"client_context_id", e.ClientContextID,
		"status", string(resp.Meta.Status),
		"rows", len(resp.Rows),
		"elapsed", resp.Meta.Metrics.ElapsedTime,
		"attempts", e.Attempt+1)
	return nil
}

func buildRequest(o *options, statement string) (*operations.AnalyticsRequest, error) {
	req := &operations.AnalyticsRequest{
		Statement:       statement,
		ReadOnly:        o.readOnly,
		Priority:        o.priority,
		BucketName:      o.bucket,
		ScopeName:       o.scope,
		ScanConsistency: operations.ScanConsistency(o.scanConsistency),
		ContextID:       o.contextID,
		RequestTimeout:  o.timeout,
	}
	for _, p := range o.params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: want NAME=VALUE", p)
		}
		if req.NamedParameters == nil {
			req.NamedParameters = make(map[string]json.RawMessage)
		}
		req.NamedParameters[name] = jsonValue(value)
	}
	for _, a := range o.args {
		req.PositionalParameters = append(req.PositionalParameters, jsonValue(a))
	}
	return req, nil
}

// jsonValue returns s if it is a JSON document, and s as a JSON string
// otherwise.
func jsonValue(s string) json.RawMessage {
	if gjson.Valid(s) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

func compact(row json.RawMessage) string {
	return gjson.ParseBytes(row).Get("@ugly").Raw
}

func userAgent(cfg *config.Config) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	return "httpcmd-analytics"
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Debug("serving metrics", "addr", ln.Addr().String())
	return func() { _ = srv.Close() }, nil
}
