// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads the settings of an httpcmd client.
//
// Settings are layered: Default first, then an optional YAML file (JSON
// with comments is accepted for files ending in .json or .jsonc), then
// environment variables prefixed with HTTPCMD_, for example
// HTTPCMD_ENDPOINT or HTTPCMD_TIMEOUT_ANALYTICS.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gogama/httpcmd"
	"github.com/gogama/httpcmd/request"
	"github.com/gogama/httpcmd/retry"
	"github.com/gogama/httpcmd/service"
	"github.com/gogama/httpcmd/timeout"
	"github.com/jpillora/backoff"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HTTPCMD_"

// ErrInvalid is wrapped by errors reporting an invalid setting.
var ErrInvalid = errors.New("httpcmd/config: invalid setting")

// Config holds the settings of a client.
type Config struct {
	// Endpoint is the base URL of the service node, for example
	// http://db1.example.com:8095.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	// Username and Password authenticate requests.
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`

	// PoolSize is the maximum number of sessions to the endpoint.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`

	Timeouts Timeouts `yaml:"timeouts" envPrefix:"TIMEOUT_"`
	Retry    Retry    `yaml:"retry" envPrefix:"RETRY_"`
	Log      Log      `yaml:"log" envPrefix:"LOG_"`
	Tracing  Tracing  `yaml:"tracing" envPrefix:"TRACING_"`
	Metrics  Metrics  `yaml:"metrics" envPrefix:"METRICS_"`
}

// Timeouts are the end-to-end timeouts of requests that do not set
// their own. Default applies to services without a setting.
type Timeouts struct {
	Default    time.Duration `yaml:"default" env:"DEFAULT"`
	Query      time.Duration `yaml:"query" env:"QUERY"`
	Analytics  time.Duration `yaml:"analytics" env:"ANALYTICS"`
	Search     time.Duration `yaml:"search" env:"SEARCH"`
	View       time.Duration `yaml:"view" env:"VIEW"`
	Management time.Duration `yaml:"management" env:"MANAGEMENT"`
	Eventing   time.Duration `yaml:"eventing" env:"EVENTING"`
}

// Retry configures retries of failed attempts.
type Retry struct {
	// Times is the maximum number of retries. Zero disables retries.
	Times int `yaml:"times" env:"TIMES"`
	// MinRemaining is the least time before the deadline a retry is
	// still started with.
	MinRemaining time.Duration `yaml:"min_remaining" env:"MIN_REMAINING"`
	// Statuses are the HTTP status codes retried in addition to
	// transient transport errors.
	Statuses []int `yaml:"statuses" env:"STATUSES" envSeparator:","`

	// Backoff between attempts grows from BackoffMin by BackoffFactor
	// up to BackoffMax.
	BackoffMin    time.Duration `yaml:"backoff_min" env:"BACKOFF_MIN"`
	BackoffMax    time.Duration `yaml:"backoff_max" env:"BACKOFF_MAX"`
	BackoffFactor float64       `yaml:"backoff_factor" env:"BACKOFF_FACTOR"`
	BackoffJitter bool          `yaml:"backoff_jitter" env:"BACKOFF_JITTER"`
}

// Log configures the logger.
type Log struct {
	// Level is one of debug, info, warn and error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is text or json.
	Format string `yaml:"format" env:"FORMAT"`
}

// Tracing configures spans.
type Tracing struct {
	// SpanPerAttempt starts a span for every attempt rather than one
	// per operation.
	SpanPerAttempt bool `yaml:"span_per_attempt" env:"SPAN_PER_ATTEMPT"`
}

// Metrics configures the Prometheus meter.
type Metrics struct {
	// Namespace prefixes metric names.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// Listen is the address metrics are served on. Empty disables the
	// endpoint.
	Listen string `yaml:"listen" env:"LISTEN"`
}

// Default returns the default settings.
func Default() *Config {
	return &Config{
		Endpoint: "http://localhost:8095",
		PoolSize: 4,
		Timeouts: Timeouts{
			Default:    timeout.DefaultHTTPTimeout,
			Query:      timeout.DefaultHTTPTimeout,
			Analytics:  timeout.DefaultHTTPTimeout,
			Search:     timeout.DefaultHTTPTimeout,
			View:       timeout.DefaultHTTPTimeout,
			Management: timeout.DefaultHTTPTimeout,
			Eventing:   timeout.DefaultHTTPTimeout,
		},
		Retry: Retry{
			Times:         retry.DefaultTimes,
			MinRemaining:  retry.DefaultMinRemaining,
			Statuses:      []int{429, 503},
			BackoffMin:    50 * time.Millisecond,
			BackoffMax:    time.Second,
			BackoffFactor: 2,
			BackoffJitter: true,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Metrics: Metrics{
			Namespace: "httpcmd",
		},
	}
}

// Load builds the configuration from the defaults, the file at path if
// path is not empty, and the environment.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

func load(path string, environ map[string]string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, fmt.Errorf("httpcmd/config: environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("httpcmd/config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("httpcmd/config: %s: %w", path, err)
	}
	return nil
}

// Validate checks c for settings no client can run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("httpcmd/config: endpoint %q is not an http or https URL: %w", c.Endpoint, ErrInvalid)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("httpcmd/config: pool_size must be at least 1: %w", ErrInvalid)
	}
	for t, d := range c.Timeouts.byService() {
		if d <= 0 {
			return fmt.Errorf("httpcmd/config: %s timeout must be positive: %w", t.Name(), ErrInvalid)
		}
	}
	if c.Timeouts.Default <= 0 {
		return fmt.Errorf("httpcmd/config: default timeout must be positive: %w", ErrInvalid)
	}
	if c.Retry.Times < 0 {
		return fmt.Errorf("httpcmd/config: retry times must not be negative: %w", ErrInvalid)
	}
	if c.Retry.Times > 0 {
		if c.Retry.BackoffMin <= 0 || c.Retry.BackoffMax < c.Retry.BackoffMin {
			return fmt.Errorf("httpcmd/config: backoff bounds %v..%v: %w", c.Retry.BackoffMin, c.Retry.BackoffMax, ErrInvalid)
		}
		if c.Retry.BackoffFactor < 1 {
			return fmt.Errorf("httpcmd/config: backoff factor must be at least 1: %w", ErrInvalid)
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("httpcmd/config: log format %q: %w", c.Log.Format, ErrInvalid)
	}
	return nil
}

// Credentials returns the configured credentials.
func (c *Config) Credentials() request.Credentials {
	return request.Credentials{Username: c.Username, Password: c.Password}
}

// TimeoutPolicy returns the per-service timeout policy.
func (c *Config) TimeoutPolicy() timeout.Policy {
	return timeout.PerService(c.Timeouts.byService(), c.Timeouts.Default)
}

// RetryPolicy returns the retry policy. It never retries if Times is
// zero.
func (c *Config) RetryPolicy() retry.Policy {
	r := c.Retry
	if r.Times == 0 {
		return retry.Never
	}

	d := retry.Times(r.Times).
		And(retry.Remaining(r.MinRemaining)).
		And(retry.StatusCode(r.Statuses...).Or(retry.TransientErr))
	w := retry.NewBackoffWaiter(&backoff.Backoff{
		Min:    r.BackoffMin,
		Max:    r.BackoffMax,
		Factor: r.BackoffFactor,
		Jitter: r.BackoffJitter,
	})
	return retry.NewPolicy(d, w)
}

// SpanPolicy returns the span policy.
func (c *Config) SpanPolicy() httpcmd.SpanPolicy {
	if c.Tracing.SpanPerAttempt {
		return httpcmd.SpanPerAttempt
	}
	return httpcmd.SpanPerOperation
}

// Logger returns a logger writing to w in the format selected by Log.
// An invalid level falls back to info.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (t Timeouts) byService() map[service.Type]time.Duration {
	return map[service.Type]time.Duration{
		service.Query:      t.Query,
		service.Analytics:  t.Analytics,
		service.Search:     t.Search,
		service.View:       t.View,
		service.Management: t.Management,
		service.Eventing:   t.Eventing,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("httpcmd/config: log level %q: %w", s, ErrInvalid)
	}
	return level, nil
}
