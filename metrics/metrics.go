// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/gogama/httpcmd"
	"github.com/prometheus/client_golang/prometheus"
)

// Suffix is appended to every metric name, since values are exported
// in seconds.
const Suffix = "_duration_seconds"

// A Meter records command latencies into Prometheus histograms. It
// implements httpcmd.Meter and is safe for concurrent use by multiple
// goroutines.
//
// Each metric name gets one HistogramVec, registered on first use, whose
// label names are the sanitized keys of the tags of that first use. Dots
// and other characters Prometheus does not allow become underscores, so
// the metric db.operations with tag db.service is exported as
// db_operations_duration_seconds{db_service="..."}.
type Meter struct {
	reg       prometheus.Registerer
	namespace string
	buckets   []float64
	logger    *slog.Logger

	mu   sync.Mutex
	vecs map[string]*vec
}

type vec struct {
	hv   *prometheus.HistogramVec
	keys []string
}

// An Option configures a Meter.
type Option func(*Meter)

// WithNamespace sets the namespace prefixed to every metric name.
func WithNamespace(ns string) Option {
	return func(m *Meter) { m.namespace = sanitize(ns) }
}

// WithBuckets sets the histogram buckets, in seconds. The default is
// prometheus.DefBuckets.
func WithBuckets(b []float64) Option {
	return func(m *Meter) { m.buckets = append([]float64(nil), b...) }
}

// WithLogger sets the logger registration failures are reported on.
// The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Meter) { m.logger = l }
}

// New creates a Meter registering its histograms on reg. If reg is nil,
// prometheus.DefaultRegisterer is used.
func New(reg prometheus.Registerer, opts ...Option) *Meter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Meter{
		reg:     reg,
		buckets: prometheus.DefBuckets,
		vecs:    make(map[string]*vec),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Recorder returns a recorder observing into the histogram for name,
// labelled with tags. Tags whose keys the histogram was not created
// with are dropped, and missing ones are exported as empty labels.
func (m *Meter) Recorder(name string, tags map[string]string) httpcmd.Recorder {
	v := m.vec(name, tags)
	values := make([]string, len(v.keys))
	for i, k := range v.keys {
		values[i] = tags[k]
	}
	return observer{v.hv.WithLabelValues(values...)}
}

func (m *Meter) vec(name string, tags map[string]string) *vec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.vecs[name]; ok {
		return v
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = sanitize(k)
	}

	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      sanitize(name) + Suffix,
		Help:      "Latency of " + name + " in seconds.",
		Buckets:   m.buckets,
	}, labels)
	if err := m.reg.Register(hv); err != nil {
		var existing *prometheus.HistogramVec
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, _ = are.ExistingCollector.(*prometheus.HistogramVec)
		}
		if existing != nil {
			hv = existing
		} else {
			// The unregistered vec still takes observations, which are
			// never gathered.
			m.logger.Warn("metric registration failed",
				"metric", prometheus.BuildFQName(m.namespace, "", sanitize(name)+Suffix),
				"labels", labels,
				"error", err)
		}
	}

	v := &vec{hv: hv, keys: keys}
	m.vecs[name] = v
	return v
}

type observer struct {
	o prometheus.Observer
}

func (o observer) Record(micros int64) {
	o.o.Observe(float64(micros) / 1e6)
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r == '_' || r == ':' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Nop is a meter whose recorders record nothing.
var Nop httpcmd.Meter = nopMeter{}

type nopMeter struct{}

func (nopMeter) Recorder(string, map[string]string) httpcmd.Recorder {
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) Record(int64) {}
