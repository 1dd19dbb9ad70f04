// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metrics implements the httpcmd.Meter contract on top of the
// Prometheus client library.
//
//	reg := prometheus.NewRegistry()
//	client := &httpcmd.Client{Meter: metrics.New(reg), ...}
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics
