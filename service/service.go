// Copyright 2021 The httpcmd Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package service identifies the remote HTTP services a command may be
// dispatched to.
package service

import "fmt"

// A Type identifies one of the HTTP-based services of the database
// cluster.
type Type int

const (
	// Query is the SQL-like query service.
	Query Type = iota
	// Analytics is the analytics service.
	Analytics
	// Search is the full-text search service.
	Search
	// View is the map/reduce view service.
	View
	// Management is the cluster management REST service.
	Management
	// Eventing is the eventing function service.
	Eventing
	// typeSentinel provides the total number of service types.
	typeSentinel
)

var names = [...]string{
	"query",
	"analytics",
	"search",
	"views",
	"management",
	"eventing",
}

var spanNames = [...]string{
	"db.query",
	"db.analytics",
	"db.search",
	"db.views",
	"db.manager",
	"db.eventing",
}

// Types returns all service types.
func Types() []Type {
	return []Type{Query, Analytics, Search, View, Management, Eventing}
}

// Valid indicates whether t names a known service.
func (t Type) Valid() bool {
	return t >= 0 && t < typeSentinel
}

// Name returns the service name used in span and metric tags.
func (t Type) Name() string {
	if !t.Valid() {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return names[t]
}

// SpanName returns the name of the tracing span opened for a command
// dispatched to the service.
func (t Type) SpanName() string {
	if !t.Valid() {
		return "db.unknown"
	}
	return spanNames[t]
}

// String returns the name of the service.
func (t Type) String() string {
	return t.Name()
}
