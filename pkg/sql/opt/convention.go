// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/errors"

// Convention is the calling convention of a plan node: the execution
// strategy its rows are produced with. A plan is physical when every node has
// a convention other than LogicalConvention and adjacent nodes agree.
type Convention uint8

const (
	// LogicalConvention marks nodes that describe what to compute but cannot
	// be executed.
	LogicalConvention Convention = iota

	// IteratorConvention nodes push their rows one at a time into their
	// consumer.
	IteratorConvention

	// ArrayConvention nodes produce all their rows at once as a materialized
	// array.
	ArrayConvention

	// NumConventions is the number of conventions.
	NumConventions
)

var conventionNames = [...]string{
	LogicalConvention:  "logical",
	IteratorConvention: "iterator",
	ArrayConvention:    "array",
}

func (c Convention) String() string { return conventionNames[c] }

// SafeValue implements redact.SafeValue.
func (Convention) SafeValue() {}

// IsPhysical returns true if nodes with this convention can be executed.
func (c Convention) IsPhysical() bool { return c != LogicalConvention }

// ConventionFromString parses a convention name.
func ConventionFromString(s string) (Convention, error) {
	for i, name := range conventionNames {
		if name == s {
			return Convention(i), nil
		}
	}
	return LogicalConvention, errors.Newf("unknown convention %q", s)
}

// AdapterExists returns true if the runtime provides an adapter operator
// converting rows from one physical convention to another.
func AdapterExists(from, to Convention) bool {
	switch {
	case from == IteratorConvention && to == ArrayConvention:
		// Materialize.
		return true
	case from == ArrayConvention && to == IteratorConvention:
		// Iterate.
		return true
	}
	return false
}
