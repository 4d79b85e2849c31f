// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/errors"

// Operator describes the type of operation that a plan node performs.
type Operator uint8

const (
	// UnknownOp is the zero value. Rule operands use it to match any
	// operator.
	UnknownOp Operator = iota

	// ScanOp reads every row of a base table.
	ScanOp

	// ValuesOp returns a constant set of rows.
	ValuesOp

	// OneRowOp returns exactly one row with no columns.
	OneRowOp

	FilterOp
	ProjectOp

	// CalcOp is a combined filter and projection.
	CalcOp

	// JoinOp is an inner, left, or right join with an optional ON condition.
	JoinOp

	// CorrelateOp evaluates its right input once per row of its left input.
	// The left input carries the correlation variable referenced by the
	// right input.
	CorrelateOp

	// MultiJoinOp is an n-way inner join used during join reordering. It has
	// no implementation and must be expanded before conversion.
	MultiJoinOp

	AggregateOp
	UnionOp
	SortOp

	// TableModificationOp inserts its input rows into a table and returns the
	// number of rows inserted.
	TableModificationOp

	// ConvertOp is an adapter that changes the calling convention of its
	// input without changing its rows.
	ConvertOp

	// NumOperators tracks the total count of operators.
	NumOperators
)

var opNames = [...]string{
	UnknownOp:           "unknown",
	ScanOp:              "scan",
	ValuesOp:            "values",
	OneRowOp:            "one-row",
	FilterOp:            "filter",
	ProjectOp:           "project",
	CalcOp:              "calc",
	JoinOp:              "join",
	CorrelateOp:         "correlate",
	MultiJoinOp:         "multi-join",
	AggregateOp:         "aggregate",
	UnionOp:             "union",
	SortOp:              "sort",
	TableModificationOp: "insert",
	ConvertOp:           "convert",
}

func (op Operator) String() string {
	if op >= NumOperators {
		panic(errors.AssertionFailedf("unexpected op: %d", op))
	}
	return opNames[op]
}

// SafeValue implements redact.SafeValue.
func (Operator) SafeValue() {}

// OperatorFromString returns the operator with the given name.
func OperatorFromString(s string) (Operator, error) {
	for i, name := range opNames {
		if name == s && Operator(i) != UnknownOp {
			return Operator(i), nil
		}
	}
	return UnknownOp, errors.Newf("unknown operator %q", s)
}

// JoinType distinguishes join variants.
type JoinType uint8

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
)

var joinTypeNames = [...]string{
	InnerJoin: "inner",
	LeftJoin:  "left",
	RightJoin: "right",
}

func (t JoinType) String() string { return joinTypeNames[t] }

// SafeValue implements redact.SafeValue.
func (JoinType) SafeValue() {}

// JoinTypeFromString parses "inner", "left", or "right".
func JoinTypeFromString(s string) (JoinType, error) {
	for i, name := range joinTypeNames {
		if name == s {
			return JoinType(i), nil
		}
	}
	return InnerJoin, errors.Newf("unknown join type %q", s)
}
