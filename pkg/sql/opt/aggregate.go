// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/types"
)

// AggFunc identifies an aggregate function.
type AggFunc uint8

const (
	// CountRowsAgg is count(*).
	CountRowsAgg AggFunc = iota
	CountAgg
	SumAgg
	MinAgg
	MaxAgg
)

var aggNames = [...]string{
	CountRowsAgg: "count_rows",
	CountAgg:     "count",
	SumAgg:       "sum",
	MinAgg:       "min",
	MaxAgg:       "max",
}

func (f AggFunc) String() string { return aggNames[f] }

// SafeValue implements redact.SafeValue.
func (AggFunc) SafeValue() {}

// AggFuncFromString parses an aggregate function name.
func AggFuncFromString(s string) (AggFunc, error) {
	for i, name := range aggNames {
		if name == s {
			return AggFunc(i), nil
		}
	}
	return 0, errors.Newf("unknown aggregate function %q", s)
}

// AggCall is one aggregate computed by an Aggregate node. Arg is the input
// column ordinal; it is ignored by count_rows.
type AggCall struct {
	Func AggFunc
	Arg  int
	Name string
}

// ResultType returns the type of the aggregate's result over rows of the
// given schema.
func (a AggCall) ResultType(input *RowSchema) *types.T {
	switch a.Func {
	case CountRowsAgg, CountAgg:
		return types.Int
	case SumAgg:
		if input.Column(a.Arg).Type == types.Int {
			return types.Int
		}
		return types.Decimal
	}
	return input.Column(a.Arg).Type
}

func (a AggCall) String() string {
	if a.Func == CountRowsAgg {
		return "count(*)"
	}
	return fmt.Sprintf("%s($%d)", a.Func, a.Arg)
}
