// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package xform contains the implementation rules, which convert logical
// nodes into executable ones, and the default rewrite program that drives
// the logical rules of package norm followed by implementation.
package xform

import (
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
)

// Rule classes.
const (
	// ImplementationClass converts logical nodes to physical conventions.
	ImplementationClass rule.Class = "impl"

	// EnforcerClass holds converters between physical conventions, which are
	// only fired while adding converters.
	EnforcerClass rule.Class = "enforce"
)

// implementation returns a converter that implements logical nodes of op in
// the given convention, keeping everything else about the node.
func implementation(name string, op opt.Operator, to opt.Convention) *rule.Rule {
	return &rule.Rule{
		Name:    name,
		Class:   ImplementationClass,
		Operand: rule.Pattern(op),
		Convert: &rule.Conversion{From: opt.LogicalConvention, To: to},
		Apply: func(c *rule.Call) plan.NodeID {
			return c.Factory.ConstructCopy(c.Root().WithConvention(to))
		},
	}
}

// Implementation rules. Multi-joins have none: they must be expanded by the
// logical rules first.
var (
	ImplementScan      = implementation("ImplementScan", opt.ScanOp, opt.IteratorConvention)
	ImplementValues    = implementation("ImplementValues", opt.ValuesOp, opt.IteratorConvention)
	ImplementOneRow    = implementation("ImplementOneRow", opt.OneRowOp, opt.IteratorConvention)
	ImplementFilter    = implementation("ImplementFilter", opt.FilterOp, opt.IteratorConvention)
	ImplementProject   = implementation("ImplementProject", opt.ProjectOp, opt.IteratorConvention)
	ImplementCalc      = implementation("ImplementCalc", opt.CalcOp, opt.IteratorConvention)
	ImplementJoin      = implementation("ImplementJoin", opt.JoinOp, opt.IteratorConvention)
	ImplementCorrelate = implementation("ImplementCorrelate", opt.CorrelateOp, opt.IteratorConvention)
	ImplementAggregate = implementation("ImplementAggregate", opt.AggregateOp, opt.IteratorConvention)
	ImplementUnion     = implementation("ImplementUnion", opt.UnionOp, opt.IteratorConvention)
	ImplementInsert    = implementation("ImplementInsert", opt.TableModificationOp, opt.IteratorConvention)

	// ImplementSort materializes its input, so it produces an array.
	ImplementSort = implementation("ImplementSort", opt.SortOp, opt.ArrayConvention)
)

// ValuesToArray produces a constant relation directly as an array for
// consumers that require one, instead of iterating it into an adapter.
var ValuesToArray = &rule.Rule{
	Name:    "ValuesToArray",
	Class:   EnforcerClass,
	Operand: rule.Pattern(opt.ValuesOp),
	Convert: &rule.Conversion{
		From:       opt.IteratorConvention,
		To:         opt.ArrayConvention,
		Guaranteed: true,
	},
	Apply: func(c *rule.Call) plan.NodeID {
		return c.Factory.ConstructCopy(c.Root().WithConvention(opt.ArrayConvention))
	},
}

// Rules returns the implementation and enforcer rules.
func Rules() []*rule.Rule {
	return []*rule.Rule{
		ImplementScan,
		ImplementValues,
		ImplementOneRow,
		ImplementFilter,
		ImplementProject,
		ImplementCalc,
		ImplementJoin,
		ImplementCorrelate,
		ImplementAggregate,
		ImplementUnion,
		ImplementInsert,
		ImplementSort,
		ValuesToArray,
	}
}
