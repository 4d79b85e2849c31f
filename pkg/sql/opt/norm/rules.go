// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package norm contains the logical rewrite rules: filter and projection
// pushdown, merging of adjacent operators, join reordering and the policy
// rewrites that shape a plan before it is implemented. Every rule matches
// logical nodes only and preserves the row schema of the node it replaces.
package norm

import (
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
)

// Rule classes. Programs fire a class as a group to reach a fixpoint over
// rules that enable one another.
const (
	// FilterClass pushes filters toward the leaves and folds constant ones.
	FilterClass rule.Class = "filter"

	// ProjectClass removes and merges projections and unions.
	ProjectClass rule.Class = "project"

	// JoinPolicyClass holds optional join rewrites selected by configuration.
	JoinPolicyClass rule.Class = "join-policy"

	// MultiJoinClass flattens and reorders inner joins.
	MultiJoinClass rule.Class = "multi-join"

	// CalcClass fuses filters and projections into calc nodes.
	CalcClass rule.Class = "calc"
)

// Rules returns every logical rule, grouped by class.
func Rules() []*rule.Rule {
	return []*rule.Rule{
		PushFilterPastProject,
		PushFilterPastSetOp,
		PushFilterPastJoin,
		MergeFilter,
		PushJoinConditionIntoInputs,
		ReduceConstantFilter,

		RemoveTrivialProject,
		MergeProject,
		UnionEliminator,
		MergeUnion,

		SwapRightJoin,

		ConvertMultiJoin,
		ExpandMultiJoin,

		FilterToCalc,
		ProjectToCalc,
		MergeCalc,
		RemoveTrivialCalc,
	}
}

// Register adds every logical rule to reg.
func Register(reg *rule.Registry) error {
	return reg.Register(Rules()...)
}

// publishesCorrelation returns true if a bound node publishes its row to
// correlated expressions. Such nodes must survive rewrites unchanged.
func publishesCorrelation(c *rule.Call) bool {
	for _, n := range c.Nodes {
		if n.CorrelVar != "" {
			return true
		}
	}
	return false
}

// colRef returns a reference to column i of a row with schema s.
func colRef(s *opt.RowSchema, i int) *opt.ColRef {
	return &opt.ColRef{Idx: i, Typ: s.Column(i).Type}
}

// identityProjections returns expressions and names that pass every column
// of s through unchanged.
func identityProjections(s *opt.RowSchema) ([]opt.ScalarExpr, []string) {
	exprs := make([]opt.ScalarExpr, s.Width())
	names := make([]string, s.Width())
	for i := range exprs {
		exprs[i] = colRef(s, i)
		names[i] = s.Column(i).Name
	}
	return exprs, names
}

// isIdentity returns true if exprs and names pass every column of s through
// in order.
func isIdentity(s *opt.RowSchema, exprs []opt.ScalarExpr, names []string) bool {
	if len(exprs) != s.Width() {
		return false
	}
	for i, e := range exprs {
		ref, ok := e.(*opt.ColRef)
		if !ok || ref.Idx != i || names[i] != s.Column(i).Name {
			return false
		}
	}
	return true
}

// inline substitutes the projections a row was computed with for the
// column references in e.
func inline(e opt.ScalarExpr, exprs []opt.ScalarExpr) opt.ScalarExpr {
	return opt.RemapColumns(e, func(col *opt.ColRef) opt.ScalarExpr {
		return exprs[col.Idx]
	})
}

func inlineAll(list []opt.ScalarExpr, exprs []opt.ScalarExpr) []opt.ScalarExpr {
	res := make([]opt.ScalarExpr, len(list))
	for i, e := range list {
		res[i] = inline(e, exprs)
	}
	return res
}

// inputOf returns the current input i of n.
func inputOf(c *rule.Call, n *plan.Node, i int) *plan.Node {
	return c.Input(n, i)
}
