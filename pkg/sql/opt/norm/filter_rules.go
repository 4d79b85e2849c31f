// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
)

// PushFilterPastProject moves a filter below a projection by inlining the
// projected expressions into the condition:
//
//	(Filter (Project $input $exprs) $cond)
//	=>
//	(Project (Filter $input (inline $cond $exprs)) $exprs)
var PushFilterPastProject = &rule.Rule{
	Name:    "PushFilterPastProject",
	Class:   FilterClass,
	Operand: rule.Pattern(opt.FilterOp, rule.Pattern(opt.ProjectOp)),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		filter, project := c.Node(0), c.Node(1)
		p := project.Private.(*plan.ProjectPrivate)
		cond := inline(filter.Private.(*plan.FilterPrivate).Cond, p.Exprs)
		input := c.Factory.ConstructFilter(project.Inputs[0], cond)
		return c.Factory.ConstructProject(input, p.Exprs, p.Names)
	},
}

// PushFilterPastSetOp copies a filter above a union into each of its inputs.
// Union columns are positional, so the condition applies unchanged:
//
//	(Filter (Union $inputs...) $cond)
//	=>
//	(Union (Filter $input $cond)...)
var PushFilterPastSetOp = &rule.Rule{
	Name:    "PushFilterPastSetOp",
	Class:   FilterClass,
	Operand: rule.Pattern(opt.FilterOp, rule.Pattern(opt.UnionOp)),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		filter, union := c.Node(0), c.Node(1)
		cond := filter.Private.(*plan.FilterPrivate).Cond
		inputs := make([]plan.NodeID, len(union.Inputs))
		for i, in := range union.Inputs {
			inputs[i] = c.Factory.ConstructFilter(in, cond)
		}
		return c.Factory.ConstructUnion(union.Private.(*plan.UnionPrivate).All, inputs...)
	},
}

// MergeFilter combines adjacent filters into one.
var MergeFilter = &rule.Rule{
	Name:    "MergeFilter",
	Class:   FilterClass,
	Operand: rule.Pattern(opt.FilterOp, rule.Pattern(opt.FilterOp)),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		outer, inner := c.Node(0), c.Node(1)
		cond := opt.MakeConjunction([]opt.ScalarExpr{
			inner.Private.(*plan.FilterPrivate).Cond,
			outer.Private.(*plan.FilterPrivate).Cond,
		})
		return c.Factory.ConstructFilter(inner.Inputs[0], cond)
	},
}

// PushFilterPastJoin pushes the conjuncts of a filter above a join into the
// join inputs they refer to. Conjuncts are only pushed into an input whose
// rows are preserved as they are: the left input of an inner or left join
// and the right input of an inner or right join. Conjuncts over both inputs
// of an inner join become part of the join condition.
var PushFilterPastJoin = &rule.Rule{
	Name:    "PushFilterPastJoin",
	Class:   FilterClass,
	Operand: rule.Pattern(opt.FilterOp, rule.Pattern(opt.JoinOp)),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		filter, join := c.Node(0), c.Node(1)
		jp := join.Private.(*plan.JoinPrivate)
		left, right := join.Inputs[0], join.Inputs[1]
		lw := inputOf(c, join, 0).Schema.Width()
		leftCols := opt.ColRange(0, lw)

		var toLeft, toRight, toJoin, remaining []opt.ScalarExpr
		for _, e := range opt.Conjuncts(filter.Private.(*plan.FilterPrivate).Cond) {
			cols := opt.ReferencedColumns(e)
			switch {
			case cols.Empty():
				remaining = append(remaining, e)
			case cols.SubsetOf(leftCols) && jp.Type != opt.RightJoin:
				toLeft = append(toLeft, e)
			case !cols.Intersects(leftCols) && jp.Type != opt.LeftJoin:
				toRight = append(toRight, opt.ShiftColumns(e, -lw))
			case jp.Type == opt.InnerJoin:
				toJoin = append(toJoin, e)
			default:
				remaining = append(remaining, e)
			}
		}
		if len(toLeft) == 0 && len(toRight) == 0 && len(toJoin) == 0 {
			return plan.NoNode
		}

		f := c.Factory
		if len(toLeft) > 0 {
			left = f.ConstructFilter(left, opt.MakeConjunction(toLeft))
		}
		if len(toRight) > 0 {
			right = f.ConstructFilter(right, opt.MakeConjunction(toRight))
		}
		cond := opt.MakeConjunction(append(opt.Conjuncts(jp.Cond), toJoin...))
		res := f.ConstructJoin(jp.Type, left, right, cond)
		if rest := opt.MakeConjunction(remaining); rest != nil {
			res = f.ConstructFilter(res, rest)
		}
		return res
	},
}

// PushJoinConditionIntoInputs moves conjuncts of a join condition that refer
// to a single input into a filter on that input. The preserved side of an
// outer join keeps its conjuncts, since they decide which of its rows are
// padded rather than which rows are returned.
var PushJoinConditionIntoInputs = &rule.Rule{
	Name:    "PushJoinConditionIntoInputs",
	Class:   FilterClass,
	Operand: rule.Pattern(opt.JoinOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		join := c.Root()
		jp := join.Private.(*plan.JoinPrivate)
		lw := inputOf(c, join, 0).Schema.Width()
		leftCols := opt.ColRange(0, lw)

		var toLeft, toRight, remaining []opt.ScalarExpr
		for _, e := range opt.Conjuncts(jp.Cond) {
			cols := opt.ReferencedColumns(e)
			switch {
			case cols.Empty():
				remaining = append(remaining, e)
			case cols.SubsetOf(leftCols) && jp.Type != opt.LeftJoin:
				toLeft = append(toLeft, e)
			case !cols.Intersects(leftCols) && jp.Type != opt.RightJoin:
				toRight = append(toRight, opt.ShiftColumns(e, -lw))
			default:
				remaining = append(remaining, e)
			}
		}
		if len(toLeft) == 0 && len(toRight) == 0 {
			return plan.NoNode
		}

		f := c.Factory
		left, right := join.Inputs[0], join.Inputs[1]
		if len(toLeft) > 0 {
			left = f.ConstructFilter(left, opt.MakeConjunction(toLeft))
		}
		if len(toRight) > 0 {
			right = f.ConstructFilter(right, opt.MakeConjunction(toRight))
		}
		return f.ConstructJoin(jp.Type, left, right, opt.MakeConjunction(remaining))
	},
}

// ReduceConstantFilter removes a filter whose condition is always TRUE and
// replaces one that is always FALSE or NULL with an empty relation.
var ReduceConstantFilter = &rule.Rule{
	Name:    "ReduceConstantFilter",
	Class:   FilterClass,
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		filter := c.Root()
		cond := filter.Private.(*plan.FilterPrivate).Cond
		switch {
		case cond == nil || opt.IsTrue(cond):
			return filter.Inputs[0]
		case opt.IsFalseOrNull(cond):
			return c.Factory.ConstructValues(nil, filter.Schema.Columns())
		}
		return plan.NoNode
	},
}
