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

// RemoveTrivialProject removes a projection that passes its input through
// unchanged.
var RemoveTrivialProject = &rule.Rule{
	Name:    "RemoveTrivialProject",
	Class:   ProjectClass,
	Operand: rule.Pattern(opt.ProjectOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		project := c.Root()
		p := project.Private.(*plan.ProjectPrivate)
		if !isIdentity(inputOf(c, project, 0).Schema, p.Exprs, p.Names) {
			return plan.NoNode
		}
		return project.Inputs[0]
	},
}

// MergeProject combines adjacent projections:
//
//	(Project (Project $input $inner) $outer)
//	=>
//	(Project $input (inline $outer $inner))
var MergeProject = &rule.Rule{
	Name:    "MergeProject",
	Class:   ProjectClass,
	Operand: rule.Pattern(opt.ProjectOp, rule.Pattern(opt.ProjectOp)),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		outer := c.Node(0).Private.(*plan.ProjectPrivate)
		inner := c.Node(1)
		exprs := inlineAll(outer.Exprs, inner.Private.(*plan.ProjectPrivate).Exprs)
		return c.Factory.ConstructProject(inner.Inputs[0], exprs, outer.Names)
	},
}

// UnionEliminator removes a UNION ALL with a single input.
var UnionEliminator = &rule.Rule{
	Name:    "UnionEliminator",
	Class:   ProjectClass,
	Operand: rule.Pattern(opt.UnionOp),
	Apply: func(c *rule.Call) plan.NodeID {
		union := c.Root()
		if publishesCorrelation(c) || len(union.Inputs) != 1 || !union.Private.(*plan.UnionPrivate).All {
			return plan.NoNode
		}
		return union.Inputs[0]
	},
}

// MergeUnion flattens a union input that is itself a union of the same
// kind into its parent.
var MergeUnion = &rule.Rule{
	Name:    "MergeUnion",
	Class:   ProjectClass,
	Operand: rule.Pattern(opt.UnionOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		union := c.Root()
		all := union.Private.(*plan.UnionPrivate).All
		merged := false
		var inputs []plan.NodeID
		for i := range union.Inputs {
			in := inputOf(c, union, i)
			if in.Op == opt.UnionOp && in.Convention == opt.LogicalConvention &&
				in.CorrelVar == "" && in.Private.(*plan.UnionPrivate).All == all {
				inputs = append(inputs, in.Inputs...)
				merged = true
				continue
			}
			inputs = append(inputs, in.ID)
		}
		if !merged {
			return plan.NoNode
		}
		return c.Factory.ConstructUnion(all, inputs...)
	},
}

// FilterToCalc turns a filter into a calc that passes every column through.
var FilterToCalc = &rule.Rule{
	Name:    "FilterToCalc",
	Class:   CalcClass,
	Operand: rule.Pattern(opt.FilterOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		filter := c.Root()
		exprs, names := identityProjections(filter.Schema)
		return c.Factory.ConstructCalc(
			filter.Inputs[0], filter.Private.(*plan.FilterPrivate).Cond, exprs, names,
		)
	},
}

// ProjectToCalc turns a projection into a calc without a condition.
var ProjectToCalc = &rule.Rule{
	Name:    "ProjectToCalc",
	Class:   CalcClass,
	Operand: rule.Pattern(opt.ProjectOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		project := c.Root()
		p := project.Private.(*plan.ProjectPrivate)
		return c.Factory.ConstructCalc(project.Inputs[0], nil /* cond */, p.Exprs, p.Names)
	},
}

// MergeCalc combines adjacent calcs. The outer condition is evaluated over
// the inner projections, so it is inlined before the conditions are
// combined:
//
//	(Calc (Calc $input $innerCond $inner) $outerCond $outer)
//	=>
//	(Calc $input (And $innerCond (inline $outerCond $inner)) (inline $outer $inner))
var MergeCalc = &rule.Rule{
	Name:    "MergeCalc",
	Class:   CalcClass,
	Operand: rule.Pattern(opt.CalcOp, rule.Pattern(opt.CalcOp)),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		outer := c.Node(0).Private.(*plan.CalcPrivate)
		inner := c.Node(1)
		ip := inner.Private.(*plan.CalcPrivate)
		cond := opt.MakeConjunction([]opt.ScalarExpr{ip.Cond, inline(outer.Cond, ip.Exprs)})
		exprs := inlineAll(outer.Exprs, ip.Exprs)
		return c.Factory.ConstructCalc(inner.Inputs[0], cond, exprs, outer.Names)
	},
}

// RemoveTrivialCalc removes a calc without a condition that passes its input
// through unchanged.
var RemoveTrivialCalc = &rule.Rule{
	Name:    "RemoveTrivialCalc",
	Class:   CalcClass,
	Operand: rule.Pattern(opt.CalcOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		calc := c.Root()
		p := calc.Private.(*plan.CalcPrivate)
		if (p.Cond != nil && !opt.IsTrue(p.Cond)) ||
			!isIdentity(inputOf(c, calc, 0).Schema, p.Exprs, p.Names) {
			return plan.NoNode
		}
		return calc.Inputs[0]
	},
}
