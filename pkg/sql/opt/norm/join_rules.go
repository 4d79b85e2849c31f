// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
	"github.com/heplan/heplan/pkg/util/log"
)

// SwapRightJoin rewrites a right join as a left join with its inputs
// swapped, restoring the original column order with a projection:
//
//	(Join right $left $right $cond)
//	=>
//	(Project (Join left $right $left (swap $cond)) (reorder))
var SwapRightJoin = &rule.Rule{
	Name:    "SwapRightJoin",
	Class:   JoinPolicyClass,
	Operand: rule.Pattern(opt.JoinOp),
	Apply: func(c *rule.Call) plan.NodeID {
		join := c.Root()
		jp := join.Private.(*plan.JoinPrivate)
		if jp.Type != opt.RightJoin || publishesCorrelation(c) {
			return plan.NoNode
		}
		lw := inputOf(c, join, 0).Schema.Width()
		rw := inputOf(c, join, 1).Schema.Width()
		cond := opt.RemapColumns(jp.Cond, func(col *opt.ColRef) opt.ScalarExpr {
			if col.Idx < lw {
				return &opt.ColRef{Idx: col.Idx + rw, Typ: col.Typ}
			}
			return &opt.ColRef{Idx: col.Idx - lw, Typ: col.Typ}
		})
		swapped := c.Factory.ConstructJoin(opt.LeftJoin, join.Inputs[1], join.Inputs[0], cond)

		exprs := make([]opt.ScalarExpr, lw+rw)
		names := make([]string, lw+rw)
		for i := range exprs {
			src := i - lw
			if i < lw {
				src = i + rw
			}
			exprs[i] = &opt.ColRef{Idx: src, Typ: join.Schema.Column(i).Type}
			names[i] = join.Schema.Column(i).Name
		}
		return c.Factory.ConstructProject(swapped, exprs, names)
	},
}

// flattenInnerJoin returns the inputs and conditions n contributes to a
// multi-join: a logical multi-join is flattened, anything else is a single
// input.
func flattenInnerJoin(n *plan.Node) ([]plan.NodeID, []opt.ScalarExpr) {
	if n.Op == opt.MultiJoinOp && n.Convention == opt.LogicalConvention && n.CorrelVar == "" {
		return n.Inputs, n.Private.(*plan.MultiJoinPrivate).Conds
	}
	return []plan.NodeID{n.ID}, nil
}

// ConvertMultiJoin turns an inner join into a multi-join, absorbing inputs
// that are multi-joins already. Fired bottom-up, it collapses a tree of inner
// joins into a single multi-join.
var ConvertMultiJoin = &rule.Rule{
	Name:    "ConvertMultiJoin",
	Class:   MultiJoinClass,
	Operand: rule.Pattern(opt.JoinOp),
	Apply: func(c *rule.Call) plan.NodeID {
		join := c.Root()
		jp := join.Private.(*plan.JoinPrivate)
		if jp.Type != opt.InnerJoin || publishesCorrelation(c) {
			return plan.NoNode
		}
		left, right := inputOf(c, join, 0), inputOf(c, join, 1)
		lInputs, lConds := flattenInnerJoin(left)
		rInputs, rConds := flattenInnerJoin(right)

		inputs := append(append([]plan.NodeID(nil), lInputs...), rInputs...)
		conds := append([]opt.ScalarExpr(nil), lConds...)
		for _, e := range rConds {
			conds = append(conds, opt.ShiftColumns(e, left.Schema.Width()))
		}
		conds = append(conds, opt.Conjuncts(jp.Cond)...)
		return c.Factory.ConstructMultiJoin(inputs, conds)
	},
}

// ExpandMultiJoin replaces a multi-join with a left-deep tree of inner
// joins. Inputs are ordered greedily: the join starts from the input with
// the fewest estimated rows and repeatedly adds the smallest input that
// shares a condition with the inputs joined so far, falling back to the
// smallest remaining input. Each condition is attached to the first join
// where all the inputs it refers to are available. A projection restores the
// original column order.
var ExpandMultiJoin = &rule.Rule{
	Name:    "ExpandMultiJoin",
	Class:   MultiJoinClass,
	Operand: rule.Pattern(opt.MultiJoinOp),
	Apply: func(c *rule.Call) plan.NodeID {
		if publishesCorrelation(c) {
			return plan.NoNode
		}
		mj := c.Root()
		conds := mj.Private.(*plan.MultiJoinPrivate).Conds
		n := len(mj.Inputs)

		offsets := make([]int, n+1)
		rows := make([]float64, n)
		for i := range mj.Inputs {
			offsets[i+1] = offsets[i] + inputOf(c, mj, i).Schema.Width()
			rows[i] = c.RowCount(mj.Inputs[i])
		}
		owner := func(col int) int {
			for i := 0; i < n; i++ {
				if col < offsets[i+1] {
					return i
				}
			}
			return n - 1
		}
		// refs[j] is the set of inputs condition j refers to.
		refs := make([]opt.ColSet, len(conds))
		for j, e := range conds {
			opt.ReferencedColumns(e).ForEach(func(col int) {
				refs[j].Add(owner(col))
			})
		}

		order := joinOrder(n, rows, refs)
		log.VEventf(c.Ctx, 2, "multi-join order %v (estimated rows %v)", order, rows)

		newPos := make([]int, offsets[n])
		width := 0
		place := func(i int) {
			for k := offsets[i]; k < offsets[i+1]; k++ {
				newPos[k] = width + k - offsets[i]
			}
			width += offsets[i+1] - offsets[i]
		}
		remap := func(e opt.ScalarExpr) opt.ScalarExpr {
			return opt.RemapColumns(e, func(col *opt.ColRef) opt.ScalarExpr {
				return &opt.ColRef{Idx: newPos[col.Idx], Typ: col.Typ}
			})
		}

		f := c.Factory
		used := make([]bool, len(conds))
		var joined opt.ColSet
		place(order[0])
		joined.Add(order[0])
		cur := mj.Inputs[order[0]]
		for _, i := range order[1:] {
			place(i)
			joined.Add(i)
			var applicable []opt.ScalarExpr
			for j, e := range conds {
				if !used[j] && refs[j].SubsetOf(joined) {
					used[j] = true
					applicable = append(applicable, remap(e))
				}
			}
			cur = f.ConstructJoin(opt.InnerJoin, cur, mj.Inputs[i], opt.MakeConjunction(applicable))
		}
		if n == 1 {
			if e := opt.MakeConjunction(conds); e != nil {
				cur = f.ConstructFilter(cur, e)
			}
		}

		identity := true
		for i, in := range order {
			identity = identity && i == in
		}
		if identity {
			return cur
		}
		exprs := make([]opt.ScalarExpr, offsets[n])
		names := make([]string, offsets[n])
		for col := range exprs {
			exprs[col] = &opt.ColRef{Idx: newPos[col], Typ: mj.Schema.Column(col).Type}
			names[col] = mj.Schema.Column(col).Name
		}
		return f.ConstructProject(cur, exprs, names)
	},
}

// joinOrder returns the greedy join order of n inputs with the given row
// estimates and conditions, where refs[j] is the set of inputs condition j
// refers to.
func joinOrder(n int, rows []float64, refs []opt.ColSet) []int {
	order := make([]int, 0, n)
	var joined opt.ColSet
	added := make([]bool, n)

	connected := func(i int) bool {
		var with opt.ColSet
		with.Add(i)
		joined.ForEach(func(k int) { with.Add(k) })
		for _, r := range refs {
			if r.Contains(i) && r.Intersects(joined) && r.SubsetOf(with) {
				return true
			}
		}
		return false
	}

	for len(order) < n {
		best, bestConnected := -1, false
		for i := 0; i < n; i++ {
			if added[i] {
				continue
			}
			conn := len(order) > 0 && connected(i)
			switch {
			case best == -1,
				conn && !bestConnected,
				conn == bestConnected && rows[i] < rows[best]:
				best, bestConnected = i, conn
			}
		}
		added[best] = true
		joined.Add(best)
		order = append(order, best)
	}
	return order
}
