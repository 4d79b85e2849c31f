// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package execbuilder

import (
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// implement lowers the node of fr. It either generates the parent body of
// fr itself, at every point where a row of the node is available, or visits
// the node's inputs, whose rows reach implementParent.
func (b *Builder) implement(fr *frame) {
	n := fr.node
	if !n.Convention.IsPhysical() {
		panic(errors.AssertionFailedf("cannot lower %s node %d with %s convention", n.Op, n.ID, n.Convention))
	}
	switch n.Op {
	case opt.ScanOp:
		b.loop(fr, &exec.ScanSource{Table: n.Private.(*plan.ScanPrivate).Table})

	case opt.ValuesOp:
		rows := n.Private.(*plan.ValuesPrivate).Rows
		if n.Convention == opt.ArrayConvention {
			b.declareArray(fr, &exec.NewArray{Rows: rows})
			b.generateParentBody(fr)
			return
		}
		b.loop(fr, &exec.ValuesSource{Rows: rows})

	case opt.OneRowOp:
		b.loop(fr, &exec.ValuesSource{Rows: []tree.Datums{{}}})

	case opt.FilterOp:
		b.setBind(fr, &sharedBind{input: b.input(fr, 0)})
		b.visitChild(fr, 0, b.input(fr, 0))

	case opt.ProjectOp, opt.CalcOp:
		b.visitChild(fr, 0, b.input(fr, 0))

	case opt.JoinOp, opt.CorrelateOp:
		outer, _ := joinSides(n)
		b.visitChild(fr, outer, b.input(fr, outer))

	case opt.AggregateOp:
		ap := n.Private.(*plan.AggregatePrivate)
		aggs := make([]opt.AggFunc, len(ap.Aggs))
		for i := range ap.Aggs {
			aggs[i] = ap.Aggs[i].Func
		}
		fr.aux = b.newSlot()
		b.block.Append(&exec.Declare{Slot: fr.aux, Init: &exec.NewGroupTable{
			NumKeys: len(ap.GroupCols),
			Aggs:    aggs,
			Scalar:  len(ap.GroupCols) == 0,
		}})
		b.visitChild(fr, 0, b.input(fr, 0))
		b.loop(fr, &exec.GroupSource{Table: fr.aux})

	case opt.UnionOp:
		if !n.Private.(*plan.UnionPrivate).All {
			fr.aux = b.newSlot()
			b.block.Append(&exec.Declare{Slot: fr.aux, Init: &exec.NewSet{}})
		}
		for i := range n.Inputs {
			b.visitChild(fr, i, b.input(fr, i))
		}

	case opt.SortOp:
		fr.aux = b.declareArray(fr, &exec.NewArray{})
		b.visitChild(fr, 0, b.input(fr, 0))
		keys := n.Private.(*plan.SortPrivate).Keys
		sk := make([]exec.SortKey, len(keys))
		for i, k := range keys {
			sk[i] = exec.SortKey{Col: k.Col, Descending: k.Descending}
		}
		b.block.Append(&exec.SortArray{Array: fr.aux, Keys: sk})
		b.generateParentBody(fr)

	case opt.TableModificationOp:
		fr.aux = b.newSlot()
		b.block.Append(&exec.Declare{Slot: fr.aux, Init: &exec.Const{Value: tree.NewDInt(0)}})
		b.visitChild(fr, 0, b.input(fr, 0))
		counter := fr.aux
		b.bindLazy(fr, func() exec.Expr {
			return &exec.MakeRow{Fields: []exec.Expr{&exec.SlotRef{Slot: counter}}}
		})
		b.generateParentBody(fr)

	case opt.ConvertOp:
		cp := n.Private.(*plan.ConvertPrivate)
		if cp.To == opt.ArrayConvention {
			fr.aux = b.declareArray(fr, &exec.NewArray{})
			b.visitChild(fr, 0, b.input(fr, 0))
			b.generateParentBody(fr)
			return
		}
		b.visitChild(fr, 0, b.input(fr, 0))

	default:
		panic(errors.AssertionFailedf("cannot lower %s node %d", n.Op, n.ID))
	}
}

// implementParent generates the code consuming the current row of input
// ordinal of fr.
func (b *Builder) implementParent(fr *frame, ordinal int) {
	n := fr.node
	child := b.frames[b.input(fr, ordinal)]

	switch n.Op {
	case opt.FilterOp:
		cond := b.buildScalar(n.Private.(*plan.FilterPrivate).Cond, rowCols(b, child))
		b.nested(ifInstr(cond), func() { b.generateParentBody(fr) })

	case opt.ProjectOp:
		pp := n.Private.(*plan.ProjectPrivate)
		b.bindLazy(fr, func() exec.Expr { return b.makeRow(pp.Exprs, rowCols(b, child)) })
		b.generateParentBody(fr)

	case opt.CalcOp:
		cp := n.Private.(*plan.CalcPrivate)
		project := func() {
			b.bindLazy(fr, func() exec.Expr { return b.makeRow(cp.Exprs, rowCols(b, child)) })
			b.generateParentBody(fr)
		}
		if cp.Cond == nil {
			project()
			return
		}
		cond := b.buildScalar(cp.Cond, rowCols(b, child))
		b.nested(ifInstr(cond), project)

	case opt.JoinOp, opt.CorrelateOp:
		b.implementJoinParent(fr, ordinal)

	case opt.AggregateOp:
		ap := n.Private.(*plan.AggregatePrivate)
		// count(*) alone never reads the input row.
		in := rowCols(b, child)
		acc := &exec.Accumulate{Table: fr.aux}
		for _, c := range ap.GroupCols {
			acc.Keys = append(acc.Keys, in(c))
		}
		for _, a := range ap.Aggs {
			if a.Func == opt.CountRowsAgg {
				acc.Args = append(acc.Args, nil)
				continue
			}
			acc.Args = append(acc.Args, in(a.Arg))
		}
		b.block.Append(acc)

	case opt.UnionOp:
		// Each branch rebinds the union to its own row.
		if fr.bind == nil {
			b.setBind(fr, &sharedBind{input: child.node.ID})
		} else {
			fr.bind = &sharedBind{input: child.node.ID}
		}
		if n.Private.(*plan.UnionPrivate).All {
			b.generateParentBody(fr)
			return
		}
		add := &exec.AddToSet{Set: fr.aux, Row: &exec.SlotRef{Slot: b.slotOf(child)}}
		b.nested(ifInstr(add), func() { b.generateParentBody(fr) })

	case opt.SortOp:
		b.block.Append(&exec.Append{Array: fr.aux, Row: &exec.SlotRef{Slot: b.slotOf(child)}})

	case opt.TableModificationOp:
		b.block.Append(&exec.Insert{
			Table:   n.Private.(*plan.TableModificationPrivate).Table,
			Row:     &exec.SlotRef{Slot: b.slotOf(child)},
			Counter: fr.aux,
		})

	case opt.ConvertOp:
		if n.Private.(*plan.ConvertPrivate).To == opt.ArrayConvention {
			b.block.Append(&exec.Append{Array: fr.aux, Row: &exec.SlotRef{Slot: b.slotOf(child)}})
			return
		}
		b.loop(fr, &exec.ArraySource{Array: b.slotOf(child)})

	default:
		panic(errors.AssertionFailedf("%s node %d has no inputs to consume", n.Op, n.ID))
	}
}

// joinSides returns the ordinals of the outer and inner loops of a join.
// A right join iterates its right input in the outer loop.
func joinSides(n *plan.Node) (outer, inner int) {
	if n.Private.(*plan.JoinPrivate).Type == opt.RightJoin {
		return 1, 0
	}
	return 0, 1
}

// implementJoinParent lowers a nested loop join. The outer input's body runs
// the inner input; the inner input's body tests the condition. Outer joins
// track whether the outer row matched and pad it with NULLs if not.
func (b *Builder) implementJoinParent(fr *frame, ordinal int) {
	n := fr.node
	jp := n.Private.(*plan.JoinPrivate)
	outer, inner := joinSides(n)
	left, right := b.input(fr, 0), b.input(fr, 1)
	leftWidth := b.g.Node(left).Schema.Width()
	rightWidth := b.g.Node(right).Schema.Width()

	if ordinal == outer {
		outerFrame := b.frames[b.input(fr, outer)]
		if jp.Type != opt.InnerJoin {
			fr.aux = b.newSlot()
			b.block.Append(&exec.Declare{Slot: fr.aux, Init: &exec.Const{Value: tree.DBoolFalse}})
		}
		b.visitChild(fr, inner, b.input(fr, inner))
		if jp.Type == opt.InnerJoin {
			return
		}
		unmatched := &exec.Not{Input: &exec.SlotRef{Slot: fr.aux}}
		b.nested(ifInstr(unmatched), func() {
			b.bindLazy(fr, func() exec.Expr {
				row := &exec.SlotRef{Slot: b.slotOf(outerFrame)}
				if jp.Type == opt.RightJoin {
					return &exec.ConcatRows{Left: &exec.NullRow{Width: leftWidth}, Right: row}
				}
				return &exec.ConcatRows{Left: row, Right: &exec.NullRow{Width: rightWidth}}
			})
			b.generateParentBody(fr)
		})
		return
	}

	leftFrame, rightFrame := b.frames[left], b.frames[right]
	match := func() {
		if jp.Type != opt.InnerJoin {
			b.block.Append(&exec.Assign{Slot: fr.aux, Value: &exec.Const{Value: tree.DBoolTrue}})
		}
		b.bindLazy(fr, func() exec.Expr {
			return &exec.ConcatRows{
				Left:  &exec.SlotRef{Slot: b.slotOf(leftFrame)},
				Right: &exec.SlotRef{Slot: b.slotOf(rightFrame)},
			}
		})
		b.generateParentBody(fr)
	}
	if jp.Cond == nil {
		match()
		return
	}
	cond := b.buildScalar(jp.Cond, func(i int) exec.Expr {
		if i < leftWidth {
			return &exec.FieldRef{Slot: b.slotOf(leftFrame), Field: i}
		}
		return &exec.FieldRef{Slot: b.slotOf(rightFrame), Field: i - leftWidth}
	})
	b.nested(ifInstr(cond), match)
}

// input returns the canonical ID of input i of the frame's node.
func (b *Builder) input(fr *frame, i int) plan.NodeID {
	return b.g.Input(fr.node, i).ID
}

// loop iterates src with an eagerly bound loop variable and generates the
// parent body inside the loop.
func (b *Builder) loop(fr *frame, src exec.Source) {
	v := b.newSlot()
	b.nested(func(body *exec.Block) exec.Instr {
		return &exec.Loop{Var: v, Source: src, Body: body}
	}, func() {
		b.setBind(fr, &eagerBind{slot: v})
		b.generateParentBody(fr)
	})
}

// declareArray declares an array slot eagerly bound to fr.
func (b *Builder) declareArray(fr *frame, init *exec.NewArray) exec.SlotID {
	arr := b.newSlot()
	b.block.Append(&exec.Declare{Slot: arr, Init: init})
	b.setBind(fr, &eagerBind{slot: arr})
	return arr
}

func ifInstr(cond exec.Expr) func(body *exec.Block) exec.Instr {
	return func(body *exec.Block) exec.Instr {
		return &exec.If{Cond: cond, Then: body}
	}
}
