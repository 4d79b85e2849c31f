// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package rowexec runs lowered pipelines against in-memory tables.
package rowexec

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/sem/eval"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/util/log"
)

// Tables is the storage a pipeline reads and writes.
type Tables interface {
	Scan(table string) ([]tree.Datums, error)
	Insert(table string, row tree.Datums) error
}

// Run executes the pipeline and returns the rows it emits.
func Run(ctx context.Context, p *exec.Pipeline, tables Tables) (_ []tree.Datums, err error) {
	defer opt.CatchOptimizerError(&err)

	in := &interpreter{
		ctx:    ctx,
		tables: tables,
		slots:  make([]interface{}, p.NumSlots),
	}
	if err := in.runBlock(p.Root); err != nil {
		return nil, err
	}
	log.VEventf(ctx, 2, "pipeline emitted %d rows", len(in.out))
	return in.out, nil
}

// interpreter holds the slots of a running pipeline. A slot holds a row
// (tree.Datums), a scalar (tree.Datum), an array, a grouping table or a set.
type interpreter struct {
	ctx    context.Context
	tables Tables
	slots  []interface{}
	out    []tree.Datums
}

// rowArray is the value of an array slot.
type rowArray struct {
	rows []tree.Datums
}

// rowSet is the value of a set slot.
type rowSet struct {
	seen map[string]struct{}
}

func (in *interpreter) runBlock(b *exec.Block) error {
	for e := b.Instrs.Front(); e != nil; e = e.Next() {
		if err := in.run(e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (in *interpreter) run(i exec.Instr) error {
	switch t := i.(type) {
	case *exec.Declare:
		v, err := in.evalInit(t.Init)
		if err != nil {
			return err
		}
		in.slots[t.Slot] = v

	case *exec.Assign:
		v, err := in.evalInit(t.Value)
		if err != nil {
			return err
		}
		in.slots[t.Slot] = v

	case *exec.Loop:
		rows, err := in.source(t.Source)
		if err != nil {
			return err
		}
		for _, row := range rows {
			in.slots[t.Var] = row
			if err := in.runBlock(t.Body); err != nil {
				return err
			}
		}

	case *exec.If:
		cond, err := in.evalScalar(t.Cond)
		if err != nil {
			return err
		}
		if eval.IsTrue(cond) {
			return in.runBlock(t.Then)
		}

	case *exec.Append:
		row, err := in.evalRow(t.Row)
		if err != nil {
			return err
		}
		arr := in.array(t.Array)
		arr.rows = append(arr.rows, row)

	case *exec.Accumulate:
		keys, err := in.evalScalars(t.Keys)
		if err != nil {
			return err
		}
		args := make(tree.Datums, len(t.Args))
		for j, e := range t.Args {
			if e == nil {
				continue
			}
			if args[j], err = in.evalScalar(e); err != nil {
				return err
			}
		}
		table, ok := in.slots[t.Table].(*groupTable)
		if !ok {
			return errors.AssertionFailedf("slot %s does not hold a grouping table", t.Table)
		}
		return table.accumulate(keys, args)

	case *exec.SortArray:
		sortRows(in.array(t.Array).rows, t.Keys)

	case *exec.Insert:
		row, err := in.evalRow(t.Row)
		if err != nil {
			return err
		}
		if err := in.tables.Insert(t.Table, row); err != nil {
			return err
		}
		n, ok := in.slots[t.Counter].(*tree.DInt)
		if !ok {
			return errors.AssertionFailedf("slot %s does not hold a counter", t.Counter)
		}
		in.slots[t.Counter] = tree.NewDInt(*n + 1)

	case *exec.Emit:
		row, err := in.evalRow(t.Row)
		if err != nil {
			return err
		}
		in.out = append(in.out, row)

	case *exec.EmitAll:
		in.out = append(in.out, in.array(t.Array).rows...)

	default:
		return errors.AssertionFailedf("unhandled instruction %T", i)
	}
	return nil
}

func (in *interpreter) array(s exec.SlotID) *rowArray {
	arr, ok := in.slots[s].(*rowArray)
	if !ok {
		panic(errors.AssertionFailedf("slot %s does not hold an array", s))
	}
	return arr
}

func (in *interpreter) source(src exec.Source) ([]tree.Datums, error) {
	switch t := src.(type) {
	case *exec.ScanSource:
		return in.tables.Scan(t.Table)
	case *exec.ValuesSource:
		return t.Rows, nil
	case *exec.ArraySource:
		return in.array(t.Array).rows, nil
	case *exec.GroupSource:
		table, ok := in.slots[t.Table].(*groupTable)
		if !ok {
			return nil, errors.AssertionFailedf("slot %s does not hold a grouping table", t.Table)
		}
		return table.results(), nil
	}
	return nil, errors.AssertionFailedf("unhandled source %T", src)
}

// evalInit evaluates the value stored by a declaration or assignment.
func (in *interpreter) evalInit(e exec.Expr) (interface{}, error) {
	switch t := e.(type) {
	case *exec.NewArray:
		return &rowArray{rows: append([]tree.Datums(nil), t.Rows...)}, nil
	case *exec.NewGroupTable:
		return newGroupTable(t.NumKeys, t.Aggs, t.Scalar), nil
	case *exec.NewSet:
		return &rowSet{seen: make(map[string]struct{})}, nil
	case *exec.SlotRef:
		return in.slots[t.Slot], nil
	case *exec.MakeRow, *exec.ConcatRows, *exec.NullRow:
		return in.evalRow(e)
	}
	return in.evalScalar(e)
}

func (in *interpreter) evalRow(e exec.Expr) (tree.Datums, error) {
	switch t := e.(type) {
	case *exec.SlotRef:
		return in.row(t.Slot), nil
	case *exec.MakeRow:
		return in.evalScalars(t.Fields)
	case *exec.ConcatRows:
		l, err := in.evalRow(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := in.evalRow(t.Right)
		if err != nil {
			return nil, err
		}
		res := make(tree.Datums, 0, len(l)+len(r))
		return append(append(res, l...), r...), nil
	case *exec.NullRow:
		res := make(tree.Datums, t.Width)
		for i := range res {
			res[i] = tree.DNull
		}
		return res, nil
	}
	return nil, errors.AssertionFailedf("%T is not a row expression", e)
}

func (in *interpreter) row(s exec.SlotID) tree.Datums {
	row, ok := in.slots[s].(tree.Datums)
	if !ok {
		panic(errors.AssertionFailedf("slot %s does not hold a row", s))
	}
	return row
}

func (in *interpreter) evalScalars(list []exec.Expr) (tree.Datums, error) {
	res := make(tree.Datums, len(list))
	for i, e := range list {
		d, err := in.evalScalar(e)
		if err != nil {
			return nil, err
		}
		res[i] = d
	}
	return res, nil
}

func (in *interpreter) evalScalar(e exec.Expr) (tree.Datum, error) {
	switch t := e.(type) {
	case *exec.FieldRef:
		return in.row(t.Slot)[t.Field], nil

	case *exec.CorrelField:
		if t.Slot == exec.NoSlot {
			return nil, errors.AssertionFailedf("unresolved reference to %s", t.Var)
		}
		return in.row(t.Slot)[t.Field], nil

	case *exec.SlotRef:
		d, ok := in.slots[t.Slot].(tree.Datum)
		if !ok {
			return nil, errors.AssertionFailedf("slot %s does not hold a scalar", t.Slot)
		}
		return d, nil

	case *exec.Const:
		return t.Value, nil

	case *exec.Cmp:
		l, r, err := in.evalPair(t.Left, t.Right)
		if err != nil {
			return nil, err
		}
		return eval.Compare(t.Op, l, r)

	case *exec.Arith:
		l, r, err := in.evalPair(t.Left, t.Right)
		if err != nil {
			return nil, err
		}
		return eval.BinaryOp(t.Op, l, r)

	case *exec.And:
		l, r, err := in.evalPair(t.Left, t.Right)
		if err != nil {
			return nil, err
		}
		return eval.And(l, r), nil

	case *exec.Or:
		l, r, err := in.evalPair(t.Left, t.Right)
		if err != nil {
			return nil, err
		}
		return eval.Or(l, r), nil

	case *exec.Not:
		d, err := in.evalScalar(t.Input)
		if err != nil {
			return nil, err
		}
		return eval.Not(d), nil

	case *exec.IsNull:
		d, err := in.evalScalar(t.Input)
		if err != nil {
			return nil, err
		}
		return tree.MakeDBool(tree.DBool((d == tree.DNull) != t.Negate)), nil

	case *exec.AddToSet:
		row, err := in.evalRow(t.Row)
		if err != nil {
			return nil, err
		}
		set, ok := in.slots[t.Set].(*rowSet)
		if !ok {
			return nil, errors.AssertionFailedf("slot %s does not hold a set", t.Set)
		}
		key := row.Key()
		if _, ok := set.seen[key]; ok {
			return tree.DBoolFalse, nil
		}
		set.seen[key] = struct{}{}
		return tree.DBoolTrue, nil
	}
	return nil, errors.AssertionFailedf("%T is not a scalar expression", e)
}

func (in *interpreter) evalPair(left, right exec.Expr) (l, r tree.Datum, err error) {
	if l, err = in.evalScalar(left); err != nil {
		return nil, nil, err
	}
	if r, err = in.evalScalar(right); err != nil {
		return nil, nil, err
	}
	return l, r, nil
}
