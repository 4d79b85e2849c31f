// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowexec

import (
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/eval"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// groupTable is the value of a grouping table slot. Groups are kept in the
// order they were created.
type groupTable struct {
	numKeys int
	aggs    []opt.AggFunc
	scalar  bool

	groups map[string]*group
	order  []*group
}

type group struct {
	key    tree.Datums
	states []aggState
}

// aggState is the running state of one aggregate. val is nil until the
// aggregate has seen a non-NULL argument.
type aggState struct {
	count int64
	val   tree.Datum
}

func newGroupTable(numKeys int, aggs []opt.AggFunc, scalar bool) *groupTable {
	return &groupTable{
		numKeys: numKeys,
		aggs:    aggs,
		scalar:  scalar,
		groups:  make(map[string]*group),
	}
}

func (t *groupTable) accumulate(keys, args tree.Datums) error {
	if len(keys) != t.numKeys || len(args) != len(t.aggs) {
		return errors.AssertionFailedf("grouping table expects %d keys and %d arguments, got %d and %d",
			t.numKeys, len(t.aggs), len(keys), len(args))
	}
	k := keys.Key()
	g, ok := t.groups[k]
	if !ok {
		g = &group{key: keys, states: make([]aggState, len(t.aggs))}
		t.groups[k] = g
		t.order = append(t.order, g)
	}
	for i, fn := range t.aggs {
		if err := g.states[i].add(fn, args[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *aggState) add(fn opt.AggFunc, arg tree.Datum) error {
	if fn == opt.CountRowsAgg {
		s.count++
		return nil
	}
	if arg == tree.DNull {
		return nil
	}
	s.count++
	if s.val == nil {
		s.val = arg
		return nil
	}
	switch fn {
	case opt.SumAgg:
		sum, err := eval.BinaryOp(tree.Plus, s.val, arg)
		if err != nil {
			return err
		}
		s.val = sum
	case opt.MinAgg:
		if arg.Compare(s.val) < 0 {
			s.val = arg
		}
	case opt.MaxAgg:
		if arg.Compare(s.val) > 0 {
			s.val = arg
		}
	}
	return nil
}

func (s *aggState) result(fn opt.AggFunc) tree.Datum {
	switch fn {
	case opt.CountRowsAgg, opt.CountAgg:
		return tree.NewDInt(tree.DInt(s.count))
	}
	if s.val == nil {
		return tree.DNull
	}
	return s.val
}

// results returns one row per group: the key followed by the aggregate
// results. A scalar table with no groups returns the results over no rows.
func (t *groupTable) results() []tree.Datums {
	groups := t.order
	if len(groups) == 0 && t.scalar {
		groups = []*group{{states: make([]aggState, len(t.aggs))}}
	}
	res := make([]tree.Datums, len(groups))
	for i, g := range groups {
		row := make(tree.Datums, 0, len(g.key)+len(t.aggs))
		row = append(row, g.key...)
		for j, fn := range t.aggs {
			row = append(row, g.states[j].result(fn))
		}
		res[i] = row
	}
	return res
}
