// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"sync"
	"testing"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

var cols = []opt.Column{{Name: "a", Type: types.Int}, {Name: "b", Type: types.Int}}

func noop(*Call) plan.NodeID { return plan.NoNode }

func cond() opt.ScalarExpr {
	return &opt.Cmp{
		Op:    tree.GT,
		Left:  &opt.ColRef{Idx: 0, Typ: types.Int},
		Right: &opt.Const{Value: tree.NewDInt(1)},
	}
}

func TestOperandMatch(t *testing.T) {
	g := plan.New()
	f := plan.NewFactory(g, nil)
	scan := f.ConstructScan("t", cols)
	proj := f.ConstructProject(scan,
		[]opt.ScalarExpr{&opt.ColRef{Idx: 0, Typ: types.Int}}, []string{"a"})
	filter := f.ConstructFilter(proj, cond())

	r := &Rule{
		Name:    "FilterProject",
		Operand: Pattern(opt.FilterOp, Pattern(opt.ProjectOp)),
		Apply:   noop,
	}
	bound, ok := r.Match(g, filter)
	require.True(t, ok)
	require.Len(t, bound, 2)
	require.Equal(t, filter, bound[0].ID)
	require.Equal(t, proj, bound[1].ID)

	_, ok = r.Match(g, proj)
	require.False(t, ok)

	// A wildcard binds the node without constraining it.
	r2 := &Rule{
		Name:    "FilterAny",
		Operand: Pattern(opt.FilterOp, Any()),
		Apply:   noop,
	}
	bound, ok = r2.Match(g, filter)
	require.True(t, ok)
	require.Equal(t, proj, bound[1].ID)

	// Child count must agree.
	r3 := &Rule{
		Name:    "FilterTwo",
		Operand: Pattern(opt.FilterOp, Any(), Any()),
		Apply:   noop,
	}
	_, ok = r3.Match(g, filter)
	require.False(t, ok)

	// Non-wildcard operands only match nodes of the rule's convention.
	physical := f.ConstructCopy(g.Node(filter).WithConvention(opt.IteratorConvention))
	_, ok = r.Match(g, physical)
	require.False(t, ok)
	conv := &Rule{
		Name:    "FilterImpl",
		Operand: Pattern(opt.FilterOp),
		Apply:   noop,
		Convert: &Conversion{From: opt.IteratorConvention, To: opt.ArrayConvention},
	}
	_, ok = conv.Match(g, physical)
	require.True(t, ok)
	_, ok = conv.Match(g, filter)
	require.False(t, ok)
}

func TestOperandFormat(t *testing.T) {
	o := Pattern(opt.FilterOp, Pattern(opt.UnionOp, Any(), Pattern(opt.ScanOp)))
	require.Equal(t, "(filter (union * scan))", o.String())
	require.Equal(t, 3, o.Depth())
	require.Equal(t, 4, o.Size())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &Rule{Name: "B", Class: "c1", Operand: Pattern(opt.FilterOp), Apply: noop}
	b := &Rule{Name: "A", Class: "c1", Operand: Pattern(opt.ProjectOp), Apply: noop}
	c := &Rule{
		Name:    "C",
		Operand: Pattern(opt.ScanOp),
		Apply:   noop,
		Convert: &Conversion{From: opt.LogicalConvention, To: opt.IteratorConvention},
	}
	require.NoError(t, r.Register(a, b, c))
	require.Equal(t, 3, r.Len())

	got, ok := r.Lookup("A")
	require.True(t, ok)
	require.Same(t, b, got)
	_, ok = r.Lookup("missing")
	require.False(t, ok)

	// Classes keep registration order.
	require.Equal(t, []*Rule{a, b}, r.Class("c1"))
	require.Equal(t, []*Rule{c}, r.Converters(opt.LogicalConvention, opt.IteratorConvention))
	require.Empty(t, r.Converters(opt.IteratorConvention, opt.ArrayConvention))

	// Ascend visits rules in name order.
	var names []string
	r.Ascend(func(rl *Rule) bool {
		names = append(names, rl.Name)
		return true
	})
	require.Equal(t, []string{"A", "B", "C"}, names)

	require.Error(t, r.Register(&Rule{Name: "A", Operand: Pattern(opt.ScanOp), Apply: noop}))
	r.Freeze()
	require.Error(t, r.Register(&Rule{Name: "D", Operand: Pattern(opt.ScanOp), Apply: noop}))
}

func TestRegistryValidation(t *testing.T) {
	deep := Pattern(opt.FilterOp, Pattern(opt.FilterOp, Pattern(opt.FilterOp,
		Pattern(opt.FilterOp, Pattern(opt.FilterOp)))))
	testCases := []struct {
		name string
		rule *Rule
	}{
		{name: "no name", rule: &Rule{Operand: Pattern(opt.ScanOp), Apply: noop}},
		{name: "no operand", rule: &Rule{Name: "x", Apply: noop}},
		{name: "wildcard root", rule: &Rule{Name: "x", Operand: Any(), Apply: noop}},
		{name: "no apply", rule: &Rule{Name: "x", Operand: Pattern(opt.ScanOp)}},
		{name: "too deep", rule: &Rule{Name: "x", Operand: deep, Apply: noop}},
		{name: "identity converter", rule: &Rule{
			Name: "x", Operand: Pattern(opt.ScanOp), Apply: noop,
			Convert: &Conversion{From: opt.IteratorConvention, To: opt.IteratorConvention},
		}},
		{name: "coercing converter", rule: &Rule{
			Name: "x", Operand: Pattern(opt.ScanOp), Apply: noop, Coerces: true,
			Convert: &Conversion{From: opt.LogicalConvention, To: opt.IteratorConvention},
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, NewRegistry().Register(tc.rule))
		})
	}
}

func TestRegistryConcurrentReads(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		&Rule{Name: "A", Class: "c", Operand: Pattern(opt.FilterOp), Apply: noop},
		&Rule{Name: "B", Class: "c", Operand: Pattern(opt.ProjectOp), Apply: noop},
	)
	r.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, ok := r.Lookup("B"); !ok {
					t.Error("rule B not found")
				}
				if len(r.Class("c")) != 2 {
					t.Error("wrong class size")
				}
			}
		}()
	}
	wg.Wait()
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	rl := &Rule{Name: "P", Operand: Pattern(opt.FilterOp), Apply: noop}

	require.Error(t, c.Add(rl))
	require.Error(t, c.End())

	require.NoError(t, c.Begin("plugins"))
	name, ok := c.Registering()
	require.True(t, ok)
	require.Equal(t, "plugins", name)
	require.Error(t, c.Begin("other"))
	require.NoError(t, c.Add(rl))
	require.Error(t, c.Add(rl))
	require.NoError(t, c.End())

	_, ok = c.Registering()
	require.False(t, ok)
	require.Equal(t, []*Rule{rl}, c.Collection("plugins"))
	require.Empty(t, c.Collection("other"))

	var nilCollector *Collector
	require.Empty(t, nilCollector.Collection("plugins"))
}
