// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package execbuilder_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/cat"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/opt/exec/execbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/hep"
	"github.com/heplan/heplan/pkg/sql/opt/optbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/props"
	"github.com/heplan/heplan/pkg/sql/opt/xform"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
	"github.com/heplan/heplan/pkg/util/log"
	"github.com/stretchr/testify/require"
)

// optimize runs the default program over the plan built in f.
func optimize(t *testing.T, f *plan.Factory, catalog *cat.MemCatalog, cfg hep.Config, opts xform.ProgramOptions) {
	ctx := context.Background()
	reg, err := xform.NewRegistry()
	require.NoError(t, err)
	reg.Freeze()
	p := hep.New(ctx, f, reg, cfg)
	p.SetEstimator(props.NewEstimator(ctx, catalog))
	require.NoError(t, p.Run(xform.DefaultProgram(opts)))
}

// TestLower optimizes and lowers the plan specs in testdata/lower.
// Arguments:
//
//	eager-bind-all    declare lazily bound rows immediately
//	swap-right-joins  rewrite right joins as left joins
//	terminal=name     the convention the root must have
func TestLower(t *testing.T) {
	defer log.Scope(t).Close(t)

	datadriven.RunTest(t, "testdata/lower", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "lower":
			var cfg execbuilder.Config
			var opts xform.ProgramOptions
			hepCfg := hep.DefaultConfig()
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "eager-bind-all":
					cfg.EagerBindAll = true
				case "swap-right-joins":
					opts.SwapRightJoins = true
				case "terminal":
					c, err := opt.ConventionFromString(arg.Vals[0])
					if err != nil {
						d.Fatalf(t, "%v", err)
					}
					hepCfg.TerminalConvention = c
				default:
					d.Fatalf(t, "unknown argument: %s", arg.Key)
				}
			}

			ctx := context.Background()
			spec, err := optbuilder.ParsePlanSpec([]byte(d.Input))
			if err != nil {
				d.Fatalf(t, "%v", err)
			}
			catalog, err := spec.Catalog()
			if err != nil {
				d.Fatalf(t, "%v", err)
			}
			f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
			if _, err := optbuilder.New(ctx, f, catalog).BuildSpec(spec.Query); err != nil {
				d.Fatalf(t, "%v", err)
			}
			optimize(t, f, catalog, hepCfg, opts)
			p, err := execbuilder.Build(ctx, f.Graph(), cfg)
			if err != nil {
				return "error: " + err.Error() + "\n"
			}
			return p.String()

		default:
			d.Fatalf(t, "unsupported command: %s", d.Cmd)
			return ""
		}
	})
}

var (
	colA = opt.Column{Name: "a", Type: types.Int}
	colB = opt.Column{Name: "b", Type: types.Int, Nullable: true}
	colX = opt.Column{Name: "x", Type: types.Int}
)

func testCatalog(t *testing.T) *cat.MemCatalog {
	catalog := cat.NewMemCatalog()
	require.NoError(t, catalog.AddTable(&cat.MemTable{TabName: "t", Cols: []opt.Column{colA, colB}, Stats: 1000}))
	require.NoError(t, catalog.AddTable(&cat.MemTable{TabName: "u", Cols: []opt.Column{colX}, Stats: 10}))
	return catalog
}

func gt(col int, val int64) opt.ScalarExpr {
	return &opt.Cmp{
		Op:    tree.GT,
		Left:  &opt.ColRef{Idx: col, Typ: types.Int},
		Right: &opt.Const{Value: tree.NewDInt(tree.DInt(val))},
	}
}

func plusOne(col int) opt.ScalarExpr {
	return &opt.Arith{
		Op:    tree.Plus,
		Left:  &opt.ColRef{Idx: col, Typ: types.Int},
		Right: &opt.Const{Value: tree.NewDInt(1)},
	}
}

// countInstrs counts the instructions of the pipeline that satisfy fn.
func countInstrs(p *exec.Pipeline, fn func(exec.Instr) bool) int {
	n := 0
	p.Walk(func(i exec.Instr) {
		if fn(i) {
			n++
		}
	})
	return n
}

func isDeclareOf[T exec.Expr](i exec.Instr) bool {
	d, ok := i.(*exec.Declare)
	if !ok {
		return false
	}
	_, ok = d.Init.(T)
	return ok
}

// TestSharedSubresult checks that a node consumed twice is computed once
// into a buffer that both consumers iterate.
func TestSharedSubresult(t *testing.T) {
	defer log.Scope(t).Close(t)

	catalog := testCatalog(t)
	f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
	filter := f.ConstructFilter(f.ConstructScan("t", []opt.Column{colA, colB}), gt(0, 1))
	f.Graph().SetRoot(f.ConstructUnion(true /* all */, filter, filter))
	optimize(t, f, catalog, hep.DefaultConfig(), xform.ProgramOptions{})

	p, err := execbuilder.Build(context.Background(), f.Graph(), execbuilder.Config{})
	require.NoError(t, err)

	require.Equal(t, 1, countInstrs(p, isDeclareOf[*exec.NewArray]), "%s", p)
	require.Equal(t, 1, countInstrs(p, func(i exec.Instr) bool {
		l, ok := i.(*exec.Loop)
		if !ok {
			return false
		}
		_, ok = l.Source.(*exec.ScanSource)
		return ok
	}), "%s", p)
	require.Equal(t, 2, countInstrs(p, func(i exec.Instr) bool {
		l, ok := i.(*exec.Loop)
		if !ok {
			return false
		}
		_, ok = l.Source.(*exec.ArraySource)
		return ok
	}), "%s", p)
	require.Equal(t, 2, countInstrs(p, func(i exec.Instr) bool {
		_, ok := i.(*exec.Emit)
		return ok
	}), "%s", p)
}

// TestLazyDeclarationOrder checks that a projected row read by a join
// condition is declared where it was produced, ahead of the join's own
// declarations.
func TestLazyDeclarationOrder(t *testing.T) {
	defer log.Scope(t).Close(t)

	catalog := testCatalog(t)
	f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
	left := f.ConstructProject(f.ConstructScan("t", []opt.Column{colA, colB}),
		[]opt.ScalarExpr{plusOne(0)}, []string{"c"})
	right := f.ConstructScan("u", []opt.Column{colX})
	cond := &opt.Cmp{
		Op:    tree.EQ,
		Left:  &opt.ColRef{Idx: 0, Typ: types.Int},
		Right: &opt.ColRef{Idx: 1, Typ: types.Int},
	}
	f.Graph().SetRoot(f.ConstructJoin(opt.LeftJoin, left, right, cond))
	optimize(t, f, catalog, hep.DefaultConfig(), xform.ProgramOptions{})

	p, err := execbuilder.Build(context.Background(), f.Graph(), execbuilder.Config{})
	require.NoError(t, err)

	lines := strings.Split(p.String(), "\n")
	index := func(substr string) int {
		for i, l := range lines {
			if strings.Contains(l, substr) {
				return i
			}
		}
		t.Fatalf("%q not found in:\n%s", substr, p)
		return -1
	}
	project := index("+ 1)")
	matched := index("= false")
	inner := index("in scan u")
	require.Less(t, project, matched, "%s", p)
	require.Less(t, matched, inner, "%s", p)
}

// TestUnusedRowIsNotDeclared checks that a projection nobody reads is never
// computed, unless every bind is forced eager.
func TestUnusedRowIsNotDeclared(t *testing.T) {
	defer log.Scope(t).Close(t)

	for _, eager := range []bool{false, true} {
		catalog := testCatalog(t)
		f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
		proj := f.ConstructProject(f.ConstructScan("t", []opt.Column{colA, colB}),
			[]opt.ScalarExpr{plusOne(0)}, []string{"c"})
		f.Graph().SetRoot(f.ConstructAggregate(proj, nil /* groupCols */, []opt.AggCall{
			{Func: opt.CountRowsAgg, Name: "count"},
		}))
		optimize(t, f, catalog, hep.DefaultConfig(), xform.ProgramOptions{})

		p, err := execbuilder.Build(context.Background(), f.Graph(), execbuilder.Config{EagerBindAll: eager})
		require.NoError(t, err)

		// The aggregate's own output row is a loop variable; only the
		// projection is ever declared from a MakeRow.
		expected := 0
		if eager {
			expected = 1
		}
		require.Equal(t, expected, countInstrs(p, isDeclareOf[*exec.MakeRow]), "eager=%t\n%s", eager, p)
	}
}

// TestAggregateReadsInputOnDemand checks that an aggregate only declares its
// input row when a grouping key or an aggregate argument reads it.
func TestAggregateReadsInputOnDemand(t *testing.T) {
	defer log.Scope(t).Close(t)

	testCases := []struct {
		name      string
		groupCols []int
		aggs      []opt.AggCall
		declared  int
	}{
		{name: "count rows", aggs: []opt.AggCall{{Func: opt.CountRowsAgg, Name: "n"}}, declared: 0},
		{name: "sum", aggs: []opt.AggCall{{Func: opt.SumAgg, Arg: 0, Name: "s"}}, declared: 1},
		{
			name:      "grouped count rows",
			groupCols: []int{0},
			aggs:      []opt.AggCall{{Func: opt.CountRowsAgg, Name: "n"}},
			declared:  1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog := testCatalog(t)
			f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
			proj := f.ConstructProject(f.ConstructScan("t", []opt.Column{colA, colB}),
				[]opt.ScalarExpr{plusOne(0)}, []string{"c"})
			f.Graph().SetRoot(f.ConstructAggregate(proj, tc.groupCols, tc.aggs))
			optimize(t, f, catalog, hep.DefaultConfig(), xform.ProgramOptions{})

			p, err := execbuilder.Build(context.Background(), f.Graph(), execbuilder.Config{})
			require.NoError(t, err)
			require.Equal(t, tc.declared, countInstrs(p, isDeclareOf[*exec.MakeRow]), "%s", p)
		})
	}
}

// TestUnresolvedCorrelation checks that a reference to a correlation
// variable no node publishes is reported as an assertion failure.
func TestUnresolvedCorrelation(t *testing.T) {
	defer log.Scope(t).Close(t)

	catalog := testCatalog(t)
	f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
	f.Graph().SetRoot(f.ConstructFilter(f.ConstructScan("t", []opt.Column{colA, colB}), &opt.Cmp{
		Op:    tree.EQ,
		Left:  &opt.ColRef{Idx: 0, Typ: types.Int},
		Right: &opt.CorrelRef{Var: "$cor9", Field: 0, Typ: types.Int},
	}))
	optimize(t, f, catalog, hep.DefaultConfig(), xform.ProgramOptions{})

	_, err := execbuilder.Build(context.Background(), f.Graph(), execbuilder.Config{})
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)
	require.Contains(t, err.Error(), "$cor9")
}

func TestBuildRequiresFrozenGraph(t *testing.T) {
	defer log.Scope(t).Close(t)

	f := plan.NewFactory(plan.New(), opt.NewSchemaCache())
	f.Graph().SetRoot(f.ConstructScan("t", []opt.Column{colA}))
	_, err := execbuilder.Build(context.Background(), f.Graph(), execbuilder.Config{})
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))
}
