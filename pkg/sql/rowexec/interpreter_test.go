// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowexec

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/opt/exec/execbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/hep"
	"github.com/heplan/heplan/pkg/sql/opt/optbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/props"
	"github.com/heplan/heplan/pkg/sql/opt/xform"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/util/log"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

// TestRun builds, optimizes, lowers and runs the plan specs in
// testdata/run, printing one result row per line.
func TestRun(t *testing.T) {
	defer log.Scope(t).Close(t)

	datadriven.RunTest(t, "testdata/run", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "run":
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
			reg, err := xform.NewRegistry()
			require.NoError(t, err)
			reg.Freeze()
			p := hep.New(ctx, f, reg, hep.DefaultConfig())
			p.SetEstimator(props.NewEstimator(ctx, catalog))
			if err := p.Run(xform.DefaultProgram(xform.ProgramOptions{})); err != nil {
				d.Fatalf(t, "%v", err)
			}
			pipeline, err := execbuilder.Build(ctx, f.Graph(), execbuilder.Config{})
			if err != nil {
				d.Fatalf(t, "%v", err)
			}
			rows, err := Run(ctx, pipeline, catalog)
			if err != nil {
				return "error: " + err.Error() + "\n"
			}
			return formatRows(rows)

		default:
			d.Fatalf(t, "unsupported command: %s", d.Cmd)
			return ""
		}
	})
}

func formatRows(rows []tree.Datums) string {
	var buf strings.Builder
	for _, r := range rows {
		buf.WriteString(r.String())
		buf.WriteByte('\n')
	}
	return buf.String()
}

func dint(v int64) tree.Datum { return tree.NewDInt(tree.DInt(v)) }

func rowStrings(rows []tree.Datums) []string {
	res := make([]string, len(rows))
	for i, r := range rows {
		res[i] = r.String()
	}
	return res
}

func TestGroupTable(t *testing.T) {
	defer log.Scope(t).Close(t)

	aggs := []opt.AggFunc{opt.CountRowsAgg, opt.CountAgg, opt.SumAgg, opt.MinAgg, opt.MaxAgg}
	table := newGroupTable(1, aggs, false /* scalar */)
	for _, r := range []struct {
		key, arg tree.Datum
	}{
		{dint(1), dint(5)},
		{dint(2), tree.DNull},
		{dint(1), dint(3)},
		{dint(1), tree.DNull},
	} {
		args := tree.Datums{nil, r.arg, r.arg, r.arg, r.arg}
		require.NoError(t, table.accumulate(tree.Datums{r.key}, args))
	}
	expected := []string{
		"(1, 3, 2, 8, 3, 5)",
		"(2, 1, 0, NULL, NULL, NULL)",
	}
	if diff := cmp.Diff(expected, rowStrings(table.results())); diff != "" {
		t.Errorf("unexpected groups (-want +got):\n%s", diff)
	}

	scalar := newGroupTable(0, aggs, true /* scalar */)
	require.Equal(t, []string{"(0, 0, NULL, NULL, NULL)"}, rowStrings(scalar.results()))

	require.Error(t, table.accumulate(tree.Datums{}, tree.Datums{nil}))
}

func TestSortRows(t *testing.T) {
	defer log.Scope(t).Close(t)

	rows := []tree.Datums{
		{dint(2), tree.NewDString("a")},
		{tree.DNull, tree.NewDString("b")},
		{dint(1), tree.NewDString("c")},
		{dint(2), tree.NewDString("d")},
	}
	asc := append([]tree.Datums(nil), rows...)
	sortRows(asc, []exec.SortKey{{Col: 0}})
	expected := []string{"(NULL, 'b')", "(1, 'c')", "(2, 'a')", "(2, 'd')"}
	if got := rowStrings(asc); !cmp.Equal(expected, got) {
		t.Errorf("ascending sort:\n%s", strings.Join(pretty.Diff(expected, got), "\n"))
	}

	desc := append([]tree.Datums(nil), rows...)
	sortRows(desc, []exec.SortKey{{Col: 0, Descending: true}, {Col: 1, Descending: true}})
	expected = []string{"(2, 'd')", "(2, 'a')", "(1, 'c')", "(NULL, 'b')"}
	if got := rowStrings(desc); !cmp.Equal(expected, got) {
		t.Errorf("descending sort:\n%s", strings.Join(pretty.Diff(expected, got), "\n"))
	}
}

// TestRunHandWrittenPipeline runs a pipeline that reads a slot before it is
// declared and checks that the failure is reported as an error.
func TestRunHandWrittenPipeline(t *testing.T) {
	defer log.Scope(t).Close(t)

	root := exec.NewBlock(nil)
	root.Append(&exec.Emit{Row: &exec.SlotRef{Slot: 0}})
	_, err := Run(context.Background(), &exec.Pipeline{Root: root, NumSlots: 1}, nil /* tables */)
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)

	root = exec.NewBlock(nil)
	arr := root.Append(&exec.Declare{Slot: 0, Init: &exec.NewArray{}})
	loop := exec.NewBlock(root)
	loop.Append(&exec.Append{Array: 0, Row: &exec.MakeRow{Fields: []exec.Expr{
		&exec.Arith{Op: tree.Mult, Left: &exec.FieldRef{Slot: 1, Field: 0}, Right: &exec.Const{Value: dint(10)}},
	}}})
	root.Append(&exec.Loop{Var: 1, Source: &exec.ValuesSource{Rows: []tree.Datums{{dint(1)}, {dint(2)}}}, Body: loop})
	root.Append(&exec.EmitAll{Array: 0})
	// A declaration inserted at a remembered cursor runs before everything
	// appended after it.
	root.InsertAfter(&exec.Declare{Slot: 2, Init: &exec.Const{Value: dint(7)}}, arr)

	rows, err := Run(context.Background(), &exec.Pipeline{Root: root, NumSlots: 3}, nil /* tables */)
	require.NoError(t, err)
	require.Equal(t, []string{"(10)", "(20)"}, rowStrings(rows))
}
