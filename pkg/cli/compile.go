// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt/cat"
	"github.com/heplan/heplan/pkg/sql/opt/compiler"
	"github.com/heplan/heplan/pkg/sql/opt/hep"
	"github.com/heplan/heplan/pkg/sql/opt/optbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/rowexec"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile <plan.yaml>",
	Short: "compile a plan file",
	Long: `
Builds the query of a plan file, rewrites it with the default program and
lowers it. Prints the logical plan, the optimized plan and the pipeline.
`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	w := cmd.OutOrStdout()
	spec, catalog, err := loadPlanFile(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := compiler.NewContext()
	if err != nil {
		return err
	}

	var steps stepRecorder
	opts := compiler.Options{SkipLowering: compileCtx.noLower || compileCtx.dot}
	if compileCtx.steps {
		opts.OnAppliedRule = steps.record
	}
	res, err := c.Compile(ctx, catalog, spec.Query, cfg, opts)
	if err != nil {
		return err
	}

	if compileCtx.dot {
		fmt.Fprint(w, plan.FormatDot(res.Graph))
		return nil
	}
	fmt.Fprintf(w, "logical plan:\n%s\n", res.Logical)
	if compileCtx.steps {
		steps.prev = res.Logical
		steps.print(w)
	}
	fmt.Fprintf(w, "optimized plan (%d transformations):\n%s\n", res.Transformations, plan.Format(res.Graph, 0))
	if res.Pipeline == nil {
		return nil
	}
	fmt.Fprintf(w, "pipeline:\n%s", res.Pipeline)
	if !compileCtx.run {
		return nil
	}
	rows, err := rowexec.Run(ctx, res.Pipeline, catalog)
	if err != nil {
		return errors.Wrap(err, "running pipeline")
	}
	fmt.Fprintln(w)
	printResult(w, res.Pipeline.Columns, rows)
	return nil
}

func loadPlanFile(path string) (*optbuilder.PlanSpec, *cat.MemCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	spec, err := optbuilder.ParsePlanSpec(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s", path)
	}
	catalog, err := spec.Catalog()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s", path)
	}
	return spec, catalog, nil
}

func loadConfig() (compiler.Config, error) {
	if compileCtx.configPath == "" {
		return compiler.DefaultConfig(), nil
	}
	return compiler.LoadConfig(compileCtx.configPath)
}

// stepRecorder keeps the plan after every transformation.
type stepRecorder struct {
	prev  string
	steps []step
}

type step struct {
	applied hep.AppliedRule
	plan    string
}

func (r *stepRecorder) record(g *plan.Graph, applied hep.AppliedRule) {
	r.steps = append(r.steps, step{applied: applied, plan: plan.Format(g, 0)})
}

// print writes every step as a unified diff against the previous plan.
func (r *stepRecorder) print(w io.Writer) {
	for i, s := range r.steps {
		name := "adapter"
		if s.applied.Rule != nil {
			name = s.applied.Rule.Name
		}
		fmt.Fprintf(w, "step %d: %s (node %d -> node %d)\n", i+1, name, s.applied.Node, s.applied.Replacement)
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:       difflib.SplitLines(r.prev),
			B:       difflib.SplitLines(s.plan),
			Context: 1,
		})
		if err != nil {
			fmt.Fprintf(w, "  %v\n", err)
		} else if diff == "" {
			fmt.Fprintln(w, "  no visible change")
		}
		fmt.Fprintln(w, diff)
		r.prev = s.plan
	}
}
