// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package compiler ties the pieces of a compilation together: it builds the
// logical plan of a query, rewrites it with the default heuristic program
// and lowers the result into an executable pipeline.
package compiler

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/cat"
	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/opt/exec/execbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/hep"
	"github.com/heplan/heplan/pkg/sql/opt/optbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/plan"
	"github.com/heplan/heplan/pkg/sql/opt/props"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
	"github.com/heplan/heplan/pkg/sql/opt/xform"
	"github.com/heplan/heplan/pkg/util/log"
)

// Context holds the state shared by the compilations of a process. It is
// safe for concurrent use.
type Context struct {
	// Registry is the frozen set of standard rules.
	Registry *rule.Registry
	// Schemas interns the row schemas of every plan.
	Schemas *opt.SchemaCache
	// Metrics counts planner activity; it may be nil.
	Metrics *hep.Metrics

	nextID atomic.Int64
}

// NewContext returns a Context with the standard rules and fresh metrics.
func NewContext() (*Context, error) {
	reg, err := xform.NewRegistry()
	if err != nil {
		return nil, err
	}
	reg.Freeze()
	return &Context{
		Registry: reg,
		Schemas:  opt.NewSchemaCache(),
		Metrics:  hep.NewMetrics(),
	}, nil
}

// Options are per-compilation hooks.
type Options struct {
	// OnAppliedRule is called after every transformation, with the graph
	// already updated.
	OnAppliedRule func(g *plan.Graph, applied hep.AppliedRule)

	// Plugins are registered in the plugin collection of the default
	// program.
	Plugins []*rule.Rule

	// SkipLowering stops the compilation once the plan is optimized.
	SkipLowering bool
}

// Result is the outcome of a compilation.
type Result struct {
	// Logical is the plan before any rewrite, formatted.
	Logical string
	// Graph is the optimized, frozen plan.
	Graph *plan.Graph
	// Pipeline is the lowered plan; it is nil if lowering was skipped.
	Pipeline *exec.Pipeline

	Transformations int
	RuleStats       []hep.RuleStat
}

// Compile builds, optimizes and lowers a query against catalog.
func (c *Context) Compile(
	ctx context.Context, catalog cat.Catalog, q *optbuilder.QuerySpec, cfg Config, opts Options,
) (*Result, error) {
	id := c.nextID.Add(1)
	ctx = logtags.AddTag(ctx, "compile", id)
	c.Metrics.CompilationStarted()

	res, err := c.compile(ctx, catalog, q, cfg, opts)
	if err != nil {
		reason := failureReason(err)
		c.Metrics.CompilationFailed(reason)
		log.VEventf(ctx, 1, "compilation failed (%s): %v", reason, err)
		return nil, err
	}
	log.VEventf(ctx, 1, "compiled with %d transformations", res.Transformations)
	return res, nil
}

func (c *Context) compile(
	ctx context.Context, catalog cat.Catalog, q *optbuilder.QuerySpec, cfg Config, opts Options,
) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hepCfg, err := cfg.HepConfig()
	if err != nil {
		return nil, err
	}

	f := plan.NewFactory(plan.New(), c.Schemas)
	if _, err := optbuilder.New(ctx, f, catalog).BuildSpec(q); err != nil {
		return nil, markBuild(err)
	}
	res := &Result{Logical: plan.Format(f.Graph(), 0)}

	p := hep.New(ctx, f, c.Registry, hepCfg)
	p.SetEstimator(props.NewEstimator(ctx, catalog))
	p.SetMetrics(c.Metrics)
	if opts.OnAppliedRule != nil {
		g := f.Graph()
		p.NotifyOnAppliedRule(func(a hep.AppliedRule) { opts.OnAppliedRule(g, a) })
	}
	if len(opts.Plugins) > 0 {
		if err := p.BeginPluginRegistration(xform.PluginCollection); err != nil {
			return nil, err
		}
		for _, r := range opts.Plugins {
			if err := p.AddRule(r); err != nil {
				return nil, err
			}
		}
		if err := p.EndPluginRegistration(); err != nil {
			return nil, err
		}
	}
	err = p.Run(xform.DefaultProgram(cfg.ProgramOptions()))
	res.Transformations = p.Transformations()
	res.RuleStats = p.RuleStats()
	if err != nil {
		return nil, err
	}
	res.Graph = f.Graph()

	if opts.SkipLowering {
		return res, nil
	}
	if res.Pipeline, err = execbuilder.Build(ctx, res.Graph, cfg.ExecConfig()); err != nil {
		return nil, err
	}
	return res, nil
}

var errBuild = errors.New("plan build failed")

func markBuild(err error) error { return errors.Mark(err, errBuild) }

// failureReason classifies a compilation error for metrics.
func failureReason(err error) string {
	var unconvertible *hep.UnconvertibleError
	switch {
	case errors.Is(err, errBuild):
		return "build"
	case errors.As(err, &unconvertible):
		return "unconvertible"
	case errors.Is(err, hep.ErrDidNotConverge):
		return "did_not_converge"
	case errors.HasAssertionFailure(err):
		return "assertion"
	}
	return "other"
}
