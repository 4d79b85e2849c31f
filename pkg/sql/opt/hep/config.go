// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hep

import (
	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
)

// Config bounds and parameterizes a Planner.
type Config struct {
	// MaxFixpointIterations bounds the passes of a group and the runs of a
	// subprogram.
	MaxFixpointIterations int

	// MaxPassApplications bounds the successful applications of a single
	// pass, which matters for the arbitrary match order.
	MaxPassApplications int

	// TerminalConvention is the convention the root of the plan must have.
	TerminalConvention opt.Convention

	// DisabledRules names rules that never fire.
	DisabledRules []string

	// CheckCycles verifies that the plan graph is acyclic after every
	// transformation.
	CheckCycles bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxFixpointIterations: 100,
		MaxPassApplications:   10000,
		TerminalConvention:    opt.IteratorConvention,
	}
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	if c.MaxFixpointIterations <= 0 {
		return errors.Newf("max fixpoint iterations must be positive, got %d", c.MaxFixpointIterations)
	}
	if c.MaxPassApplications <= 0 {
		return errors.Newf("max pass applications must be positive, got %d", c.MaxPassApplications)
	}
	if !c.TerminalConvention.IsPhysical() {
		return errors.Newf("terminal convention must be physical, got %s", c.TerminalConvention)
	}
	return nil
}
