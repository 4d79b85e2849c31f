// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package compiler

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/opt/exec/execbuilder"
	"github.com/heplan/heplan/pkg/sql/opt/hep"
	"github.com/heplan/heplan/pkg/sql/opt/xform"
	"gopkg.in/yaml.v3"
)

// RightJoinPolicy decides how right outer joins are compiled.
type RightJoinPolicy string

const (
	// SwapRightJoins rewrites right joins as left joins with swapped inputs
	// under a projection restoring the column order.
	SwapRightJoins RightJoinPolicy = "swap"
	// NativeRightJoins lowers right joins directly.
	NativeRightJoins RightJoinPolicy = "native"
)

// Config is the configuration of a compilation. It is usually read from a
// YAML file:
//
//	max_fixpoint_iterations: 100
//	max_pass_applications: 10000
//	terminal_convention: iterator
//	right_join_policy: swap
//	eager_bind_all: false
//	check_cycles: false
//	disable_rules: [MergeCalc]
type Config struct {
	MaxFixpointIterations int             `yaml:"max_fixpoint_iterations"`
	MaxPassApplications   int             `yaml:"max_pass_applications"`
	TerminalConvention    string          `yaml:"terminal_convention"`
	RightJoinPolicy       RightJoinPolicy `yaml:"right_join_policy"`
	EagerBindAll          bool            `yaml:"eager_bind_all"`
	CheckCycles           bool            `yaml:"check_cycles"`
	DisableRules          []string        `yaml:"disable_rules"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	hc := hep.DefaultConfig()
	return Config{
		MaxFixpointIterations: hc.MaxFixpointIterations,
		MaxPassApplications:   hc.MaxPassApplications,
		TerminalConvention:    hc.TerminalConvention.String(),
		RightJoinPolicy:       NativeRightJoins,
	}
}

// ParseConfig decodes a YAML configuration. Fields that are not set keep
// their default value, so an empty document is the default configuration;
// unknown fields are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "parsing compiler config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading compiler config")
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	switch c.RightJoinPolicy {
	case SwapRightJoins, NativeRightJoins:
	default:
		return errors.Newf("right join policy must be %q or %q, got %q",
			SwapRightJoins, NativeRightJoins, c.RightJoinPolicy)
	}
	hc, err := c.HepConfig()
	if err != nil {
		return err
	}
	return hc.Validate()
}

// HepConfig returns the planner configuration.
func (c *Config) HepConfig() (hep.Config, error) {
	terminal, err := opt.ConventionFromString(c.TerminalConvention)
	if err != nil {
		return hep.Config{}, errors.Wrap(err, "terminal convention")
	}
	return hep.Config{
		MaxFixpointIterations: c.MaxFixpointIterations,
		MaxPassApplications:   c.MaxPassApplications,
		TerminalConvention:    terminal,
		DisabledRules:         c.DisableRules,
		CheckCycles:           c.CheckCycles,
	}, nil
}

// ProgramOptions returns the options of the default program.
func (c *Config) ProgramOptions() xform.ProgramOptions {
	return xform.ProgramOptions{SwapRightJoins: c.RightJoinPolicy == SwapRightJoins}
}

// ExecConfig returns the lowering configuration.
func (c *Config) ExecConfig() execbuilder.Config {
	return execbuilder.Config{EagerBindAll: c.EagerBindAll}
}
