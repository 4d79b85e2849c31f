// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cliflags holds the names and descriptions of the command-line
// flags of the heplan tool.
package cliflags

// FlagInfo contains the static information for a CLI flag.
type FlagInfo struct {
	// Name of the flag as used on the command line.
	Name string

	// Shorthand is the short form of the flag (optional).
	Shorthand string

	// Description of the flag, printed by --help.
	Description string
}

var (
	Config = FlagInfo{
		Name: "config",
		Description: `Path of a YAML compiler configuration. Fields that are not set keep
their default value.`,
	}

	Steps = FlagInfo{
		Name:        "steps",
		Description: `Print a diff of the plan after every transformation.`,
	}

	Dot = FlagInfo{
		Name:        "dot",
		Description: `Print the optimized plan as a Graphviz digraph and nothing else.`,
	}

	Run = FlagInfo{
		Name:        "run",
		Description: `Run the lowered pipeline against the tables of the plan file.`,
	}

	NoLower = FlagInfo{
		Name:        "no-lower",
		Description: `Stop once the plan is optimized.`,
	}

	Verbosity = FlagInfo{
		Name:        "verbosity",
		Shorthand:   "v",
		Description: `Log verbosity. Level 2 logs every transformation, level 3 every binding.`,
	}
)
