// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"github.com/heplan/heplan/pkg/cli/cliflags"
	"github.com/spf13/pflag"
)

// cliCtx holds the flags shared by every command.
var cliCtx struct {
	verbosity int
}

// compileCtx holds the flags of the compile and rules commands.
var compileCtx struct {
	configPath string
	steps      bool
	dot        bool
	run        bool
	noLower    bool
}

// setCliContextDefaults resets the flag values, so that commands can be
// run more than once in a process.
func setCliContextDefaults() {
	cliCtx.verbosity = 0
	compileCtx.configPath = ""
	compileCtx.steps = false
	compileCtx.dot = false
	compileCtx.run = false
	compileCtx.noLower = false
}

func stringFlag(f *pflag.FlagSet, valPtr *string, flagInfo cliflags.FlagInfo) {
	f.StringVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, *valPtr, flagInfo.Description)
}

func boolFlag(f *pflag.FlagSet, valPtr *bool, flagInfo cliflags.FlagInfo) {
	f.BoolVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, *valPtr, flagInfo.Description)
}

func intFlag(f *pflag.FlagSet, valPtr *int, flagInfo cliflags.FlagInfo) {
	f.IntVarP(valPtr, flagInfo.Name, flagInfo.Shorthand, *valPtr, flagInfo.Description)
}

func init() {
	intFlag(heplanCmd.PersistentFlags(), &cliCtx.verbosity, cliflags.Verbosity)

	for _, cmd := range []*pflag.FlagSet{compileCmd.Flags(), rulesCmd.Flags()} {
		stringFlag(cmd, &compileCtx.configPath, cliflags.Config)
	}
	f := compileCmd.Flags()
	boolFlag(f, &compileCtx.steps, cliflags.Steps)
	boolFlag(f, &compileCtx.dot, cliflags.Dot)
	boolFlag(f, &compileCtx.run, cliflags.Run)
	boolFlag(f, &compileCtx.noLower, cliflags.NoLower)
}
