// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cli implements the heplan developer tool, which compiles plan
// files and shows what the rewrite rules did to them.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/heplan/heplan/pkg/util/log"
	"github.com/spf13/cobra"
)

var heplanCmd = &cobra.Command{
	Use:   "heplan [command] (flags)",
	Short: "heuristic query plan compiler",
	Long: `Compiles YAML plan files with the heuristic rule planner and lowers them
into executable pipelines.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cliCtx.verbosity > 0 {
			log.SetVModule(log.Level(cliCtx.verbosity))
		}
	},
}

func init() {
	cobra.EnableCommandSorting = false

	heplanCmd.AddCommand(
		compileCmd,
		rulesCmd,
	)
}

// Main is the entry point of the heplan binary.
func Main() {
	if err := Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// Run runs the command given by args, writing its output to w.
func Run(w io.Writer, args []string) error {
	setCliContextDefaults()
	heplanCmd.SetArgs(args)
	heplanCmd.SetOut(w)
	return heplanCmd.Execute()
}
