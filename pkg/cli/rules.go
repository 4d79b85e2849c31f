// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"context"
	"strconv"

	"github.com/heplan/heplan/pkg/sql/opt/compiler"
	"github.com/heplan/heplan/pkg/sql/opt/rule"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [<plan.yaml>]",
	Short: "list rules or show rule statistics",
	Long: `
Without arguments, lists the standard rules. With a plan file, compiles it
and shows how often each rule was tried, matched and applied.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	c, err := compiler.NewContext()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		var rows [][]string
		c.Registry.Ascend(func(r *rule.Rule) bool {
			conv := ""
			if r.Convert != nil {
				conv = r.Convert.From.String() + " -> " + r.Convert.To.String()
			}
			rows = append(rows, []string{r.Name, string(r.Class), conv})
			return true
		})
		printTable(w, []string{"rule", "class", "conversion"}, rows)
		return nil
	}

	spec, catalog, err := loadPlanFile(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	res, err := c.Compile(context.Background(), catalog, spec.Query, cfg, compiler.Options{SkipLowering: true})
	if err != nil {
		return err
	}
	var rows [][]string
	for _, s := range res.RuleStats {
		if s.Attempts == 0 {
			continue
		}
		rows = append(rows, []string{
			s.Name, strconv.Itoa(s.Attempts), strconv.Itoa(s.Matches), strconv.Itoa(s.Applications),
		})
	}
	printTable(w, []string{"rule", "attempts", "matches", "applications"}, rows)
	return nil
}
