// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"fmt"
	"io"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/olekukonko/tablewriter"
)

// printTable writes rows as a table with the given header, followed by the
// row count.
func printTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
	s := "s"
	if len(rows) == 1 {
		s = ""
	}
	fmt.Fprintf(w, "(%d row%s)\n", len(rows), s)
}

// printResult writes the result rows of a pipeline.
func printResult(w io.Writer, cols *opt.RowSchema, rows []tree.Datums) {
	header := make([]string, cols.Width())
	for i := range header {
		header[i] = cols.Column(i).Name
	}
	strs := make([][]string, len(rows))
	for i, r := range rows {
		strs[i] = make([]string, len(r))
		for j, d := range r {
			strs[i][j] = d.String()
		}
	}
	printTable(w, header, strs)
}
