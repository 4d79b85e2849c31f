// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowexec

import (
	"sort"

	"github.com/heplan/heplan/pkg/sql/opt/exec"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
)

// sortRows sorts rows in place by keys. NULLs sort before other values in
// ascending order and after them in descending order. The sort is stable.
func sortRows(rows []tree.Datums, keys []exec.SortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := rows[i][k.Col].Compare(rows[j][k.Col])
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
