// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

import (
	"context"
	"testing"

	"github.com/heplan/heplan/pkg/sql/opt"
	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/heplan/heplan/pkg/sql/types"
	"github.com/heplan/heplan/pkg/util/log"
	"github.com/stretchr/testify/require"
)

func TestMemCatalog(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	c := NewMemCatalog()
	require.NoError(t, c.AddTable(&MemTable{
		TabName: "t",
		Cols: []opt.Column{
			{Name: "a", Type: types.Int},
			{Name: "b", Type: types.String, Nullable: true},
		},
		Rows: []tree.Datums{{tree.NewDInt(1), tree.DNull}},
	}))
	require.NoError(t, c.AddTable(&MemTable{TabName: "s", Stats: 1000}))
	require.Error(t, c.AddTable(&MemTable{TabName: "t"}))
	require.Error(t, c.AddTable(&MemTable{}))
	require.Equal(t, []string{"s", "t"}, c.TableNames())

	tab, err := c.ResolveTable(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, 1.0, tab.RowCount())
	s, err := c.ResolveTable(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, 1000.0, s.RowCount())
	_, err = c.ResolveTable(ctx, "missing")
	require.Error(t, err)

	snapshot, err := c.Scan("t")
	require.NoError(t, err)
	require.NoError(t, c.Insert("t", tree.Datums{tree.NewDInt(2), tree.NewDString("x")}))
	require.Len(t, snapshot, 1)
	rows, err := c.Scan("t")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	testCases := []struct {
		row tree.Datums
		err string
	}{
		{row: tree.Datums{tree.NewDInt(3)}, err: "has 2 columns"},
		{row: tree.Datums{tree.DNull, tree.DNull}, err: "not-null constraint"},
		{row: tree.Datums{tree.NewDString("x"), tree.DNull}, err: "has type"},
	}
	for _, tc := range testCases {
		err := c.Insert("t", tc.row)
		require.Error(t, err)
		require.Contains(t, err.Error(), tc.err)
	}
	require.Error(t, c.Insert("missing", tree.Datums{}))
}
