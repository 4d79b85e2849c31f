// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tree

import (
	"testing"

	"github.com/heplan/heplan/pkg/sql/types"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	dec, err := ParseDDecimal("2.5")
	require.NoError(t, err)

	require.Equal(t, -1, NewDInt(2).Compare(dec))
	require.Equal(t, 1, dec.Compare(NewDInt(2)))
	require.Equal(t, 0, NewDString("a").Compare(NewDString("a")))
	require.Equal(t, -1, DNull.Compare(NewDInt(0)))
	require.Equal(t, 1, NewDInt(0).Compare(DNull))
	require.Equal(t, 0, DNull.Compare(DNull))
	require.Equal(t, -1, DBoolFalse.Compare(DBoolTrue))

	require.Panics(t, func() { NewDInt(1).Compare(NewDString("1")) })
}

func TestDatumsKey(t *testing.T) {
	dec, err := ParseDDecimal("2.00")
	require.NoError(t, err)
	require.Equal(t, Datums{NewDInt(2)}.Key(), Datums{dec}.Key())
	require.NotEqual(t, Datums{NewDString("2")}.Key(), Datums{NewDInt(2)}.Key())
	require.NotEqual(t, Datums{DNull}.Key(), Datums{NewDString("null")}.Key())
	require.Equal(t, "(1, 'it''s', NULL)", Datums{NewDInt(1), NewDString("it's"), DNull}.String())
}

func TestParseLiteral(t *testing.T) {
	for _, tc := range []struct {
		in  string
		typ *types.T
		out string
	}{
		{"42", types.Int, "42"},
		{"-3", types.Int, "-3"},
		{"1.50", types.Decimal, "1.50"},
		{"'x'", types.String, "'x'"},
		{"TRUE", types.Bool, "true"},
		{"null", types.Unknown, "NULL"},
	} {
		d, err := ParseLiteral(tc.in)
		require.NoError(t, err)
		require.Same(t, tc.typ, d.ResolvedType())
		require.Equal(t, tc.out, d.String())
	}
	_, err := ParseLiteral("abc")
	require.Error(t, err)
}
