// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package eval

import (
	"math"
	"testing"

	"github.com/heplan/heplan/pkg/sql/sem/tree"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	res, err := Compare(tree.LT, tree.NewDInt(1), tree.NewDInt(2))
	require.NoError(t, err)
	require.True(t, IsTrue(res))

	res, err = Compare(tree.EQ, tree.NewDInt(1), tree.DNull)
	require.NoError(t, err)
	require.Equal(t, tree.DNull, res)

	_, err = Compare(tree.EQ, tree.NewDInt(1), tree.NewDString("1"))
	require.Error(t, err)
}

func TestBinaryOp(t *testing.T) {
	res, err := BinaryOp(tree.Plus, tree.NewDInt(1), tree.NewDInt(2))
	require.NoError(t, err)
	require.Equal(t, "3", res.String())

	dec, err := tree.ParseDDecimal("0.5")
	require.NoError(t, err)
	res, err = BinaryOp(tree.Mult, tree.NewDInt(3), dec)
	require.NoError(t, err)
	require.Equal(t, "1.5", res.String())

	_, err = BinaryOp(tree.Plus, tree.NewDInt(math.MaxInt64), tree.NewDInt(1))
	require.EqualError(t, err, "integer out of range")
	_, err = BinaryOp(tree.Mult, tree.NewDInt(math.MinInt64), tree.NewDInt(-1))
	require.EqualError(t, err, "integer out of range")
}

func TestThreeValuedLogic(t *testing.T) {
	T, F, N := tree.DBoolTrue, tree.DBoolFalse, tree.DNull
	require.Equal(t, F, And(N, F))
	require.Equal(t, N, And(N, T))
	require.Equal(t, T, Or(N, T))
	require.Equal(t, N, Or(N, F))
	require.Equal(t, N, Not(N))
	require.Equal(t, F, Not(T))
	require.False(t, IsTrue(N))
}
