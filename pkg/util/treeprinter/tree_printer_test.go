// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package treeprinter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreePrinter(t *testing.T) {
	tp := New()
	root := tp.Child("root")
	c1 := root.Child("1")
	c1.Child("1.1")
	c12 := c1.Child("1.2")
	c12.Childf("1.2.%d", 1)
	root.Child("2")

	exp := `root
 ├── 1
 │    ├── 1.1
 │    └── 1.2
 │         └── 1.2.1
 └── 2
`
	require.Equal(t, exp, tp.String())
}
