// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package correl

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestResolveImmediately(t *testing.T) {
	r := NewResolver[string, int]()
	require.True(t, r.Bind("$cor0", 7))

	var got int
	require.True(t, r.Resolve("$cor0", Lookup{Offset: 1, Chain: 1, IsParent: true}, func(b int) { got = b }))
	require.Equal(t, 7, got)
	require.NoError(t, r.Check())
}

func TestDeferredLookups(t *testing.T) {
	r := NewResolver[string, int]()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		immediate := r.Resolve("$cor0", Lookup{Offset: i, Chain: 2}, func(b int) {
			order = append(order, i*100+b)
		})
		require.False(t, immediate)
	}
	require.True(t, r.HasPending("$cor0"))
	require.Equal(t, 3, r.Pending())

	err := r.Check()
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))

	// Binding resolves every deferred lookup in one step, in order.
	require.True(t, r.Bind("$cor0", 5))
	require.Equal(t, []int{5, 105, 205}, order)
	require.Equal(t, 0, r.Pending())
	require.False(t, r.HasPending("$cor0"))
	require.NoError(t, r.Check())
}

func TestFirstProducerWins(t *testing.T) {
	r := NewResolver[string, string]()
	var got []string
	r.Resolve("x", Lookup{}, func(b string) { got = append(got, b) })

	require.True(t, r.Bind("x", "first"))
	require.False(t, r.Bind("x", "second"))
	r.Resolve("x", Lookup{}, func(b string) { got = append(got, b) })

	require.Equal(t, []string{"first", "first"}, got)
	b, ok := r.Binding("x")
	require.True(t, ok)
	require.Equal(t, "first", b)
}

func TestCheckReportsFirstKey(t *testing.T) {
	type scope struct{ name string }
	a, b := &scope{name: "a"}, &scope{name: "b"}
	r := NewResolver[*scope, int]()
	r.Resolve(b, Lookup{Offset: 3, Chain: 1, IsParent: true}, func(int) {})
	r.Resolve(a, Lookup{Offset: 0, Chain: 1, IsParent: true}, func(int) {})
	r.Bind(a, 1)

	err := r.Check()
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 unresolved correlation lookups")
	require.Contains(t, err.Error(), "offset 3")
}
