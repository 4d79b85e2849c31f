// Copyright 2023 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package list

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func values(l *List[string]) []string {
	var res []string
	for e := l.Front(); e != nil; e = e.Next() {
		res = append(res, e.Value)
	}
	return res
}

func TestStableHandles(t *testing.T) {
	var l List[string]
	a := l.PushBack("a")
	c := l.PushBack("c")
	// Inserting around a handle keeps it valid.
	l.InsertAfter("b", a)
	l.InsertAfter("a2", a)
	require.Equal(t, []string{"a", "a2", "b", "c"}, values(&l))
	require.Equal(t, "c", l.Back().Value)
	require.Equal(t, c, l.Back())

	require.Equal(t, "a", l.Remove(a))
	require.Equal(t, 3, l.Len())
	require.Nil(t, l.InsertAfter("x", a))
	require.Equal(t, []string{"a2", "b", "c"}, values(&l))
	require.Equal(t, "a2", c.Prev().Prev().Value)
}
