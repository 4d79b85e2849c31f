// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// ColSet is a set of column ordinals. The zero value is an empty set.
type ColSet struct {
	set *bitset.BitSet
}

// MakeColSet returns a set containing the given ordinals.
func MakeColSet(cols ...int) ColSet {
	var s ColSet
	for _, c := range cols {
		s.Add(c)
	}
	return s
}

// ColRange returns the set of ordinals in [lo, hi).
func ColRange(lo, hi int) ColSet {
	var s ColSet
	for i := lo; i < hi; i++ {
		s.Add(i)
	}
	return s
}

// Add adds an ordinal to the set.
func (s *ColSet) Add(col int) {
	if s.set == nil {
		s.set = bitset.New(uint(col + 1))
	}
	s.set.Set(uint(col))
}

// Contains returns true if the set contains the ordinal.
func (s ColSet) Contains(col int) bool {
	return s.set != nil && s.set.Test(uint(col))
}

// Len returns the number of ordinals in the set.
func (s ColSet) Len() int {
	if s.set == nil {
		return 0
	}
	return int(s.set.Count())
}

// Empty returns true if the set is empty.
func (s ColSet) Empty() bool { return s.Len() == 0 }

// ForEach calls fn for each ordinal in increasing order.
func (s ColSet) ForEach(fn func(col int)) {
	if s.set == nil {
		return
	}
	for i, ok := s.set.NextSet(0); ok; i, ok = s.set.NextSet(i + 1) {
		fn(int(i))
	}
}

// SubsetOf returns true if every ordinal of s is in other.
func (s ColSet) SubsetOf(other ColSet) bool {
	if s.Empty() {
		return true
	}
	if other.set == nil {
		return false
	}
	return other.set.IsSuperSet(s.set)
}

// Intersects returns true if the sets have an ordinal in common.
func (s ColSet) Intersects(other ColSet) bool {
	if s.set == nil || other.set == nil {
		return false
	}
	return s.set.IntersectionCardinality(other.set) > 0
}

// Ordered returns the ordinals in increasing order.
func (s ColSet) Ordered() []int {
	var res []int
	s.ForEach(func(col int) { res = append(res, col) })
	return res
}

func (s ColSet) String() string {
	var buf strings.Builder
	buf.WriteByte('(')
	s.ForEach(func(col int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(col))
	})
	buf.WriteByte(')')
	return buf.String()
}
