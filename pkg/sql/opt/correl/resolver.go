// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package correl wires references to values produced in enclosing scopes.
// A reference may be made before the value's producer exists; such forward
// references are recorded as deferred lookups and resolved together once the
// producer is bound.
package correl

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Lookup describes a reference to a field of the row produced in an
// enclosing scope.
type Lookup struct {
	// Offset is the ordinal of the referenced field in the producer's row.
	Offset int

	// Chain is the number of scope boundaries between the reference and the
	// producer.
	Chain int

	// IsParent is true if the producer belongs to the immediately enclosing
	// scope.
	IsParent bool
}

func (l Lookup) String() string {
	return fmt.Sprintf("offset %d, %d scopes up", l.Offset, l.Chain)
}

type deferred[B any] struct {
	Lookup
	resolve func(B)
}

// Resolver maps keys to the bindings producing them. When several producers
// are bound for the same key, the first one wins and later ones are ignored.
// A Resolver belongs to a single compilation.
type Resolver[K comparable, B any] struct {
	bindings map[K]B
	pending  map[K][]deferred[B]
	// order lists the keys with pending lookups in the order they were first
	// deferred, so that errors are deterministic.
	order    []K
	nPending int
}

// NewResolver returns an empty resolver.
func NewResolver[K comparable, B any]() *Resolver[K, B] {
	return &Resolver[K, B]{
		bindings: make(map[K]B),
		pending:  make(map[K][]deferred[B]),
	}
}

// Bind records b as the producer for key and resolves every lookup deferred
// on key, in the order they were made. It returns false, and does nothing, if
// key already has a producer.
func (r *Resolver[K, B]) Bind(key K, b B) bool {
	if _, ok := r.bindings[key]; ok {
		return false
	}
	r.bindings[key] = b
	lookups := r.pending[key]
	delete(r.pending, key)
	r.nPending -= len(lookups)
	for _, l := range lookups {
		l.resolve(b)
	}
	return true
}

// Binding returns the producer bound for key.
func (r *Resolver[K, B]) Binding(key K) (B, bool) {
	b, ok := r.bindings[key]
	return b, ok
}

// Resolve calls fn with the producer for key: immediately if one is bound,
// otherwise when it is. It returns true if fn was called immediately.
func (r *Resolver[K, B]) Resolve(key K, l Lookup, fn func(B)) bool {
	if b, ok := r.bindings[key]; ok {
		fn(b)
		return true
	}
	if _, ok := r.pending[key]; !ok {
		r.order = append(r.order, key)
	}
	r.pending[key] = append(r.pending[key], deferred[B]{Lookup: l, resolve: fn})
	r.nPending++
	return false
}

// HasPending returns true if lookups on key are waiting for a producer.
func (r *Resolver[K, B]) HasPending(key K) bool {
	return len(r.pending[key]) > 0
}

// Pending returns the number of unresolved lookups.
func (r *Resolver[K, B]) Pending() int {
	return r.nPending
}

// Check returns an assertion failure if any lookup is unresolved. Lookups
// left pending at the end of a pass indicate that a producer was never
// built, which is a bug in the rules or program that shaped the plan.
func (r *Resolver[K, B]) Check() error {
	if r.nPending == 0 {
		return nil
	}
	for _, key := range r.order {
		if lookups := r.pending[key]; len(lookups) > 0 {
			return errors.AssertionFailedf(
				"%d unresolved correlation lookups; first is for %v (%s)",
				r.nPending, key, lookups[0].Lookup)
		}
	}
	return errors.AssertionFailedf("%d unresolved correlation lookups", r.nPending)
}
