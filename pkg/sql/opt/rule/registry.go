// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/heplan/heplan/pkg/sql/opt"
)

// Registry indexes rules by name and by class. Rules are registered at
// startup; once Freeze is called the registry is read-only and may be shared
// by concurrent compilations.
type Registry struct {
	byName  *btree.BTree
	classes map[Class][]*Rule
	// converters is indexed by source and target convention.
	converters [opt.NumConventions][opt.NumConventions][]*Rule
	frozen     bool
}

type ruleItem struct {
	name string
	rule *Rule
}

// Less implements btree.Item.
func (i *ruleItem) Less(than btree.Item) bool {
	return i.name < than.(*ruleItem).name
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  btree.New(8 /* degree */),
		classes: make(map[Class][]*Rule),
	}
}

// Register adds rules to the registry. Names must be unique.
func (r *Registry) Register(rules ...*Rule) error {
	if r.frozen {
		return errors.AssertionFailedf("cannot register rules in a frozen registry")
	}
	for _, rl := range rules {
		if err := rl.validate(); err != nil {
			return err
		}
		if r.byName.Has(&ruleItem{name: rl.Name}) {
			return errors.AssertionFailedf("rule %s is already registered", rl.Name)
		}
		r.byName.ReplaceOrInsert(&ruleItem{name: rl.Name, rule: rl})
		if rl.Class != "" {
			r.classes[rl.Class] = append(r.classes[rl.Class], rl)
		}
		if c := rl.Convert; c != nil {
			r.converters[c.From][c.To] = append(r.converters[c.From][c.To], rl)
		}
	}
	return nil
}

// MustRegister is like Register but panics on error. It is intended for
// package initialization.
func (r *Registry) MustRegister(rules ...*Rule) {
	if err := r.Register(rules...); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen returns true once Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return r.byName.Len()
}

// Lookup returns the rule with the given name.
func (r *Registry) Lookup(name string) (*Rule, bool) {
	it := r.byName.Get(&ruleItem{name: name})
	if it == nil {
		return nil, false
	}
	return it.(*ruleItem).rule, true
}

// Class returns the rules of a class in registration order.
func (r *Registry) Class(c Class) []*Rule {
	return r.classes[c]
}

// Converters returns the converter rules from one convention to another.
func (r *Registry) Converters(from, to opt.Convention) []*Rule {
	return r.converters[from][to]
}

// Ascend calls fn for every rule in name order until fn returns false.
func (r *Registry) Ascend(fn func(*Rule) bool) {
	r.byName.Ascend(func(it btree.Item) bool {
		return fn(it.(*ruleItem).rule)
	})
}
