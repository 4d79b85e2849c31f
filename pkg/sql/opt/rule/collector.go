// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import "github.com/cockroachdb/errors"

// Collector captures rules contributed by plugins. Rules added between Begin
// and End go to a named collection rather than being applied immediately; a
// later FireRuleCollection instruction fires them. A Collector belongs to a
// single compilation.
type Collector struct {
	// registering is the name of the collection being filled, or empty.
	registering string
	collections map[string][]*Rule
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{collections: make(map[string][]*Rule)}
}

// Begin starts a registration phase for the named collection.
func (c *Collector) Begin(name string) error {
	if name == "" {
		return errors.AssertionFailedf("plugin collection has no name")
	}
	if c.registering != "" {
		return errors.AssertionFailedf(
			"cannot register %s while registering %s", errors.Safe(name), errors.Safe(c.registering))
	}
	c.registering = name
	return nil
}

// End finishes the current registration phase.
func (c *Collector) End() error {
	if c.registering == "" {
		return errors.AssertionFailedf("no plugin registration in progress")
	}
	c.registering = ""
	return nil
}

// Registering returns the name of the collection being registered, if any.
func (c *Collector) Registering() (string, bool) {
	return c.registering, c.registering != ""
}

// Add adds a rule to the collection being registered.
func (c *Collector) Add(r *Rule) error {
	if c.registering == "" {
		return errors.AssertionFailedf("rule %s added outside of a plugin registration", r.Name)
	}
	if err := r.validate(); err != nil {
		return err
	}
	for _, existing := range c.collections[c.registering] {
		if existing.Name == r.Name {
			return errors.AssertionFailedf("rule %s is already in collection %s",
				r.Name, errors.Safe(c.registering))
		}
	}
	c.collections[c.registering] = append(c.collections[c.registering], r)
	return nil
}

// Collection returns the rules of a collection. Unknown collections are
// empty.
func (c *Collector) Collection(name string) []*Rule {
	if c == nil {
		return nil
	}
	return c.collections[name]
}
