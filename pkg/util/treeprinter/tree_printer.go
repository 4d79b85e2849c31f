// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package treeprinter renders a tree of strings with box-drawing edges:
//
//	root
//	 ├── child 1
//	 │    └── grandchild
//	 └── child 2
package treeprinter

import (
	"fmt"
	"strings"
)

const (
	edgeLink = " ├── "
	edgeLast = " └── "
	padLink  = " │   "
	padLast  = "     "
)

// Node is a handle associated with a specific depth in a tree.
type Node struct {
	text     string
	children []*Node
}

// New creates a tree printer and returns a sentinel node reference which
// should be used to add the root. Only one root may be added.
func New() Node {
	return Node{}
}

// Child adds a node as a child of the given node.
func (n *Node) Child(text string) *Node {
	c := &Node{text: text}
	n.children = append(n.children, c)
	return c
}

// Childf adds a node as a child of the given node, formatting the text.
func (n *Node) Childf(format string, args ...interface{}) *Node {
	return n.Child(fmt.Sprintf(format, args...))
}

// String returns the tree as a string. It must be called on the sentinel node
// returned by New.
func (n *Node) String() string {
	var buf strings.Builder
	for _, root := range n.children {
		buf.WriteString(root.text)
		buf.WriteByte('\n')
		root.format(&buf, "")
	}
	return buf.String()
}

func (n *Node) format(buf *strings.Builder, prefix string) {
	for i, c := range n.children {
		last := i == len(n.children)-1
		buf.WriteString(prefix)
		if last {
			buf.WriteString(edgeLast)
		} else {
			buf.WriteString(edgeLink)
		}
		buf.WriteString(c.text)
		buf.WriteByte('\n')
		if last {
			c.format(buf, prefix+padLast)
		} else {
			c.format(buf, prefix+padLink)
		}
	}
}
