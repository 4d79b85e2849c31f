// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// heplan compiles YAML plan files with the heuristic rule planner.
package main

import "github.com/heplan/heplan/pkg/cli"

func main() {
	cli.Main()
}
