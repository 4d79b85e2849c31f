// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log implements leveled, context-tagged logging. Arguments are
// formatted with redaction markers so that unsafe values can be stripped
// from reports; identifiers that are known to be safe should be wrapped in
// redact.Safe.
package log

import "context"

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level Level) bool {
	return VDepth(level, 1)
}

// VDepth reports whether verbosity is at least level. The depth argument is
// kept for call-site compatibility and is not used for per-file filtering.
func VDepth(level Level, depth int) bool {
	return mainLog.verbosity.Load() >= int32(level)
}

// ExpensiveLogEnabled is used to test whether effort should be used to
// produce log messages whose construction has a measurable cost.
func ExpensiveLogEnabled(ctx context.Context, level Level) bool {
	return V(level)
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, format, args)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_WARNING, format, args)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_ERROR, format, args)
}

// VEventf logs an INFO entry if the verbosity is at least level.
func VEventf(ctx context.Context, level Level, format string, args ...interface{}) {
	if VDepth(level, 1) {
		addStructured(ctx, Severity_INFO, format, args)
	}
}

// VInfof is an alias of VEventf.
func VInfof(ctx context.Context, level Level, format string, args ...interface{}) {
	VEventf(ctx, level, format, args...)
}
