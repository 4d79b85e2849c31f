// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "io"

// Level specifies a level of verbosity for V logs.
type Level int32

// SetVModule sets the global verbosity level. It returns a function that
// restores the previous level.
func SetVModule(level Level) (restore func()) {
	prev := mainLog.verbosity.Swap(int32(level))
	return func() { mainLog.verbosity.Store(prev) }
}

// SetOutput redirects log output to w and returns a function restoring the
// previous writer.
func SetOutput(w io.Writer) (restore func()) {
	mainLog.mu.Lock()
	prev := mainLog.mu.out
	mainLog.mu.out = w
	mainLog.mu.Unlock()
	return func() {
		mainLog.mu.Lock()
		mainLog.mu.out = prev
		mainLog.mu.Unlock()
	}
}

// SetRedactable controls whether redaction markers are kept in the output.
// When false, markers are stripped and the output is plain text.
func SetRedactable(redactable bool) {
	mainLog.redactable.Store(redactable)
}

// DisableTimestamps omits the timestamp from log entries.
func DisableTimestamps() (restore func()) {
	prev := mainLog.noTimestamps.Swap(true)
	return func() { mainLog.noTimestamps.Store(prev) }
}
