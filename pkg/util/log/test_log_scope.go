// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "testing"

// TestLogScope redirects log output to the test's log for the duration of a
// test. Use it as:
//
//	defer log.Scope(t).Close(t)
type TestLogScope struct {
	restore []func()
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Scope creates a TestLogScope for t.
func Scope(t testing.TB) *TestLogScope {
	return &TestLogScope{restore: []func(){
		SetOutput(testWriter{t: t}),
		DisableTimestamps(),
	}}
}

// Close restores the previous log configuration.
func (s *TestLogScope) Close(t testing.TB) {
	for i := len(s.restore) - 1; i >= 0; i-- {
		s.restore[i]()
	}
}
