// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Severity identifies the importance of a log entry.
type Severity int32

const (
	// Severity_INFO is used for informational messages.
	Severity_INFO Severity = iota
	// Severity_WARNING is used for conditions that deserve attention.
	Severity_WARNING
	// Severity_ERROR is used for failures.
	Severity_ERROR
)

func (s Severity) prefix() byte {
	switch s {
	case Severity_WARNING:
		return 'W'
	case Severity_ERROR:
		return 'E'
	default:
		return 'I'
	}
}

// loggerT is the process-wide logger. Entries are serialized with mu so that
// concurrent compilations do not interleave their output.
type loggerT struct {
	mu struct {
		sync.Mutex
		out io.Writer
	}
	verbosity  atomic.Int32
	redactable atomic.Bool
	// timestamps can be disabled to make test output deterministic.
	noTimestamps atomic.Bool
}

var mainLog = func() *loggerT {
	l := &loggerT{}
	l.mu.out = os.Stderr
	return l
}()

// outputLogEntry writes a fully formatted entry.
func (l *loggerT) outputLogEntry(sev Severity, tags string, msg string) {
	var buf bytes.Buffer
	buf.WriteByte(sev.prefix())
	if !l.noTimestamps.Load() {
		buf.WriteString(time.Now().UTC().Format("060102 15:04:05.000000"))
	}
	buf.WriteByte(' ')
	if tags != "" {
		fmt.Fprintf(&buf, "[%s] ", tags)
	}
	buf.WriteString(msg)
	if msg == "" || msg[len(msg)-1] != '\n' {
		buf.WriteByte('\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.mu.out.Write(buf.Bytes())
}
