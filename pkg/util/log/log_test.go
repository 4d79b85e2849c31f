// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	restoreOut := SetOutput(&buf)
	restoreTS := DisableTimestamps()
	t.Cleanup(func() {
		restoreTS()
		restoreOut()
	})
	return &buf
}

func TestInfofWithTags(t *testing.T) {
	buf := captureOutput(t)
	ctx := logtags.AddTag(context.Background(), "c", 7)
	Infof(ctx, "applied %s to node %d", redact.Safe("MergeFilter"), 3)
	require.Equal(t, "I [c7] applied MergeFilter to node 3\n", buf.String())
}

func TestRedactable(t *testing.T) {
	buf := captureOutput(t)
	SetRedactable(true)
	defer SetRedactable(false)
	Warningf(context.Background(), "table %s", "secret")
	require.Equal(t, "W table ‹secret›\n", buf.String())
}

func TestVEventf(t *testing.T) {
	buf := captureOutput(t)
	VEventf(context.Background(), 2, "hidden")
	require.Empty(t, buf.String())

	defer SetVModule(2)()
	VEventf(context.Background(), 2, "shown")
	require.Equal(t, "I shown\n", buf.String())
}

func TestEveryN(t *testing.T) {
	e := Every(time.Minute)
	now := time.Now()
	require.True(t, e.shouldLog(now))
	require.False(t, e.shouldLog(now.Add(time.Second)))
	require.True(t, e.shouldLog(now.Add(2*time.Minute)))
}

func TestFormatWithContextTags(t *testing.T) {
	ctx := logtags.AddTag(context.Background(), "n", 1)
	require.Equal(t, "[n1] x=5", FormatWithContextTags(ctx, "x=%d", 5))
}
