// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`grow_factor: 1.0`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded := make(chan *View, 1)
	require.NoError(t, Watch(ctx, path, func(v *View) { reloaded <- v }))

	require.NoError(t, os.WriteFile(path, []byte(`
grow_factor: 2.0
symbols:
  - name: FOO
    weight: 1.0
`), 0o644))

	select {
	case v := <-reloaded:
		require.Contains(t, v.Symbols, "FOO")
		require.Equal(t, 2.0, v.GrowFactor)
	case <-ctx.Done():
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatch_InvalidRewriteIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`grow_factor: 1.0`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded := make(chan *View, 1)
	require.NoError(t, Watch(ctx, path, func(v *View) { reloaded <- v }))

	// An action table missing its no_action terminal fails Load and must not
	// reach the callback.
	require.NoError(t, os.WriteFile(path, []byte(`
actions:
  - name: reject
    threshold: 10
`), 0o644))

	select {
	case v := <-reloaded:
		t.Fatalf("expected no reload for invalid document, got %+v", v)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatch_UnknownPathErrors(t *testing.T) {
	_, err := os.Stat("/nonexistent/filterscore-config.yaml")
	require.Error(t, err)

	err = Watch(context.Background(), "/nonexistent/filterscore-config.yaml", func(*View) {})
	require.Error(t, err)
}
