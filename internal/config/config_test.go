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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_BasicDocument(t *testing.T) {
	doc := []byte(`
grow_factor: 1.5
default_max_shots: 3
groups:
  - name: spam
    max_score: 10
symbols:
  - name: FOO
    weight: 2.0
    groups: [spam]
    nshots: 5
actions:
  - name: reject
    threshold: 15
  - name: no_action
    no_action: true
`)

	v, err := Load(doc)
	require.NoError(t, err)

	assert.Equal(t, 1.5, v.GrowFactor)
	assert.Equal(t, 3, v.DefaultMaxShots)

	require.Contains(t, v.Symbols, "FOO")
	assert.Equal(t, 2.0, v.Symbols["FOO"].Weight)
	assert.Equal(t, []GroupID{"spam"}, v.Symbols["FOO"].Groups)

	require.Contains(t, v.Groups, GroupID("spam"))
	assert.Equal(t, 10.0, v.Groups["spam"].MaxScore)

	require.Len(t, v.Actions, 2)
	assert.Equal(t, 15.0, v.Actions[0].Threshold)

	na, ok := v.NoActionSlot()
	require.True(t, ok)
	assert.True(t, na.NoAction)
}

func TestLoad_ActionWithoutThresholdDecodesToNaN(t *testing.T) {
	doc := []byte(`
actions:
  - name: no_action
    no_action: true
`)
	v, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, v.Actions, 1)
	assert.True(t, math.IsNaN(v.Actions[0].Threshold), "omitted threshold must decode to NaN, not zero")
}

func TestLoad_MissingNoActionTerminalIsAnError(t *testing.T) {
	doc := []byte(`
actions:
  - name: reject
    threshold: 10
`)
	_, err := Load(doc)
	assert.Error(t, err)
}

func TestLoad_EmptyActionTableIsValid(t *testing.T) {
	v, err := Load([]byte(`grow_factor: 1.0`))
	require.NoError(t, err)
	assert.Empty(t, v.Actions)
	_, ok := v.NoActionSlot()
	assert.False(t, ok)
}

func TestLoad_SymbolGroupAutoRegistersUndeclaredGroup(t *testing.T) {
	doc := []byte(`
symbols:
  - name: FOO
    weight: 1.0
    groups: [ad_hoc]
`)
	v, err := Load(doc)
	require.NoError(t, err)
	require.Contains(t, v.Groups, GroupID("ad_hoc"))
	assert.Equal(t, 0.0, v.Groups["ad_hoc"].MaxScore, "auto-registered group defaults to uncapped")
}

func TestDefault_LoadsEmbeddedBaseline(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, v.Symbols)
	require.NotEmpty(t, v.Actions)

	v2, err := Default()
	require.NoError(t, err)
	assert.Same(t, v, v2, "Default must cache a single View across calls")
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	_, err := Load([]byte("not: [valid: yaml"))
	assert.Error(t, err)
}
