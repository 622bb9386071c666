// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutianfoss/filterscore/internal/config"
	"github.com/aleutianfoss/filterscore/internal/metric"
)

func testConfig() *config.View {
	return &config.View{
		Symbols: map[string]*config.SymbolDef{
			"FOO": {Name: "FOO", Weight: 3.0, NShots: 5},
		},
		Groups:          map[config.GroupID]*config.GroupDef{},
		DefaultMaxShots: 5,
		Actions: []config.Action{
			{Name: "reject", Threshold: 10},
			{Name: "no_action", NoAction: true},
		},
	}
}

func TestNew_GeneratesIDWhenEmpty(t *testing.T) {
	tk := New("", testConfig(), nil, nil)
	assert.NotEmpty(t, tk.MessageID())
}

func TestNew_KeepsSuppliedID(t *testing.T) {
	tk := New("msg-1", testConfig(), nil, nil)
	assert.Equal(t, "msg-1", tk.MessageID())
}

func TestSettingsCorrection_NilMapReturnsNotOK(t *testing.T) {
	tk := New("m", testConfig(), nil, nil)
	_, ok := tk.SettingsCorrection("FOO")
	assert.False(t, ok)
}

func TestSettingsCorrection_LooksUpConfiguredOverride(t *testing.T) {
	tk := New("m", testConfig(), map[string]float64{"FOO": 9.0}, nil)
	c, ok := tk.SettingsCorrection("FOO")
	require.True(t, ok)
	assert.Equal(t, 9.0, c)
}

func TestEnterIdempotentPhase_BlocksFurtherInsert(t *testing.T) {
	tk := New("m", testConfig(), nil, nil)
	_, ok := metric.Insert(tk, "FOO", 1.0, "", 0)
	require.True(t, ok)

	tk.EnterIdempotentPhase()
	_, ok = metric.Insert(tk, "FOO", 1.0, "", 0)
	assert.False(t, ok, "insert must be rejected once the task has entered the idempotent phase")
}

func TestInsertScored_RecordsFirstThenRepeatHit(t *testing.T) {
	tk := New("m", testConfig(), nil, nil)
	ctx := context.Background()

	_, ok := tk.InsertScored(ctx, "FOO", 1.0, "", 0)
	require.True(t, ok)

	_, ok = tk.InsertScored(ctx, "FOO", 1.0, "", 0)
	require.True(t, ok)

	m, ok := tk.Result()
	require.True(t, ok)
	sr, ok := m.FindSymbol("FOO")
	require.True(t, ok)
	assert.Equal(t, 2, sr.NShots)
}

func TestVerdict_SelectsConfiguredAction(t *testing.T) {
	tk := New("m", testConfig(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, ok := tk.InsertScored(ctx, "FOO", 1.0, "", metric.FlagSingle)
		require.True(t, ok)
	}
	tk.EnterIdempotentPhase()

	action := tk.Verdict(ctx)
	assert.Equal(t, "no_action", action.Name, "score 3 (single-shot FOO) never crosses the reject threshold of 10")
}

func TestRelease_DoesNotPanicOnFreshTask(t *testing.T) {
	tk := New("m", testConfig(), nil, nil)
	assert.NotPanics(t, func() { tk.Release() })
}
