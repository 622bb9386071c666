// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package task provides the production implementation of metric.Handle: the
// per-message collaborator the aggregator reads configuration, settings, and
// phase state from. One Task is created per message and dropped with it
// (spec.md §5); nothing here needs an explicit arena allocator the way the
// original C implementation does — Go's garbage collector frees the Task's
// strings and containers once the last reference to it is gone, which is the
// idiomatic rendition of "owned by the task, released when the task is
// released."
package task

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/aleutianfoss/filterscore/internal/config"
	"github.com/aleutianfoss/filterscore/internal/metric"
	"github.com/aleutianfoss/filterscore/internal/metrics"
)

// Task is the default metric.Handle implementation. Not safe for concurrent
// use by more than one goroutine at a time — see spec.md §5: one message,
// one task, mutated only on the task's owning worker.
type Task struct {
	id         string
	cfg        *config.View
	settings   map[string]float64
	idempotent bool
	logger     *slog.Logger
	result     *metric.MetricResult
}

// New creates a Task for a message. If id is empty, a UUID is generated —
// mirroring the teacher's use of uuid.New() for correlation IDs where the
// caller has no natural identifier of its own (egress/guard.go).
func New(id string, cfg *config.View, settings map[string]float64, logger *slog.Logger) *Task {
	if id == "" {
		id = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{id: id, cfg: cfg, settings: settings, logger: logger}
}

// Config implements metric.Handle.
func (t *Task) Config() *config.View { return t.cfg }

// MessageID implements metric.Handle.
func (t *Task) MessageID() string { return t.id }

// SettingsCorrection implements metric.Handle.
func (t *Task) SettingsCorrection(symbol string) (float64, bool) {
	if t.settings == nil {
		return 0, false
	}
	c, ok := t.settings[symbol]
	return c, ok
}

// Idempotent implements metric.Handle.
func (t *Task) Idempotent() bool { return t.idempotent }

// EnterIdempotentPhase marks the task as having reached the idempotent
// stage: no further Insert call will be accepted (spec.md §4.4 phase guard).
// There is no way back — the idempotent phase is terminal for the task's
// lifetime.
func (t *Task) EnterIdempotentPhase() { t.idempotent = true }

// Logger implements metric.Handle.
func (t *Task) Logger() *slog.Logger { return t.logger.With(slog.String("message_id", t.id)) }

// Result implements metric.Handle.
func (t *Task) Result() (*metric.MetricResult, bool) {
	if t.result == nil {
		return nil, false
	}
	return t.result, true
}

// AttachResult implements metric.Handle.
func (t *Task) AttachResult(m *metric.MetricResult) { t.result = m }

// OnGroupCapDrop implements metric.Hooks, forwarding to internal/metrics.
func (t *Task) OnGroupCapDrop(group string) { metrics.RecordGroupCapDrop(group) }

// OnMultiplicityCap implements metric.Hooks, forwarding to internal/metrics.
func (t *Task) OnMultiplicityCap(symbol string) { metrics.RecordMultiplicityCap(symbol) }

// Release records the EMA sample used to presize the next task's symbol
// ledger (spec.md §4.1). Call once the task's message is fully processed.
// The MetricResult stays attached and readable through Result afterwards.
func (t *Task) Release() {
	metric.Teardown(t)
}
