// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metric

import (
	"log/slog"

	"github.com/aleutianfoss/filterscore/internal/config"
)

// Handle is the collaborator contract the aggregator needs from the caller's
// per-message task object (spec.md §6 "Task handle"). internal/task.Task is
// the production implementation; tests use lightweight fakes.
type Handle interface {
	// Config returns the configuration view this task was created against.
	Config() *config.View

	// MessageID returns the task's message identifier, used only for log
	// correlation.
	MessageID() string

	// SettingsCorrection returns the per-task settings override for symbol,
	// and whether one was configured (spec.md §4.4's optional settings
	// override map).
	SettingsCorrection(symbol string) (float64, bool)

	// Idempotent reports whether the task has entered the idempotent phase;
	// Insert refuses to run once this is true (spec.md §4.4 phase guard).
	Idempotent() bool

	// Logger returns the logging sink for this task.
	Logger() *slog.Logger

	// Result returns the MetricResult already attached to this task, if any.
	Result() (*MetricResult, bool)

	// AttachResult stores m as this task's MetricResult for subsequent
	// Result calls.
	AttachResult(m *MetricResult)
}

// Hooks are optional instrumentation callbacks. internal/metric has no
// Prometheus or OTel dependency itself; a Handle that also implements Hooks
// (internal/task.Task does, forwarding to internal/metrics) gets notified of
// events a caller may want to count without the core package knowing what a
// counter is.
type Hooks interface {
	// OnGroupCapDrop fires when a contribution is dropped entirely because
	// group's score cap is already exhausted.
	OnGroupCapDrop(group string)

	// OnMultiplicityCap fires when a repeat-hit is forced into single-shot
	// semantics because the symbol's configured nshots was exhausted.
	OnMultiplicityCap(symbol string)
}
