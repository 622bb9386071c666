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
	"math"
	"sort"

	"github.com/aleutianfoss/filterscore/internal/config"
)

// AddPassthrough appends an override verdict and re-sorts the channel by
// priority descending, stable with respect to insertion order on ties
// (spec.md §4.2). No deduplication.
func AddPassthrough(h Handle, action config.Action, priority int, targetScore float64, message, module string) {
	m := For(h)

	pr := PassthroughResult{
		Action:      action,
		Priority:    priority,
		TargetScore: targetScore,
		Message:     message,
		Module:      module,
	}
	m.passthroughs = append(m.passthroughs, pr)

	sort.SliceStable(m.passthroughs, func(i, j int) bool {
		return m.passthroughs[i].Priority > m.passthroughs[j].Priority
	})

	logger := h.Logger()
	if !math.IsNaN(targetScore) {
		logger.Info("filterscore/metric: pre-result set",
			slog.String("message_id", h.MessageID()),
			slog.String("action", action.Name),
			slog.Float64("target_score", targetScore),
			slog.String("reason", message),
			slog.String("module", module),
			slog.Int("priority", priority))
	} else {
		logger.Info("filterscore/metric: pre-result set (no score)",
			slog.String("message_id", h.MessageID()),
			slog.String("action", action.Name),
			slog.String("reason", message),
			slog.String("module", module),
			slog.Int("priority", priority))
	}
}

// CheckAction derives the final action from accumulated score (spec.md
// §4.7). A non-empty passthrough channel short-circuits threshold-based
// selection entirely: the highest-priority entry wins, and if its target
// score is finite it adjusts m.Score() accordingly (min-with for no_action,
// direct replacement otherwise).
func CheckAction(h Handle) config.Action {
	m := For(h)

	if len(m.passthroughs) > 0 {
		head := m.passthroughs[0]
		if !math.IsNaN(head.TargetScore) {
			if head.Action.NoAction {
				m.score = math.Min(head.TargetScore, m.score)
			} else {
				m.score = head.TargetScore
			}
		}
		return head.Action
	}

	var selected config.Action
	haveSelected := false
	maxThreshold := math.Inf(-1)

	for i, a := range m.cfg.Actions {
		threshold := m.actionLimits[i]
		if math.IsNaN(threshold) {
			continue
		}
		if m.score >= threshold && threshold > maxThreshold {
			selected = a
			maxThreshold = threshold
			haveSelected = true
		}
	}

	if !haveSelected {
		// O3: the "set_action" dead flag in the original source is
		// canonicalized as spec.md directs — an empty qualifying set always
		// falls back to the configured no-action terminal.
		if na, ok := m.cfg.NoActionSlot(); ok {
			return na
		}
		return config.Action{Name: "no action", NoAction: true}
	}

	return selected
}
