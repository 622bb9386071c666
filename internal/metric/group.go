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

	"github.com/aleutianfoss/filterscore/internal/config"
)

// clampToGroup is the group-clamping helper of spec.md §4.5. It never caps a
// negative contribution — group caps only ever restrict growth.
func clampToGroup(hooks Hooks, symbol string, groupName config.GroupID, maxScore float64, groupScore float64, w float64) float64 {
	if maxScore <= 0 || w <= 0 {
		return w
	}
	if groupScore >= maxScore {
		slog.Info("filterscore/metric: group score cap reached, ignoring symbol",
			slog.String("symbol", symbol),
			slog.String("group", string(groupName)),
			slog.Float64("max_score", maxScore),
			slog.Float64("weight", w))
		if hooks != nil {
			hooks.OnGroupCapDrop(string(groupName))
		}
		return math.NaN()
	}
	if groupScore+w > maxScore {
		return maxScore - groupScore
	}
	return w
}

// applyGroupClamp applies clampToGroup across every group def belongs to,
// following spec.md §4.5's iteration policy: visit every group (even after
// an earlier group has already reduced the contribution), accumulate the
// per-group clamped diff into that group's ledger, and let the most
// restrictive group dictate the final diff. Returns NaN if any group's cap
// is already exhausted ("drop entirely").
func (m *MetricResult) applyGroupClamp(symbol string, def *config.SymbolDef, diff float64) float64 {
	if def == nil {
		return diff
	}

	for _, g := range def.Groups {
		groupScore := m.groupScores[g]
		maxScore := 0.0
		if gd, ok := m.cfg.Groups[g]; ok {
			maxScore = gd.MaxScore
		}

		curDiff := clampToGroup(m.hooks, symbol, g, maxScore, groupScore, diff)
		if math.IsNaN(curDiff) {
			return math.NaN()
		}

		m.groupScores[g] = groupScore + curDiff
		if curDiff < diff {
			diff = curDiff
		}
	}

	return diff
}

// applyGrowFactor implements spec.md §4.6. positive reports whether the
// amplify-or-seed branch was taken (x > 0), which the repeat-hit caller uses
// to decide whether to write growFactor back (see O2 in metric.go).
func applyGrowFactor(growFactor, cfgGrowFactor, x float64) (outX float64, nextGF float64, positive bool) {
	nextGF = 1.0
	switch {
	case growFactor > 0 && x > 0:
		return x * growFactor, growFactor * cfgGrowFactor, true
	case x > 0:
		return x, cfgGrowFactor, true
	default:
		return x, 1.0, false
	}
}
