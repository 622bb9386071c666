// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics holds the Prometheus instrumentation for the scoring
// aggregator. It is intentionally decoupled from internal/metric: the core
// package takes no dependency on Prometheus, and callers that want
// instrumentation wrap their Insert/AddPassthrough/CheckAction call sites
// with the Record* functions here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	insertTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filterscore",
		Subsystem: "aggregator",
		Name:      "insert_total",
		Help:      "Symbol insertions by outcome: first_hit, repeat_hit, rejected_phase",
	}, []string{"outcome"})

	groupCapDropTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filterscore",
		Subsystem: "aggregator",
		Name:      "group_cap_drop_total",
		Help:      "Contributions dropped entirely because their group's score cap was already exhausted",
	}, []string{"group"})

	scoreHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "filterscore",
		Subsystem: "aggregator",
		Name:      "final_score",
		Help:      "Final accumulated score at CheckAction time",
		Buckets:   []float64{-5, -1, 0, 1, 2, 4, 6, 8, 10, 15, 20},
	})

	passthroughAdoptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filterscore",
		Subsystem: "aggregator",
		Name:      "passthrough_adopted_total",
		Help:      "Times a passthrough verdict short-circuited threshold-based action selection, by module",
	}, []string{"module"})

	actionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filterscore",
		Subsystem: "aggregator",
		Name:      "action_total",
		Help:      "Final verdicts selected by CheckAction, by action name",
	}, []string{"action"})

	symbolMultiplicityCapTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filterscore",
		Subsystem: "aggregator",
		Name:      "symbol_multiplicity_cap_total",
		Help:      "Repeat hits that fell back to single-shot semantics because nshots was exhausted",
	}, []string{"symbol"})
)

// RecordInsert records the outcome of one Insert call.
//
// Inputs:
//   - outcome: one of "first_hit", "repeat_hit", "rejected_phase".
func RecordInsert(outcome string) {
	insertTotal.WithLabelValues(outcome).Inc()
}

// RecordGroupCapDrop records that a contribution to group was dropped
// because the group's score cap was already exhausted.
func RecordGroupCapDrop(group string) {
	groupCapDropTotal.WithLabelValues(group).Inc()
}

// RecordMultiplicityCap records that symbol's repeat hit was forced into
// single-shot semantics because its configured nshots was exhausted.
func RecordMultiplicityCap(symbol string) {
	symbolMultiplicityCapTotal.WithLabelValues(symbol).Inc()
}

// RecordPassthroughAdopted records that module's passthrough verdict won
// over threshold-based selection.
func RecordPassthroughAdopted(module string) {
	passthroughAdoptedTotal.WithLabelValues(module).Inc()
}

// RecordFinalAction records the verdict CheckAction returned and the score
// it was derived from.
func RecordFinalAction(action string, score float64) {
	actionTotal.WithLabelValues(action).Inc()
	scoreHistogram.Observe(score)
}
