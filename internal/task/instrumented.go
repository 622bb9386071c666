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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/aleutianfoss/filterscore/internal/config"
	"github.com/aleutianfoss/filterscore/internal/metric"
	"github.com/aleutianfoss/filterscore/internal/metrics"
	"github.com/aleutianfoss/filterscore/internal/telemetry"
)

// InsertScored wraps metric.Insert with a trace span and Prometheus
// counters. internal/metric itself takes no OTel or Prometheus dependency
// (see internal/metrics' package doc); this is the boundary where the
// aggregator's calls become observable, mirroring how the teacher's routing
// package instruments calls at the site that invokes the routing logic
// rather than inside a lower-level primitive.
func (t *Task) InsertScored(ctx context.Context, symbol string, weight float64, opt string, flags metric.InsertFlags) (*metric.SymbolResult, bool) {
	_, span := telemetry.Tracer.Start(ctx, "task.Insert",
		oteltrace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.Float64("weight", weight),
		))
	defer span.End()

	alreadySeen := false
	if t.result != nil {
		_, alreadySeen = t.result.FindSymbol(symbol)
	}

	s, ok := metric.Insert(t, symbol, weight, opt, flags)
	if !ok {
		metrics.RecordInsert("rejected_phase")
		span.SetStatus(codes.Error, "insert rejected: idempotent phase")
		return nil, false
	}

	outcome := "first_hit"
	if alreadySeen {
		outcome = "repeat_hit"
	}
	metrics.RecordInsert(outcome)
	span.SetAttributes(attribute.Float64("symbol_score", s.Score))

	return s, true
}

// Verdict wraps metric.CheckAction with a trace span and records the final
// action/score pair, and, when a passthrough verdict won the selection,
// which module issued it.
func (t *Task) Verdict(ctx context.Context) config.Action {
	_, span := telemetry.Tracer.Start(ctx, "task.CheckAction")
	defer span.End()

	action := metric.CheckAction(t)

	if t.result != nil {
		if pts := t.result.Passthroughs(); len(pts) > 0 {
			metrics.RecordPassthroughAdopted(pts[0].Module)
		}
	}

	score := 0.0
	if t.result != nil {
		score = t.result.Score()
	}
	metrics.RecordFinalAction(action.Name, score)
	span.SetAttributes(
		attribute.String("action", action.Name),
		attribute.Float64("score", score),
	)

	return action
}
