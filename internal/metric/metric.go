// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metric implements the per-message metric-result aggregator: the
// component that accumulates symbol hits into a running score, enforces
// per-group score caps and per-symbol multiplicity limits, processes
// override ("passthrough") verdicts with priorities, and derives the final
// action from accumulated score against configured thresholds.
//
// # Description
//
// One MetricResult is created per message (one Handle, one MetricResult,
// mutated only by the task's owning goroutine — see Thread Safety). Symbol
// checks call Insert to contribute score; an override channel calls
// AddPassthrough; the caller finally calls CheckAction to derive the
// verdict.
//
// # Thread Safety
//
// A MetricResult is single-owner, non-shared: every exported function in
// this package that takes a Handle mutates state belonging to that Handle's
// own task and must only be called from the task's owning goroutine.
// Independent Handles (independent messages) may be processed concurrently
// on independent goroutines without additional synchronization. The one
// exception is the package-level EMA counter (ema.go), which is guarded by
// its own mutex because it is shared across every task in the process.
package metric

import (
	"log/slog"
	"math"

	"github.com/aleutianfoss/filterscore/internal/config"
)

// InsertFlags controls Insert's multiplicity and unknown-symbol semantics,
// mirroring `enum rspamd_symbol_insert_flags` in the original source.
type InsertFlags uint8

const (
	// FlagSingle forces single-shot semantics for this call regardless of
	// the symbol's configured nshots.
	FlagSingle InsertFlags = 1 << iota
	// FlagEnforce treats an unknown symbol (no configuration definition) as
	// having an implicit static weight of 1.0, instead of contributing 0.
	FlagEnforce
)

func (f InsertFlags) has(bit InsertFlags) bool { return f&bit != 0 }

// SymbolResult is the accumulated state for one symbol within a single
// MetricResult.
//
// # Description
//
// Definition is an optional back-reference into the configuration view —
// relation, never ownership (the View outlives every MetricResult derived
// from it). It is nil for ad-hoc symbols inserted without a matching
// configuration entry.
type SymbolResult struct {
	Name       string
	Definition *config.SymbolDef
	Score      float64
	NShots     int

	options *optionSet
}

// Options returns the option strings attached to this symbol hit, in
// insertion order. Returns nil if no option has ever been added.
func (s *SymbolResult) Options() []string {
	if s.options == nil {
		return nil
	}
	return s.options.list
}

// PassthroughResult is one override verdict registered via AddPassthrough.
type PassthroughResult struct {
	Action      config.Action
	Priority    int
	TargetScore float64 // may be NaN, meaning "use accumulated score"
	Message     string
	Module      string
}

// MetricResult is the per-message accumulator described in spec.md §3. Zero
// value is not useful; obtain one via For.
type MetricResult struct {
	cfg   *config.View
	hooks Hooks // nil if the Handle doesn't implement Hooks

	symbols      map[string]*SymbolResult
	groupScores  map[config.GroupID]float64
	passthroughs []PassthroughResult

	score      float64
	growFactor float64

	positiveScore float64
	negativeScore float64
	nPositive     int
	nNegative     int

	actionLimits []float64
}

// For returns the Handle's existing MetricResult if one is already attached,
// else allocates a fresh one with empty containers and a copy of the
// configured action thresholds, and attaches it to the Handle. Mirrors
// rspamd_create_metric_result: idempotent per task.
func For(h Handle) *MetricResult {
	if m, ok := h.Result(); ok {
		return m
	}

	cfg := h.Config()
	presize := symbolCountEMA.presizeHint()

	hooks, _ := h.(Hooks)

	m := &MetricResult{
		cfg:          cfg,
		hooks:        hooks,
		symbols:      make(map[string]*SymbolResult, presize),
		groupScores:  make(map[config.GroupID]float64, 4),
		actionLimits: make([]float64, len(cfg.Actions)),
	}
	for i, a := range cfg.Actions {
		m.actionLimits[i] = a.Threshold
	}

	h.AttachResult(m)
	return m
}

// Teardown records an EMA sample of this message's symbol-hit cardinality
// (decay 0.5, matching rspamd_set_counter_ema's hardcoded constant) to seed
// container pre-allocation for the next message created via For. Purely an
// advisory sizing hint; no observable aggregation behavior depends on it.
func Teardown(h Handle) {
	m, ok := h.Result()
	if !ok {
		return
	}
	symbolCountEMA.observe(float64(len(m.symbols)))
}

// Score returns the accumulated total score.
func (m *MetricResult) Score() float64 { return m.score }

// PositiveScore returns the non-negative running magnitude of all first-hit
// positive contributions (I4).
func (m *MetricResult) PositiveScore() float64 { return m.positiveScore }

// NegativeScore returns the non-negative running magnitude of all first-hit
// negative contributions (I4).
func (m *MetricResult) NegativeScore() float64 { return m.negativeScore }

// NPositive returns the count of first-hit insertions whose score was
// strictly positive beyond DBL_EPSILON.
func (m *MetricResult) NPositive() int { return m.nPositive }

// NNegative returns the count of first-hit insertions whose score was
// strictly negative beyond DBL_EPSILON.
func (m *MetricResult) NNegative() int { return m.nNegative }

// GroupScore returns the current accumulated score for a group, and whether
// that group has ever been touched by a defined symbol's hit.
func (m *MetricResult) GroupScore(g config.GroupID) (float64, bool) {
	v, ok := m.groupScores[g]
	return v, ok
}

// FindSymbol looks up a symbol hit by exact name.
func (m *MetricResult) FindSymbol(name string) (*SymbolResult, bool) {
	s, ok := m.symbols[name]
	return s, ok
}

// Passthroughs returns the registered override verdicts, sorted by priority
// descending (index 0 is the entry CheckAction would adopt).
func (m *MetricResult) Passthroughs() []PassthroughResult { return m.passthroughs }

// ForEachSymbol invokes fn for every symbol hit recorded so far. Iteration
// order is unspecified, matching spec.md §4.8.
func (m *MetricResult) ForEachSymbol(fn func(name string, s *SymbolResult)) {
	for name, s := range m.symbols {
		fn(name, s)
	}
}

// dblEpsilon is the zero threshold used to classify a first-hit score as
// positive, negative, or neutral — C's DBL_EPSILON, reproduced exactly
// rather than using Go's smaller machine epsilon, to preserve the original
// classification boundary.
const dblEpsilon = 2.2204460492503131e-16

// Insert is the centerpiece scoring operation (spec.md §4.4). It resolves
// the symbol's configuration definition, computes a base score, applies any
// per-task settings correction, and routes to the first-hit or repeat-hit
// branch, enforcing per-group caps (§4.5) and grow-factor amplification
// (§4.6) along the way. Returns (nil, false) if the call was rejected
// outright (phase violation).
func Insert(h Handle, symbol string, weight float64, opt string, flags InsertFlags) (*SymbolResult, bool) {
	logger := h.Logger()

	if h.Idempotent() {
		logger.Error("filterscore/metric: cannot insert symbol on idempotent phase",
			slog.String("symbol", symbol))
		return nil, false
	}

	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		kind := "NaN"
		if !math.IsNaN(weight) {
			kind = "infinity"
		}
		logger.Warn("filterscore/metric: non-finite score for symbol, replacing with zero",
			slog.String("symbol", symbol), slog.String("kind", kind))
		weight = 0.0
	}

	m := For(h)
	cfg := m.cfg
	def := cfg.Symbols[symbol]

	var base float64
	switch {
	case def == nil && flags.has(FlagEnforce):
		base = 1.0 * weight
	case def == nil:
		base = 0.0
	default:
		base = def.Weight * weight
		for _, g := range def.Groups {
			if _, ok := m.groupScores[g]; !ok {
				m.groupScores[g] = 0.0
			}
		}
	}

	if c, ok := h.SettingsCorrection(symbol); ok {
		logger.Debug("filterscore/metric: settings override applied",
			slog.String("symbol", symbol), slog.Float64("from", base), slog.Float64("to", c*weight))
		base = c * weight
	}

	finalScore := base

	var s *SymbolResult
	if existing, ok := m.symbols[symbol]; ok {
		s = m.insertRepeatHit(existing, symbol, def, finalScore, opt, flags, cfg)
	} else {
		s = m.insertFirstHit(symbol, def, finalScore, opt, cfg)
	}

	if cache := cfg.Cache; cache != nil {
		cache.IncFrequency(symbol)
	}

	logger.Debug("filterscore/metric: symbol inserted",
		slog.String("symbol", symbol), slog.Float64("score", s.Score), slog.Float64("factor", finalScore))

	return s, true
}

// insertRepeatHit handles the case where symbol already has a SymbolResult
// (spec.md §4.4 "Repeat-hit branch").
func (m *MetricResult) insertRepeatHit(s *SymbolResult, symbol string, def *config.SymbolDef, finalScore float64, opt string, flags InsertFlags, cfg *config.View) *SymbolResult {
	single := flags.has(FlagSingle)

	maxShots := cfg.DefaultMaxShots
	switch {
	case single:
		maxShots = 1
	case def != nil:
		maxShots = def.NShots
	}
	if !single && maxShots > 0 && s.NShots >= maxShots {
		single = true
		if m.hooks != nil {
			m.hooks.OnMultiplicityCap(symbol)
		}
	}

	// Every repeat-hit counts toward NShots, regardless of whether opt is new,
	// a duplicate, or absent (spec.md §8 Scenario 3 — a distinct option is
	// still a hit, not a free pass on the multiplicity counter).
	s.NShots++
	duplicateOption := opt != "" && s.options != nil && s.options.contains(opt)
	if !duplicateOption {
		addOption(s, cfg.DefaultMaxShots, opt)
	}

	var diff float64
	if !single {
		diff = finalScore
	} else if math.Abs(s.Score) < math.Abs(finalScore) && sameSign(s.Score, finalScore) {
		diff = finalScore - s.Score
	} else {
		diff = 0
	}

	if diff == 0 {
		return s
	}

	grown, nextGF, positive := applyGrowFactor(m.growFactor, m.cfg.GrowFactor, diff)
	diff = grown

	diff = m.applyGroupClamp(symbol, def, diff)
	if math.IsNaN(diff) {
		return s
	}

	m.score += diff
	// O2: repeat-hit only writes the grow factor back when the applied diff
	// was positive; a non-positive diff leaves growFactor untouched rather
	// than resetting it to 1.0 (spec.md §9 O2's literal resolution — see
	// SPEC_FULL.md for why this deliberately departs from a line-for-line
	// transliteration of the C source's unconditional write-back).
	if positive {
		m.growFactor = nextGF
	}
	if single {
		s.Score = finalScore
	} else {
		s.Score += diff
	}

	return s
}

// insertFirstHit handles the case where symbol has never been seen before in
// this MetricResult (spec.md §4.4 "First-hit branch").
func (m *MetricResult) insertFirstHit(symbol string, def *config.SymbolDef, finalScore float64, opt string, cfg *config.View) *SymbolResult {
	s := &SymbolResult{Name: symbol, Definition: def, NShots: 1}
	m.symbols[symbol] = s

	grown, nextGF, _ := applyGrowFactor(m.growFactor, m.cfg.GrowFactor, finalScore)
	finalScore = grown

	finalScore = m.applyGroupClamp(symbol, def, finalScore)
	if math.IsNaN(finalScore) {
		s.Score = 0
		addOption(s, cfg.DefaultMaxShots, opt)
		return s
	}

	m.score += finalScore
	// First-hit always writes the grow factor back when the outcome wasn't
	// dropped, regardless of sign — matches the original source exactly.
	m.growFactor = nextGF
	s.Score = finalScore

	switch {
	case finalScore > dblEpsilon:
		m.nPositive++
		m.positiveScore += finalScore
	case finalScore < -dblEpsilon:
		m.nNegative++
		m.negativeScore += math.Abs(finalScore)
	}

	addOption(s, cfg.DefaultMaxShots, opt)
	return s
}

func sameSign(a, b float64) bool {
	return math.Signbit(a) == math.Signbit(b)
}
