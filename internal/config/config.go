// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the immutable, read-only configuration view that the
// scoring aggregator consumes: symbol definitions, group definitions, action
// thresholds, and global tunables. The aggregator never mutates a View; it is
// built once (from the embedded default or a caller-supplied YAML document)
// and shared across every message processed in that run.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

// GroupID identifies a named bucket of symbols that may carry an aggregate
// score cap.
type GroupID string

// SymbolDef is the configuration-side definition of a named check. The
// aggregator holds a read-only back-reference to one of these from each
// SymbolResult that has a known definition; it never owns or mutates it.
type SymbolDef struct {
	Name     string
	Weight   float64
	Groups   []GroupID
	NShots   int
	OneParam bool
}

// GroupDef is a named bucket of symbols with an optional maximum aggregate
// score. MaxScore <= 0 means "uncapped".
type GroupDef struct {
	Name     GroupID
	MaxScore float64
}

// Action is one slot in the threshold-ordered action table. Threshold is
// NaN when the slot has no configured bound ("absent" per spec.md §3).
// Slots are declared most-severe first; the slot with NoAction set is the
// terminal verdict returned when nothing else qualifies (spec.md §6's "the
// selector requires at minimum a no-action terminal").
type Action struct {
	Name      string
	Threshold float64
	NoAction  bool
}

// FrequencyCache is the optional symbol-execution scheduler collaborator
// named in spec.md §6 (`cache.inc_frequency(name)`). A nil FrequencyCache is
// valid and means "no cache configured" — the aggregator has no hard
// dependency on a scheduler.
type FrequencyCache interface {
	IncFrequency(symbol string)
}

// View is the immutable configuration snapshot described in spec.md §3
// component 1. Nothing in internal/metric mutates a View.
type View struct {
	Symbols         map[string]*SymbolDef
	Groups          map[GroupID]*GroupDef
	Actions         []Action
	GrowFactor      float64
	DefaultMaxShots int
	Cache           FrequencyCache
}

// yamlDoc mirrors the on-disk YAML shape; decoded once and converted into a
// View so the aggregator never deals with YAML-specific pointer plumbing.
type yamlDoc struct {
	GrowFactor      float64 `yaml:"grow_factor"`
	DefaultMaxShots int     `yaml:"default_max_shots"`
	Groups          []struct {
		Name     string  `yaml:"name"`
		MaxScore float64 `yaml:"max_score"`
	} `yaml:"groups"`
	Symbols []struct {
		Name     string   `yaml:"name"`
		Weight   float64  `yaml:"weight"`
		Groups   []string `yaml:"groups"`
		NShots   int      `yaml:"nshots"`
		OneParam bool     `yaml:"one_param"`
	} `yaml:"symbols"`
	Actions []struct {
		Name      string   `yaml:"name"`
		Threshold *float64 `yaml:"threshold"`
		NoAction  bool     `yaml:"no_action"`
	} `yaml:"actions"`
}

// Load parses a YAML configuration document into a View. An action whose
// threshold is omitted decodes to NaN ("absent" per spec.md §3), matching
// the original `actions[i].score` semantics rather than a zero threshold.
func Load(data []byte) (*View, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("filterscore/config: parsing configuration: %w", err)
	}

	v := &View{
		Symbols:         make(map[string]*SymbolDef, len(doc.Symbols)),
		Groups:          make(map[GroupID]*GroupDef, len(doc.Groups)),
		Actions:         make([]Action, 0, len(doc.Actions)),
		GrowFactor:      doc.GrowFactor,
		DefaultMaxShots: doc.DefaultMaxShots,
	}

	for _, g := range doc.Groups {
		v.Groups[GroupID(g.Name)] = &GroupDef{Name: GroupID(g.Name), MaxScore: g.MaxScore}
	}

	for _, s := range doc.Symbols {
		groups := make([]GroupID, 0, len(s.Groups))
		for _, g := range s.Groups {
			groups = append(groups, GroupID(g))
			if _, ok := v.Groups[GroupID(g)]; !ok {
				v.Groups[GroupID(g)] = &GroupDef{Name: GroupID(g)}
			}
		}
		v.Symbols[s.Name] = &SymbolDef{
			Name:     s.Name,
			Weight:   s.Weight,
			Groups:   groups,
			NShots:   s.NShots,
			OneParam: s.OneParam,
		}
	}

	haveNoAction := false
	for _, a := range doc.Actions {
		threshold := math.NaN()
		if a.Threshold != nil {
			threshold = *a.Threshold
		}
		if a.NoAction {
			haveNoAction = true
		}
		v.Actions = append(v.Actions, Action{Name: a.Name, Threshold: threshold, NoAction: a.NoAction})
	}
	if len(v.Actions) > 0 && !haveNoAction {
		return nil, fmt.Errorf("filterscore/config: action table has no no_action terminal slot")
	}

	return v, nil
}

var (
	defaultOnce sync.Once
	defaultView *View
	defaultErr  error
)

// Default returns the embedded baseline configuration, decoded once and
// cached, mirroring the teacher's LoadConceptSynonyms `sync.Once` pattern.
func Default() (*View, error) {
	defaultOnce.Do(func() {
		defaultView, defaultErr = Load(defaultConfigYAML)
		if defaultErr == nil {
			slog.Info("filterscore/config: loaded embedded default configuration",
				slog.Int("symbols", len(defaultView.Symbols)),
				slog.Int("groups", len(defaultView.Groups)),
				slog.Int("actions", len(defaultView.Actions)),
			)
		}
	})
	return defaultView, defaultErr
}

// NoActionSlot returns the configured terminal "no verdict" action. Callers
// should always find one in a validly-loaded View (Load rejects tables
// missing it), but an empty View (no actions declared at all) has none.
func (v *View) NoActionSlot() (Action, bool) {
	for _, a := range v.Actions {
		if a.NoAction {
			return a, true
		}
	}
	return Action{}, false
}
