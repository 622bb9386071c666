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

// optionSet is an ordered-unique collection of option strings attached to a
// symbol hit (spec.md §2 component 2). The list preserves insertion order
// for display; the set gives O(1) dedup.
type optionSet struct {
	set  map[string]struct{}
	list []string
}

func newOptionSet() *optionSet {
	return &optionSet{set: make(map[string]struct{})}
}

func (o *optionSet) contains(opt string) bool {
	_, ok := o.set[opt]
	return ok
}

func (o *optionSet) add(opt string) {
	o.set[opt] = struct{}{}
	o.list = append(o.list, opt)
}

func (o *optionSet) len() int { return len(o.list) }

// addOption is the only mutator for a symbol's option state (spec.md §4.3).
// Returns true on a genuine insertion and also for an absent opt (success
// with no change); false for every rejection disposition (absent symbol
// result, one-param symbol with an existing set, or a duplicate option).
func addOption(s *SymbolResult, defaultMaxShots int, opt string) bool {
	if opt == "" {
		return true
	}
	if s == nil {
		return false
	}

	// A one-parameter symbol accepts exactly one option set; once it has
	// one, every subsequent add_option call is a silent no-op.
	if s.Definition != nil && s.Definition.OneParam && s.options != nil {
		return false
	}

	// Original source's "full set" and "no set yet" dispositions share one
	// code path: both (re)create a fresh optionSet (spec.md §9 O1 — resolved
	// literally per original_source, not second-guessed). This deliberately
	// discards any prior option storage when the set is full rather than
	// rejecting the insert.
	if s.options == nil || s.options.len() >= defaultMaxShots {
		s.options = newOptionSet()
		s.options.add(opt)
		return true
	}

	if s.options.contains(opt) {
		return false
	}
	s.options.add(opt)
	return true
}
