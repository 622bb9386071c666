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

import "sync"

// emaDecay is the original source's hardcoded decay factor for the
// symbol-cardinality EMA (rspamd_set_counter_ema's literal 0.5 argument at
// the destructor call site) — not a configuration scalar.
const emaDecay = 0.5

// minPresize is the floor container pre-size used before the EMA has ever
// observed a sample, mirroring kh_resize's 4-bucket fallback.
const minPresize = 4

// emaCounter is the process-wide EMA of per-message symbol cardinality
// (spec.md §2 component 8). It is the only state in this package shared
// across tasks, so it is guarded by a mutex (spec.md §5).
type emaCounter struct {
	mu     sync.Mutex
	mean   float64
	primed bool
}

var symbolCountEMA = &emaCounter{}

func (e *emaCounter) observe(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.primed {
		e.mean = v
		e.primed = true
		return
	}
	e.mean = e.mean*emaDecay + v*(1-emaDecay)
}

// presizeHint returns the map pre-allocation size to use for a freshly
// created MetricResult's symbol ledger.
func (e *emaCounter) presizeHint() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.primed && e.mean > minPresize {
		return int(e.mean)
	}
	return minPresize
}
