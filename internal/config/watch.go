// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// WatchFunc receives every View successfully reloaded from a watched file.
type WatchFunc func(*View)

// Watch decodes path on every write/create event and calls fn with the
// resulting View, until ctx is done. A document that fails to decode is
// logged and skipped; the caller keeps whatever View it last received. This
// lets a long-running server (cmd/filterscore's serve command) pick up
// edited symbol weights and thresholds without a restart.
func Watch(ctx context.Context, path string, fn WatchFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filterscore/config: starting watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("filterscore/config: watching %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reload(path, fn)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("filterscore/config: watcher error", slog.Any("error", err))
			}
		}
	}()

	return nil
}

func reload(path string, fn WatchFunc) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("filterscore/config: reload failed", slog.String("path", path), slog.Any("error", err))
		return
	}
	v, err := Load(data)
	if err != nil {
		slog.Warn("filterscore/config: reload rejected", slog.String("path", path), slog.Any("error", err))
		return
	}
	slog.Info("filterscore/config: configuration reloaded", slog.String("path", path))
	fn(v)
}
