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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for further writes before
// reloading.
const DefaultDebounce = 100 * time.Millisecond

// ErrNoPath is returned by Watch for an empty path.
var ErrNoPath = errors.New("config path is empty")

// Watch reloads path whenever it changes and passes each valid result to
// onChange.
//
// Description:
//
//	The parent directory is watched rather than the file, so editors that
//	save by rename are picked up. Bursts of events are collapsed into one
//	reload after the debounce window. A file that fails to load is logged
//	and skipped; the previous configuration stays in effect.
//
// Inputs:
//   - ctx: Cancelling ctx stops the watch.
//   - path: The config file.
//   - debounce: Quiet period before reloading. <= 0 uses DefaultDebounce.
//   - logger: Reload logger. Nil uses slog.Default().
//   - onChange: Called on the watch goroutine with each new config.
//
// Outputs:
//   - error: Setup failure, or nil once ctx is cancelled.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func(*Config)) error {
	if path == "" {
		return ErrNoPath
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("Watching config", "path", abs)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)

		case <-timer.C:
			cfg, err := Load(abs)
			if err != nil {
				logger.Warn("Config reload failed; keeping previous config", "path", abs, "error", err)
				continue
			}
			logger.Info("Config reloaded", "path", abs)
			onChange(cfg)
		}
	}
}
