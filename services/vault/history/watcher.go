// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Invalidator is anything whose cached view must be dropped when refs
// change on disk.
type Invalidator interface {
	InvalidateAll() error
}

// RefWatcher watches a store's refs/heads directory for external
// updates.
//
// # Description
//
// Detects branch refs rewritten by another process sharing the store
// root (a second editing session, a manual fix) and invalidates the
// log cache so the next read sees the new head.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type RefWatcher struct {
	storeRoot string
	cache     Invalidator
	watcher   *fsnotify.Watcher
	callback  func(branch string)
}

// NewRefWatcher creates a watcher over a store root.
//
// # Inputs
//
//   - storeRoot: path to the store root directory.
//   - cache: cache invalidator (may be nil).
//   - callback: optional per-branch callback on ref change.
//
// # Outputs
//
//   - *RefWatcher: ready-to-start watcher.
//   - error: non-nil if watcher creation fails.
func NewRefWatcher(storeRoot string, cache Invalidator, callback func(branch string)) (*RefWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &RefWatcher{
		storeRoot: storeRoot,
		cache:     cache,
		watcher:   watcher,
		callback:  callback,
	}, nil
}

// Start begins watching for ref changes.
//
// # Description
//
// Watches refs/heads under the store root. Blocks until the context is
// cancelled; run in a goroutine.
//
// # Example
//
//	watcher, _ := history.NewRefWatcher(root, cache, nil)
//	go watcher.Start(ctx)
func (w *RefWatcher) Start(ctx context.Context) {
	refsPath := filepath.Join(w.storeRoot, "refs", "heads")
	if err := w.watcher.Add(refsPath); err != nil {
		slog.Warn("Failed to watch refs/heads",
			"path", refsPath,
			"error", err)
	}

	slog.Debug("Started watching branch refs",
		"store_root", w.storeRoot)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Ref watcher error",
				"error", err)

		case <-ctx.Done():
			slog.Debug("Ref watcher stopping")
			return
		}
	}
}

// handleEvent processes a single fsnotify event. Ref updates land via
// rename, so both write and rename ops matter.
func (w *RefWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	branch := filepath.Base(event.Name)
	if len(branch) > 0 && branch[0] == '.' {
		// Temp files from in-flight atomic writes.
		return
	}

	slog.Info("Branch ref changed externally, invalidating log cache",
		"branch", branch)

	if w.cache != nil {
		if err := w.cache.InvalidateAll(); err != nil {
			slog.Warn("Failed to invalidate log cache after ref change",
				"error", err)
		}
	}

	if w.callback != nil {
		w.callback(branch)
	}
}

// Stop stops the watcher and releases resources. Safe to call multiple
// times.
func (w *RefWatcher) Stop() error {
	return w.watcher.Close()
}
