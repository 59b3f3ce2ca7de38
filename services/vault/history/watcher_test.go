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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/BlendVault/services/vault/cas"
)

// TestRefWatcherInvalidatesOnRefUpdate verifies an external ref write
// drops the cached log and fires the branch callback.
func TestRefWatcherInvalidatesOnRefUpdate(t *testing.T) {
	store, err := cas.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	cache := NewLogCache(WithTTL(time.Hour))
	cache.Put("main", commitEntries(1))

	changed := make(chan string, 1)
	watcher, err := NewRefWatcher(store.Root(), cache, func(branch string) {
		select {
		case changed <- branch:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Start(ctx)
	t.Cleanup(func() { watcher.Stop() })

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, store.UpdateRef("main", "abc123"))

	select {
	case branch := <-changed:
		assert.Equal(t, "main", branch)
	case <-time.After(5 * time.Second):
		t.Fatal("ref change never observed")
	}

	_, ok := cache.Get("main")
	assert.False(t, ok, "cached log must be invalidated after a ref change")
}
