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
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/BlendVault/services/vault/cas"
)

// Default configuration values.
const (
	// DefaultLogTTL is the default time window a cached branch log
	// stays valid without explicit invalidation.
	DefaultLogTTL = 5 * time.Second

	// DefaultMaxBranches bounds the number of cached branch logs.
	DefaultMaxBranches = 16
)

// LogCacheOptions configures LogCache behavior.
type LogCacheOptions struct {
	// TTL is the validity window for cached logs.
	TTL time.Duration

	// MaxBranches is the maximum number of branches cached at once.
	MaxBranches int

	// Now supplies the current time. Injectable so tests control
	// cache lifetime deterministically. Nil means time.Now.
	Now func() time.Time
}

// LogCacheOption is a functional option for configuring LogCache.
type LogCacheOption func(*LogCacheOptions)

// WithTTL sets the validity window for cached logs.
func WithTTL(d time.Duration) LogCacheOption {
	return func(o *LogCacheOptions) {
		if d > 0 {
			o.TTL = d
		}
	}
}

// WithMaxBranches sets the maximum number of cached branches.
func WithMaxBranches(n int) LogCacheOption {
	return func(o *LogCacheOptions) {
		if n > 0 {
			o.MaxBranches = n
		}
	}
}

// WithClock injects a time source.
func WithClock(now func() time.Time) LogCacheOption {
	return func(o *LogCacheOptions) {
		if now != nil {
			o.Now = now
		}
	}
}

// logEntry is one cached branch log.
type logEntry struct {
	commits   []cas.CommitEntry
	cachedAt  time.Time
	lastTouch time.Time
}

// LogCacheStats contains statistics about the cache.
type LogCacheStats struct {
	Branches      int
	Hits          int64
	Misses        int64
	Invalidations int64
}

// LogCache is an explicit, TTL-bounded cache of branch commit logs.
//
// Description:
//
//	Replaces implicit module-level state with an object carrying an
//	injectable clock and explicit invalidation, so tests can control
//	time and lifetime deterministically. Entries expire after the
//	TTL or on Invalidate; the ref watcher calls InvalidateAll when
//	refs change on disk.
//
// Thread Safety: safe for concurrent use.
type LogCache struct {
	mu      sync.Mutex
	entries map[string]*logEntry
	opts    LogCacheOptions

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// NewLogCache builds a cache with the given options.
func NewLogCache(opts ...LogCacheOption) *LogCache {
	options := LogCacheOptions{
		TTL:         DefaultLogTTL,
		MaxBranches: DefaultMaxBranches,
		Now:         time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &LogCache{
		entries: make(map[string]*logEntry),
		opts:    options,
	}
}

// Get returns the cached log for a branch when present and fresh.
func (c *LogCache) Get(branch string) ([]cas.CommitEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[branch]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	now := c.opts.Now()
	if now.Sub(entry.cachedAt) > c.opts.TTL {
		delete(c.entries, branch)
		c.misses.Add(1)
		return nil, false
	}
	entry.lastTouch = now
	c.hits.Add(1)
	return entry.commits, true
}

// Put stores a branch log, evicting the least recently touched entry
// when the branch bound is exceeded.
func (c *LogCache) Put(branch string, commits []cas.CommitEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	c.entries[branch] = &logEntry{commits: commits, cachedAt: now, lastTouch: now}

	for len(c.entries) > c.opts.MaxBranches {
		oldest := ""
		var oldestTouch time.Time
		for name, e := range c.entries {
			if oldest == "" || e.lastTouch.Before(oldestTouch) {
				oldest = name
				oldestTouch = e.lastTouch
			}
		}
		delete(c.entries, oldest)
	}
}

// Invalidate drops one branch's cached log.
func (c *LogCache) Invalidate(branch string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[branch]; ok {
		delete(c.entries, branch)
		c.invalidations.Add(1)
	}
}

// InvalidateAll drops every cached log.
func (c *LogCache) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) > 0 {
		c.invalidations.Add(int64(len(c.entries)))
		c.entries = make(map[string]*logEntry)
	}
	return nil
}

// Stats returns a snapshot of cache counters.
func (c *LogCache) Stats() LogCacheStats {
	c.mu.Lock()
	branches := len(c.entries)
	c.mu.Unlock()
	return LogCacheStats{
		Branches:      branches,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// CachedLog reads a branch log through the cache. On miss it consults
// the journal index first and falls back to walking the commit object
// files; either result is cached.
func (c *LogCache) CachedLog(ctx context.Context, store *cas.Store, journal *Journal, branch string, limit int) ([]cas.CommitEntry, error) {
	if commits, ok := c.Get(branch); ok {
		return capLog(commits, limit), nil
	}
	commits, ok := journalLog(ctx, store, journal, branch)
	if !ok {
		var err error
		commits, err = store.ListBranchCommits(branch, 0)
		if err != nil {
			return nil, err
		}
	}
	c.Put(branch, commits)
	return capLog(commits, limit), nil
}

// journalLog reads the branch log from the journal index. It only
// answers when the journaled head agrees with the branch ref; the
// journal is best effort and may lag behind the store.
func journalLog(ctx context.Context, store *cas.Store, journal *Journal, branch string) ([]cas.CommitEntry, bool) {
	if journal == nil {
		return nil, false
	}
	head, err := journal.Head(ctx, branch)
	if err != nil || head == "" {
		return nil, false
	}
	refHead, err := store.ReadRef(branch)
	if err != nil || refHead != head {
		return nil, false
	}
	entries, err := journal.List(ctx, branch, 0)
	if err != nil || len(entries) == 0 || entries[0].CommitID != head {
		return nil, false
	}
	commits := make([]cas.CommitEntry, len(entries))
	for i, e := range entries {
		commits[i] = e.CommitEntry()
	}
	return commits, true
}

func capLog(commits []cas.CommitEntry, limit int) []cas.CommitEntry {
	if limit > 0 && limit < len(commits) {
		return commits[:limit]
	}
	return commits
}
