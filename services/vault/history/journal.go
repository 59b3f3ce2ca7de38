// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history provides fast branch-history access on top of the
// object store: a BadgerDB-backed commit metadata journal, a TTL log
// cache with injectable time, and a filesystem watcher invalidating
// that cache when refs change on disk.
//
// The journal is an index, never the source of truth. Everything in it
// can be rebuilt by walking the object store.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/BlendVault/services/vault/cas"
	"github.com/AleutianAI/BlendVault/services/vault/storage/badger"
)

// Entry is the journal's lightweight record of one commit: enough to
// serve log display and changed-object queries without touching the
// object store.
type Entry struct {
	CommitID       string   `json:"commit_id"`
	Branch         string   `json:"branch"`
	UID            string   `json:"uid"`
	TreeID         string   `json:"tree_id"`
	ParentID       string   `json:"parent_id"`
	Timestamp      string   `json:"timestamp"`
	Message        string   `json:"message"`
	ChangedObjects []string `json:"changed_objects"`
	SnapshotUID    string   `json:"snapshot_uid"`
}

// CommitEntry rebuilds the decoded store form of this commit from the
// indexed fields, so a journal read is interchangeable with a walk of
// the commit object files.
func (e Entry) CommitEntry() cas.CommitEntry {
	parents := []string{}
	if e.ParentID != "" {
		parents = append(parents, e.ParentID)
	}
	return cas.CommitEntry{
		ID: e.CommitID,
		Commit: cas.Commit{
			Version:   cas.SchemaVersion,
			Type:      cas.TypeCommit,
			Tree:      e.TreeID,
			Parents:   parents,
			UID:       e.UID,
			Timestamp: e.Timestamp,
			Message:   e.Message,
		},
	}
}

// Journal indexes commit metadata per branch in BadgerDB.
//
// Description:
//
//	Keys are "commit/<branch>/<uid>"; uids are lexically ordered
//	timestamps, so a reverse prefix scan yields newest-first history
//	without reading commit objects. A "head/<branch>" key mirrors
//	the ref for cheap head lookups.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions
// provide isolation.
type Journal struct {
	db  *badger.DB
	log *slog.Logger
}

// NewJournal wraps an open database.
func NewJournal(db *badger.DB, log *slog.Logger) *Journal {
	if log == nil {
		log = slog.Default()
	}
	return &Journal{db: db, log: log}
}

func commitKey(branch, uid string) []byte {
	return []byte(fmt.Sprintf("commit/%s/%s", branch, uid))
}

func commitPrefix(branch string) []byte {
	return []byte(fmt.Sprintf("commit/%s/", branch))
}

func headKey(branch string) []byte {
	return []byte("head/" + branch)
}

// Record stores one commit entry and advances the branch head.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	return j.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := txn.Set(commitKey(e.Branch, e.UID), data); err != nil {
			return fmt.Errorf("journal commit %s: %w", e.UID, err)
		}
		if err := txn.Set(headKey(e.Branch), []byte(e.CommitID)); err != nil {
			return fmt.Errorf("journal head %s: %w", e.Branch, err)
		}
		return nil
	})
}

// Head returns the journaled head commit id, or "" when the branch is
// unknown to the journal.
func (j *Journal) Head(ctx context.Context, branch string) (string, error) {
	var head string
	err := j.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(headKey(branch))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("journal head %s: %w", branch, err)
		}
		return item.Value(func(val []byte) error {
			head = string(val)
			return nil
		})
	})
	return head, err
}

// ByUID returns the entry for one uid, or ok=false.
func (j *Journal) ByUID(ctx context.Context, branch, uid string) (Entry, bool, error) {
	var entry Entry
	found := false
	err := j.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(commitKey(branch, uid))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("journal lookup %s/%s: %w", branch, uid, err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return fmt.Errorf("decode journal entry %s/%s: %w", branch, uid, err)
			}
			found = true
			return nil
		})
	})
	return entry, found, err
}

// List returns up to limit entries for a branch, newest first.
func (j *Journal) List(ctx context.Context, branch string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []Entry
	err := j.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		prefix := commitPrefix(branch)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(entries) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					j.log.Warn("skipping corrupt journal entry",
						"key", string(it.Item().Key()), "error", err)
					return nil
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// ChangedObjectsBetween unions changed-object lists across the commits
// from toUID back toward fromUID, exclusive of fromUID.
func (j *Journal) ChangedObjectsBetween(ctx context.Context, branch, fromUID, toUID string) ([]string, error) {
	entries, err := j.List(ctx, branch, 0)
	if err != nil {
		return nil, err
	}
	changed := make(map[string]bool)
	inRange := false
	for _, e := range entries {
		if e.UID == toUID {
			inRange = true
		}
		if !inRange {
			continue
		}
		if e.UID == fromUID {
			break
		}
		for _, name := range e.ChangedObjects {
			changed[name] = true
		}
	}
	names := make([]string, 0, len(changed))
	for n := range changed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Remove drops one commit entry and rewinds the branch head to the
// given parent commit id ("" clears the head).
func (j *Journal) Remove(ctx context.Context, branch, uid, parentCommitID string) error {
	return j.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := txn.Delete(commitKey(branch, uid)); err != nil {
			return fmt.Errorf("journal remove %s: %w", uid, err)
		}
		if parentCommitID == "" {
			return txn.Delete(headKey(branch))
		}
		return txn.Set(headKey(branch), []byte(parentCommitID))
	})
}

// DeleteBranch removes every journal key for a branch.
func (j *Journal) DeleteBranch(ctx context.Context, branch string) error {
	return j.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := commitPrefix(branch)
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("journal delete %s: %w", string(key), err)
			}
		}
		return txn.Delete(headKey(branch))
	})
}
