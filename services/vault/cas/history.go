// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cas

// CommitEntry pairs a commit id with its decoded content during a
// history walk.
type CommitEntry struct {
	ID     string
	Commit Commit
}

// DefaultHistoryLimit bounds unqualified history walks.
const DefaultHistoryLimit = 100

// ListBranchCommits walks the first-parent chain from the branch head,
// newest first.
//
// Description:
//
//	Linear walk bounded by limit and by a seen-set guarding against
//	cyclic or corrupt data. Cost is O(history depth); acceptable for
//	the shallow-to-moderate histories this store serves.
func (s *Store) ListBranchCommits(branch string, limit int) ([]CommitEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	head, err := s.ReadRef(branch)
	if err != nil {
		return nil, err
	}

	var entries []CommitEntry
	seen := make(map[string]bool)
	current := head
	for current != "" && !seen[current] && len(entries) < limit {
		seen[current] = true
		commit, err := s.ReadCommit(current)
		if err != nil {
			return nil, err
		}
		if commit.Tree == "" && commit.UID == "" {
			break
		}
		entries = append(entries, CommitEntry{ID: current, Commit: commit})
		current = commit.Parent()
	}
	return entries, nil
}

// ResolveCommitByUID finds the branch commit carrying uid, or ok=false.
// The search walks at most DefaultHistoryLimit commits from the head,
// so uids deeper than that resolve as unknown.
func (s *Store) ResolveCommitByUID(branch, uid string) (CommitEntry, bool, error) {
	entries, err := s.ListBranchCommits(branch, 0)
	if err != nil {
		return CommitEntry{}, false, err
	}
	for _, e := range entries {
		if e.Commit.UID == uid {
			return e, true, nil
		}
	}
	return CommitEntry{}, false, nil
}

// CommitsBetween returns the commits from toUID back toward fromUID,
// exclusive of fromUID and inclusive of toUID, newest first.
func (s *Store) CommitsBetween(branch, fromUID, toUID string) ([]CommitEntry, error) {
	entries, err := s.ListBranchCommits(branch, 0)
	if err != nil {
		return nil, err
	}
	var result []CommitEntry
	foundTo := false
	for _, e := range entries {
		uid := e.Commit.UID
		if uid == toUID {
			foundTo = true
			result = append(result, e)
			continue
		}
		if foundTo && uid == fromUID {
			break
		}
		if foundTo {
			result = append(result, e)
		}
	}
	return result, nil
}
