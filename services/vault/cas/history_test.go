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

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/BlendVault/services/vault/signature"
)

// seedHistory writes n commits on branch with uids "uid1".."uidN" and
// returns the commit ids, oldest first.
func seedHistory(t *testing.T, s *Store, branch string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	parent := ""
	for i := 1; i <= n; i++ {
		sig := signature.Signature{
			signature.FieldName:           "Cube",
			signature.FieldCollectionPath: "",
			"geo_hash":                    fmt.Sprintf("rev%d", i),
		}
		treeID, _, err := s.WriteTree(map[string]signature.Signature{"Cube": sig})
		require.NoError(t, err)
		id, err := s.WriteCommit(treeID, fmt.Sprintf("uid%d", i), "2025-01-01 00:00:00",
			fmt.Sprintf("step %d", i), parent)
		require.NoError(t, err)
		require.NoError(t, s.UpdateRef(branch, id))
		ids = append(ids, id)
		parent = id
	}
	return ids
}

// TestListBranchCommits verifies the first-parent walk runs newest
// first and honors the limit.
func TestListBranchCommits(t *testing.T) {
	s := newTestStore(t)
	ids := seedHistory(t, s, "main", 4)

	entries, err := s.ListBranchCommits("main", 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, ids[3], entries[0].ID)
	assert.Equal(t, ids[0], entries[3].ID)
	assert.Equal(t, "uid4", entries[0].Commit.UID)
	assert.Equal(t, "step 1", entries[3].Commit.Message)

	limited, err := s.ListBranchCommits("main", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "uid4", limited[0].Commit.UID)
	assert.Equal(t, "uid3", limited[1].Commit.UID)
}

// TestListBranchCommitsEmptyBranch verifies a branch with no ref walks
// to nothing.
func TestListBranchCommitsEmptyBranch(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.ListBranchCommits("main", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestListBranchCommitsDanglingParent verifies the walk stops cleanly
// when a parent object is missing instead of erroring.
func TestListBranchCommitsDanglingParent(t *testing.T) {
	s := newTestStore(t)

	treeID, _, err := s.WriteTree(map[string]signature.Signature{})
	require.NoError(t, err)
	id, err := s.WriteCommit(treeID, "uid1", "ts", "orphan child", "ffff0000")
	require.NoError(t, err)
	require.NoError(t, s.UpdateRef("main", id))

	entries, err := s.ListBranchCommits("main", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "uid1", entries[0].Commit.UID)
}

// TestResolveCommitByUID covers the hit and miss paths.
func TestResolveCommitByUID(t *testing.T) {
	s := newTestStore(t)
	ids := seedHistory(t, s, "main", 3)

	entry, ok, err := s.ResolveCommitByUID("main", "uid2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids[1], entry.ID)
	assert.Equal(t, "step 2", entry.Commit.Message)

	_, ok, err = s.ResolveCommitByUID("main", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestCommitsBetween verifies the range walk is exclusive of fromUID
// and inclusive of toUID, newest first.
func TestCommitsBetween(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s, "main", 4)

	entries, err := s.CommitsBetween("main", "uid1", "uid3")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "uid3", entries[0].Commit.UID)
	assert.Equal(t, "uid2", entries[1].Commit.UID)

	full, err := s.CommitsBetween("main", "", "uid4")
	require.NoError(t, err)
	require.Len(t, full, 4)
	assert.Equal(t, "uid4", full[0].Commit.UID)
	assert.Equal(t, "uid1", full[3].Commit.UID)

	none, err := s.CommitsBetween("main", "uid1", "nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}
