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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/BlendVault/services/vault/signature"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func cubeSig(path string) signature.Signature {
	return signature.Signature{
		signature.FieldName:           "Cube",
		signature.FieldCollectionPath: path,
		"geo_hash":                    "a1b2",
		"verts":                       "8",
		"transform":                   "t0",
	}
}

// TestPutBlobIdempotent verifies that storing the same content twice
// returns the same id and never rewrites the first file.
func TestPutBlobIdempotent(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.PutBlob(cubeSig("Props"))
	require.NoError(t, err)

	path := s.objectPath(kindBlob, id1)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	id2, err := s.PutBlob(cubeSig("Props"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing object file must not be rewritten")
}

// TestPutBlobStripsIdentity verifies that name and placement do not
// participate in blob addressing, so a renamed or moved entity
// deduplicates against its old content.
func TestPutBlobStripsIdentity(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.PutBlob(cubeSig("Props"))
	require.NoError(t, err)

	moved := cubeSig("Props|Kitchen")
	moved[signature.FieldName] = "Cube.001"
	id2, err := s.PutBlob(moved)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)

	sig, err := s.ReadBlob(id1)
	require.NoError(t, err)
	assert.NotContains(t, sig, signature.FieldName)
	assert.NotContains(t, sig, signature.FieldCollectionPath)
	assert.Equal(t, "a1b2", sig["geo_hash"])
}

// TestReadBlobMissing verifies a missing blob reads back empty without
// error.
func TestReadBlobMissing(t *testing.T) {
	s := newTestStore(t)

	sig, err := s.ReadBlob("deadbeef")
	require.NoError(t, err)
	assert.Empty(t, sig)
}

// TestReadBlobCorrupt verifies decode failures surface as
// ErrCorruptObject rather than silently falling back to empty.
func TestReadBlobCorrupt(t *testing.T) {
	s := newTestStore(t)

	id, err := s.PutBlob(cubeSig("Props"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.objectPath(kindBlob, id), []byte("{not json"), 0o644))

	_, err = s.ReadBlob(id)
	assert.ErrorIs(t, err, ErrCorruptObject)
}

// TestWriteTreeFlattenRoundTrip verifies that a flattened graph written
// as a tree reads back with name and collection_path rebuilt from walk
// position.
func TestWriteTreeFlattenRoundTrip(t *testing.T) {
	s := newTestStore(t)

	sigs := map[string]signature.Signature{
		"Cube": cubeSig("Props"),
		"Lamp": {
			signature.FieldName:           "Lamp",
			signature.FieldCollectionPath: "Props|Kitchen",
			"light_type":                  "POINT",
			"energy":                      "1000.000000",
		},
		"Camera": {
			signature.FieldName:           "Camera",
			signature.FieldCollectionPath: "",
			"lens":                        "50.000000",
		},
	}

	treeID, mapping, err := s.WriteTree(sigs)
	require.NoError(t, err)
	require.Len(t, mapping, 3)

	flat, err := s.FlattenTree(treeID)
	require.NoError(t, err)
	require.Len(t, flat, 3)

	assert.Equal(t, "Props", flat["Cube"][signature.FieldCollectionPath])
	assert.Equal(t, "Props|Kitchen", flat["Lamp"][signature.FieldCollectionPath])
	assert.Equal(t, "", flat["Camera"][signature.FieldCollectionPath])
	assert.Equal(t, "Lamp", flat["Lamp"][signature.FieldName])
	assert.Equal(t, "a1b2", flat["Cube"]["geo_hash"])
}

// TestWriteTreeRevertRestoresID verifies content addressing across
// commits: reverting a change reproduces the original tree id exactly.
func TestWriteTreeRevertRestoresID(t *testing.T) {
	s := newTestStore(t)

	base := map[string]signature.Signature{"Cube": cubeSig("Props")}

	tree1, _, err := s.WriteTree(base)
	require.NoError(t, err)

	edited := map[string]signature.Signature{"Cube": cubeSig("Props")}
	edited["Cube"]["geo_hash"] = "changed"
	tree2, _, err := s.WriteTree(edited)
	require.NoError(t, err)
	assert.NotEqual(t, tree1, tree2)

	tree3, _, err := s.WriteTree(base)
	require.NoError(t, err)
	assert.Equal(t, tree1, tree3)
}

// TestTreeDedupAcrossTrees verifies that an unchanged subtree shares
// storage between two different root trees.
func TestTreeDedupAcrossTrees(t *testing.T) {
	s := newTestStore(t)

	sigs := map[string]signature.Signature{
		"Cube": cubeSig("Props"),
		"Lamp": {
			signature.FieldName:           "Lamp",
			signature.FieldCollectionPath: "",
			"energy":                      "10.000000",
		},
	}
	_, mapping1, err := s.WriteTree(sigs)
	require.NoError(t, err)

	sigs["Lamp"]["energy"] = "99.000000"
	_, mapping2, err := s.WriteTree(sigs)
	require.NoError(t, err)

	assert.Equal(t, mapping1["Cube"], mapping2["Cube"], "unchanged entity keeps its blob id")
	assert.NotEqual(t, mapping1["Lamp"], mapping2["Lamp"])
}

// TestReadTreeMissing verifies missing and empty ids read back as an
// empty tree.
func TestReadTreeMissing(t *testing.T) {
	s := newTestStore(t)

	tree, err := s.ReadTree("nope")
	require.NoError(t, err)
	assert.Empty(t, tree.Objects)
	assert.Empty(t, tree.Children)
}

// TestCommitRoundTrip verifies commit serialization including the
// parent chain.
func TestCommitRoundTrip(t *testing.T) {
	s := newTestStore(t)

	treeID, _, err := s.WriteTree(map[string]signature.Signature{"Cube": cubeSig("")})
	require.NoError(t, err)

	root, err := s.WriteCommit(treeID, "20250101120000", "2025-01-01 12:00:00", "first", "")
	require.NoError(t, err)
	child, err := s.WriteCommit(treeID, "20250101120001", "2025-01-01 12:00:01", "second", root)
	require.NoError(t, err)

	c, err := s.ReadCommit(child)
	require.NoError(t, err)
	assert.Equal(t, treeID, c.Tree)
	assert.Equal(t, root, c.Parent())
	assert.Equal(t, "second", c.Message)
	assert.Equal(t, "20250101120001", c.UID)

	r, err := s.ReadCommit(root)
	require.NoError(t, err)
	assert.Equal(t, "", r.Parent())
}

// TestRefs walks the ref lifecycle: missing, updated, listed, deleted.
func TestRefs(t *testing.T) {
	s := newTestStore(t)

	head, err := s.ReadRef("main")
	require.NoError(t, err)
	assert.Equal(t, "", head)

	require.NoError(t, s.UpdateRef("main", "abc"))
	require.NoError(t, s.UpdateRef("lighting", "def"))

	head, err = s.ReadRef("main")
	require.NoError(t, err)
	assert.Equal(t, "abc", head)

	branches, err := s.ListBranches()
	require.NoError(t, err)
	assert.Equal(t, []string{"lighting", "main"}, branches)

	require.NoError(t, s.DeleteRef("lighting"))
	require.NoError(t, s.DeleteRef("lighting"), "deleting a missing ref is not an error")

	branches, err = s.ListBranches()
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches)
}

// TestRefsRejectUnsafeNames verifies branch names cannot escape the
// refs directory.
func TestRefsRejectUnsafeNames(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		err := s.UpdateRef(name, "abc")
		assert.ErrorIs(t, err, ErrInvalidBranch, "branch %q", name)
		_, err = s.ReadRef(name)
		assert.ErrorIs(t, err, ErrInvalidBranch, "branch %q", name)
	}
}

// TestUpdateRefInterrupted verifies that a ref update killed between
// the temp-file write and the rename leaves the prior value intact. A
// stray temp file in refs/heads stands in for the interrupted writer.
func TestUpdateRefInterrupted(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpdateRef("main", "abc"))

	stray := filepath.Join(s.refsDir(), ".tmp-interrupted")
	require.NoError(t, os.WriteFile(stray, []byte("def"), 0o644))

	head, err := s.ReadRef("main")
	require.NoError(t, err)
	assert.Equal(t, "abc", head, "prior ref value must survive")

	branches, err := s.ListBranches()
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches, "temp files are not branches")
}
