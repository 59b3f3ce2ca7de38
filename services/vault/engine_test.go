// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/BlendVault/pkg/logging"
	"github.com/AleutianAI/BlendVault/services/vault/scene"
	"github.com/AleutianAI/BlendVault/services/vault/snapshot"
)

// testClock is a manually advanced engine clock.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestEngine builds an engine over a populated document with an
// in-memory journal and a quiet logger.
func newTestEngine(t *testing.T) (*Engine, *scene.Document, *testClock) {
	t.Helper()

	doc := scene.NewDocument()
	mustAdd := func(e *scene.Entity, g *scene.Group) {
		t.Helper()
		if _, err := doc.AddEntity(e, g); err != nil {
			t.Fatalf("add %s: %v", e.Name, err)
		}
	}
	mustAdd(&scene.Entity{
		Name: "Cube", Type: scene.TypeMesh,
		Mesh: &scene.Mesh{Vertices: []scene.Vec3{{0, 0, 0}, {1, 0, 0}}},
	}, doc.Source())
	mustAdd(&scene.Entity{
		Name: "Lamp", Type: scene.TypeLight,
		Light: &scene.Light{Kind: "POINT", Energy: 1000},
	}, doc.Source())

	cfg := DefaultConfig(t.TempDir())
	cfg.JournalInMemory = true

	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	eng, err := NewEngine(doc, cfg,
		WithClock(clock.Now),
		WithLogger(logging.New(logging.Config{Quiet: true})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	return eng, doc, clock
}

func TestCommitValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Commit(ctx, "", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	// The archive does not exist until Initialize runs.
	_, err = eng.Commit(ctx, "", "first")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeAndCommitFlow(t *testing.T) {
	eng, doc, clock := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", res.Branch)
	assert.Equal(t, "20250101120000", res.UID)
	assert.NotEmpty(t, res.CommitID)
	assert.ElementsMatch(t, []string{"Cube", "Lamp"}, res.Changed)
	assert.True(t, strings.HasPrefix(res.SnapshotName, "main-initialize_"), res.SnapshotName)
	assert.Equal(t, "disabled", res.MirrorStatus)

	// Nothing moved, so a second commit is a no-op.
	_, err = eng.Commit(ctx, "", "noop")
	assert.ErrorIs(t, err, ErrNoChanges)

	clock.Advance(time.Minute)
	cube, _ := doc.LookupEntity("Cube")
	cube.Mesh.Vertices[0] = scene.Vec3{2, 0, 0}

	res2, err := eng.Commit(ctx, "", "move cube")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cube"}, res2.Changed)
	assert.Greater(t, res2.UID, res.UID)
	assert.NotEqual(t, res.TreeID, res2.TreeID)

	log, err := eng.Log(ctx, "")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, res2.CommitID, log[0].ID)
	assert.Equal(t, res.CommitID, log[1].ID)
	assert.Equal(t, res.CommitID, log[0].Commit.Parent())
}

// TestCommitRevertRestoresTree verifies content addressing end to end:
// undoing an edit by hand reproduces the earlier tree id.
func TestCommitRevertRestoresTree(t *testing.T) {
	eng, doc, clock := newTestEngine(t)
	ctx := context.Background()

	res1, err := eng.Initialize(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	cube, _ := doc.LookupEntity("Cube")
	cube.Mesh.Vertices[0] = scene.Vec3{5, 5, 5}
	res2, err := eng.Commit(ctx, "", "move cube")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	cube.Mesh.Vertices[0] = scene.Vec3{0, 0, 0}
	res3, err := eng.Commit(ctx, "", "move it back")
	require.NoError(t, err)

	assert.Equal(t, res1.TreeID, res3.TreeID)
	assert.NotEqual(t, res1.TreeID, res2.TreeID)
	assert.NotEqual(t, res1.CommitID, res3.CommitID)
}

func TestCheckoutRestoresEarlierState(t *testing.T) {
	eng, doc, clock := newTestEngine(t)
	ctx := context.Background()

	res1, err := eng.Initialize(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	cube, _ := doc.LookupEntity("Cube")
	cube.Mesh.Vertices[0] = scene.Vec3{5, 5, 5}
	res2, err := eng.Commit(ctx, "", "move cube")
	require.NoError(t, err)

	counts, err := eng.Checkout(ctx, "", res1.UID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Restored)
	assert.Equal(t, 0, counts.Skipped)

	restored, ok := doc.LookupEntity("Cube")
	require.True(t, ok)
	assert.Equal(t, scene.Vec3{0, 0, 0}, restored.Mesh.Vertices[0])

	// Checkout never moves the ref; the branch head stays at the
	// newest commit.
	head, err := eng.Store().ReadRef("main")
	require.NoError(t, err)
	assert.Equal(t, res2.CommitID, head)
}

func TestCheckoutUnknownUID(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Initialize(ctx)
	require.NoError(t, err)

	_, err = eng.Checkout(ctx, "", "29990101000000")
	assert.ErrorIs(t, err, ErrUnknownCommit)
}

func TestUndoCommit(t *testing.T) {
	eng, doc, clock := newTestEngine(t)
	ctx := context.Background()

	res1, err := eng.Initialize(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	cube, _ := doc.LookupEntity("Cube")
	cube.Mesh.Vertices[0] = scene.Vec3{5, 5, 5}
	res2, err := eng.Commit(ctx, "", "move cube")
	require.NoError(t, err)

	uid, err := eng.UndoCommit(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, res2.UID, uid)

	head, err := eng.Store().ReadRef("main")
	require.NoError(t, err)
	assert.Equal(t, res1.CommitID, head)

	// The undone commit's archive snapshot is gone; the first one
	// survives.
	for _, g := range doc.Archive().Children {
		assert.NotEqual(t, res2.UID, g.TagValue(snapshot.TagUID))
	}
	assert.NotEmpty(t, doc.Archive().Children)

	// Undoing the root commit clears the branch entirely.
	uid, err = eng.UndoCommit(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, res1.UID, uid)

	_, err = eng.UndoCommit(ctx, "")
	assert.ErrorIs(t, err, ErrNoCommits)
}

func TestBranchLifecycle(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Branching needs a source head.
	err := eng.CreateBranch(ctx, "lighting", "")
	assert.ErrorIs(t, err, ErrNoCommits)

	res, err := eng.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, eng.CreateBranch(ctx, "lighting", ""))
	assert.ErrorIs(t, eng.CreateBranch(ctx, "lighting", ""), ErrBranchExists)

	head, err := eng.Store().ReadRef("lighting")
	require.NoError(t, err)
	assert.Equal(t, res.CommitID, head, "new branch starts at the source head")

	branches, err := eng.Branches()
	require.NoError(t, err)
	assert.Equal(t, []string{"lighting", "main"}, branches)

	assert.ErrorIs(t, eng.DeleteBranch(ctx, "main"), ErrProtectedBranch)

	require.NoError(t, eng.DeleteBranch(ctx, "lighting"))
	branches, err = eng.Branches()
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, branches)
}

func TestCommitOnSecondBranch(t *testing.T) {
	eng, doc, clock := newTestEngine(t)
	ctx := context.Background()

	res1, err := eng.Initialize(ctx)
	require.NoError(t, err)
	require.NoError(t, eng.CreateBranch(ctx, "lighting", ""))

	clock.Advance(time.Minute)
	lamp, _ := doc.LookupEntity("Lamp")
	lamp.Light.Energy = 50

	res2, err := eng.Commit(ctx, "lighting", "dim the lamp")
	require.NoError(t, err)
	assert.Equal(t, "lighting", res2.Branch)
	assert.Equal(t, []string{"Lamp"}, res2.Changed)

	// main keeps its old head.
	head, err := eng.Store().ReadRef("main")
	require.NoError(t, err)
	assert.Equal(t, res1.CommitID, head)

	log, err := eng.Log(ctx, "lighting")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, res2.CommitID, log[0].ID)
}

// TestLogAnsweredFromJournalIndex verifies Log serves history from the
// journal without reading commit object files. Deleting the parent
// commit object would truncate a store walk to one entry, so a
// two-entry log proves the index path.
func TestLogAnsweredFromJournalIndex(t *testing.T) {
	eng, doc, clock := newTestEngine(t)
	ctx := context.Background()

	res1, err := eng.Initialize(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	cube, _ := doc.LookupEntity("Cube")
	cube.Mesh.Vertices[0] = scene.Vec3{3, 0, 0}
	res2, err := eng.Commit(ctx, "", "move cube")
	require.NoError(t, err)

	parentObj := filepath.Join(eng.cfg.StoreDir, "objects", "commits", res1.CommitID+".json")
	require.NoError(t, os.Remove(parentObj))

	walked, err := eng.Store().ListBranchCommits("main", 0)
	require.NoError(t, err)
	require.Len(t, walked, 1, "the store walk stops at the missing object")

	log, err := eng.Log(ctx, "")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, res2.CommitID, log[0].ID)
	assert.Equal(t, res1.CommitID, log[1].ID)
	assert.Equal(t, res1.CommitID, log[0].Commit.Parent())
	assert.Equal(t, res2.TreeID, log[0].Commit.Tree)
	assert.Equal(t, "move cube", log[0].Commit.Message)
}

func TestChangedBetween(t *testing.T) {
	eng, doc, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ChangedBetween(ctx, "", "", "")
	assert.ErrorIs(t, err, ErrNoCommits)

	res1, err := eng.Initialize(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	cube, _ := doc.LookupEntity("Cube")
	cube.Mesh.Vertices[0] = scene.Vec3{4, 0, 0}
	res2, err := eng.Commit(ctx, "", "move cube")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	lamp, _ := doc.LookupEntity("Lamp")
	lamp.Light.Energy = 250
	res3, err := eng.Commit(ctx, "", "dim the lamp")
	require.NoError(t, err)

	names, err := eng.ChangedBetween(ctx, "", res1.UID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cube", "Lamp"}, names)

	names, err = eng.ChangedBetween(ctx, "", res2.UID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lamp"}, names)

	names, err = eng.ChangedBetween(ctx, "", res1.UID, res2.UID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cube"}, names)

	names, err = eng.ChangedBetween(ctx, "", res3.UID, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
