// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mirror

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGit records invocations and maps git subcommands to canned
// results.
type fakeGit struct {
	calls  [][]string
	fail   map[string]error
	output map[string]string
}

func (f *fakeGit) run(_ context.Context, _ string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	sub := args[0]
	return f.output[sub], f.fail[sub]
}

func (f *fakeGit) subcommands() []string {
	var subs []string
	for _, call := range f.calls {
		subs = append(subs, call[0])
	}
	return subs
}

// newTestBridge builds an enabled bridge over a store layout with
// objects and refs directories, git replaced by the fake.
func newTestBridge(t *testing.T, fake *fakeGit) *Bridge {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"objects", "refs"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	// A .git directory skips the init step, keeping the call sequence
	// deterministic.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))

	b := NewBridge(dir, true, nil)
	b.run = fake.run
	return b
}

func TestCommitDisabled(t *testing.T) {
	fake := &fakeGit{}
	b := NewBridge(t.TempDir(), false, nil)
	b.run = fake.run

	ok, reason := b.Commit(context.Background(), "main", "msg", "uid")
	assert.False(t, ok)
	assert.Equal(t, ReasonDisabled, reason)
	assert.Empty(t, fake.calls, "a disabled bridge must not touch git")
}

func TestCommitHappyPath(t *testing.T) {
	requireGitOnPath(t)
	fake := &fakeGit{}
	b := newTestBridge(t, fake)

	ok, reason := b.Commit(context.Background(), "main", "tweak lighting", "20250101120000")
	assert.True(t, ok)
	assert.Equal(t, ReasonOK, reason)
	assert.Equal(t, []string{"add", "add", "checkout", "commit"}, fake.subcommands())

	last := fake.calls[len(fake.calls)-1]
	assert.Equal(t, "tweak lighting [20250101120000]", last[len(last)-1])
}

func TestCommitInitializesRepository(t *testing.T) {
	requireGitOnPath(t)
	fake := &fakeGit{}
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "objects"), 0o755))

	b := NewBridge(dir, true, nil)
	b.run = fake.run

	ok, reason := b.Commit(context.Background(), "main", "msg", "uid")
	assert.True(t, ok)
	assert.Equal(t, ReasonOK, reason)
	require.NotEmpty(t, fake.calls)
	assert.Equal(t, "init", fake.calls[0][0])
}

func TestCommitStageFailure(t *testing.T) {
	requireGitOnPath(t)
	fake := &fakeGit{fail: map[string]error{"add": errors.New("index locked")}}
	b := newTestBridge(t, fake)

	ok, reason := b.Commit(context.Background(), "main", "msg", "uid")
	assert.False(t, ok)
	assert.Equal(t, ReasonStageFailed, reason)
}

func TestCommitNothingToCommit(t *testing.T) {
	requireGitOnPath(t)
	fake := &fakeGit{
		fail:   map[string]error{"commit": errors.New("exit status 1")},
		output: map[string]string{"commit": "nothing to commit, working tree clean"},
	}
	b := newTestBridge(t, fake)

	ok, reason := b.Commit(context.Background(), "main", "msg", "uid")
	assert.False(t, ok)
	assert.Equal(t, ReasonNothingToDo, reason)
}

func TestCommitFailure(t *testing.T) {
	requireGitOnPath(t)
	fake := &fakeGit{
		fail:   map[string]error{"commit": errors.New("exit status 128")},
		output: map[string]string{"commit": "fatal: bad object"},
	}
	b := newTestBridge(t, fake)

	ok, reason := b.Commit(context.Background(), "main", "msg", "uid")
	assert.False(t, ok)
	assert.Equal(t, ReasonCommitFailed, reason)
}

func TestCommitNoStoreDirectories(t *testing.T) {
	requireGitOnPath(t)
	fake := &fakeGit{}
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))

	b := NewBridge(dir, true, nil)
	b.run = fake.run

	ok, reason := b.Commit(context.Background(), "main", "msg", "uid")
	assert.False(t, ok)
	assert.Equal(t, ReasonNothingToDo, reason)
}

// requireGitOnPath skips when the git binary is absent; Commit bails
// out with ReasonGitMissing before reaching the swapped runner.
func requireGitOnPath(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not on PATH")
	}
}
