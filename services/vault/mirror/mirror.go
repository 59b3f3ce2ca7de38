// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mirror is the optional bridge to an external git tool: after
// each commit it stages the store's objects and refs and commits them
// on a matching branch, so an ordinary git remote can carry the vault
// history.
//
// Every failure here is a logged warning. Mirroring never propagates
// an error into the core commit path.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Outcome reasons reported by Commit.
const (
	ReasonOK           = "ok"
	ReasonDisabled     = "disabled"
	ReasonGitMissing   = "git_not_available"
	ReasonInitFailed   = "init_failed"
	ReasonStageFailed  = "stage_failed"
	ReasonCommitFailed = "commit_failed"
	ReasonNothingToDo  = "nothing_to_commit"
)

// Bridge mirrors a store directory into a git repository.
//
// Thread Safety: NOT safe for concurrent use; the engine serializes
// commits anyway.
type Bridge struct {
	storeDir string
	enabled  bool
	timeout  time.Duration
	log      *slog.Logger

	// run is swapped in tests.
	run func(ctx context.Context, dir string, args ...string) (string, error)
}

// NewBridge builds a bridge over the store directory. A disabled
// bridge reports ReasonDisabled from every call.
func NewBridge(storeDir string, enabled bool, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	b := &Bridge{
		storeDir: storeDir,
		enabled:  enabled,
		timeout:  30 * time.Second,
		log:      log,
	}
	b.run = b.runGit
	return b
}

func (b *Bridge) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Blend Vault",
		"GIT_AUTHOR_EMAIL=blendvault@example.local",
		"GIT_COMMITTER_NAME=Blend Vault",
		"GIT_COMMITTER_EMAIL=blendvault@example.local",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// Commit mirrors the store state as one git commit on branch.
//
// Description:
//
//	Initializes the repository on first use, stages the objects and
//	refs directories, switches to the mirror branch, and commits
//	with the vault message and uid. Never returns an error: callers
//	get (ok, reason) and treat failures as warnings.
func (b *Bridge) Commit(ctx context.Context, branch, message, uid string) (bool, string) {
	if !b.enabled {
		return false, ReasonDisabled
	}
	if _, err := exec.LookPath("git"); err != nil {
		return false, ReasonGitMissing
	}

	if _, err := os.Stat(filepath.Join(b.storeDir, ".git")); err != nil {
		if out, err := b.run(ctx, b.storeDir, "init", "--quiet"); err != nil {
			b.log.Warn("mirror init failed", "output", out, "error", err)
			return false, ReasonInitFailed
		}
	}

	staged := false
	for _, dir := range []string{"objects", "refs"} {
		if _, err := os.Stat(filepath.Join(b.storeDir, dir)); err != nil {
			continue
		}
		if out, err := b.run(ctx, b.storeDir, "add", "--", dir); err != nil {
			b.log.Warn("mirror staging failed", "dir", dir, "output", out, "error", err)
			return false, ReasonStageFailed
		}
		staged = true
	}
	if !staged {
		return false, ReasonNothingToDo
	}

	// checkout -B moves or creates the mirror branch without touching
	// the work tree content we just staged.
	if out, err := b.run(ctx, b.storeDir, "checkout", "--quiet", "-B", branch); err != nil {
		b.log.Warn("mirror branch switch failed", "branch", branch, "output", out, "error", err)
		return false, ReasonCommitFailed
	}

	subject := fmt.Sprintf("%s [%s]", message, uid)
	out, err := b.run(ctx, b.storeDir, "commit", "--quiet", "-m", subject)
	if err != nil {
		if bytes.Contains([]byte(out), []byte("nothing to commit")) {
			return false, ReasonNothingToDo
		}
		b.log.Warn("mirror commit failed", "output", out, "error", err)
		return false, ReasonCommitFailed
	}

	b.log.Info("store mirrored to git", "branch", branch, "uid", uid)
	return true, ReasonOK
}
