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

import "errors"

var (
	// ErrNotInitialized indicates the document has no archive yet.
	// Initialize must run before the first commit.
	ErrNotInitialized = errors.New("vault: store not initialized")

	// ErrEmptyMessage indicates a commit was requested without a
	// message.
	ErrEmptyMessage = errors.New("vault: commit message is empty")

	// ErrNoChanges indicates the working graph matches the branch
	// head, so the commit was skipped.
	ErrNoChanges = errors.New("vault: no changes detected")

	// ErrNoCommits indicates the branch has no history.
	ErrNoCommits = errors.New("vault: branch has no commits")

	// ErrUnknownCommit indicates no commit with the requested uid
	// exists on the branch.
	ErrUnknownCommit = errors.New("vault: unknown commit uid")

	// ErrBranchExists indicates a branch creation collided with an
	// existing ref.
	ErrBranchExists = errors.New("vault: branch already exists")

	// ErrProtectedBranch indicates an attempt to delete the default
	// branch.
	ErrProtectedBranch = errors.New("vault: default branch cannot be deleted")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("vault: invalid configuration")
)
