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

import "errors"

var (
	// ErrStoreIO wraps disk failures. Write-once and atomic-rename
	// semantics guarantee no existing object is corrupted when a write
	// fails, and retries are safe because ids are pure functions of
	// content.
	ErrStoreIO = errors.New("cas: store io failure")

	// ErrCorruptObject indicates a stored object that no longer parses
	// or whose type tag does not match the requested kind.
	ErrCorruptObject = errors.New("cas: corrupt object")

	// ErrInvalidBranch indicates a branch name that would escape the
	// refs directory or is empty.
	ErrInvalidBranch = errors.New("cas: invalid branch name")
)
