// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scene

import "errors"

var (
	// ErrDuplicateName indicates an entity or group name collision in
	// the document's global namespace.
	ErrDuplicateName = errors.New("scene: duplicate name")

	// ErrNotFound indicates a lookup for an entity or group that does
	// not exist in the document.
	ErrNotFound = errors.New("scene: not found")

	// ErrNotLinked indicates an unlink for an entity that is not a
	// member of the given group.
	ErrNotLinked = errors.New("scene: entity not linked to group")
)
