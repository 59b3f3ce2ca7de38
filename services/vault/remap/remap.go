// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remap

import (
	"log/slog"
	"strings"

	"github.com/AleutianAI/BlendVault/services/vault/scene"
)

// Remapper resolves reference names against a freshly duplicated
// entity set and a pre-existing destination set.
//
// Description:
//
//	Resolution order, most specific first:
//	 (a) exact name match among the new duplicates;
//	 (b) match via a duplicate's recorded origin name;
//	 (c) suffix heuristic: a suffixed requester asking for its own
//	     base name resolves to a new duplicate sharing that base;
//	 (d) fallback to a pre-existing destination entity of that name;
//	 (e) unresolved references are cleared, never left pointing at a
//	     stale object from a prior graph generation.
//
//	Rule (c) applies a first-match heuristic and is ambiguous when
//	several same-based duplicates exist. Kept as-is intentionally.
//
// Thread Safety: NOT safe for concurrent use.
type Remapper struct {
	fresh    map[string]*scene.Entity
	existing map[string]*scene.Entity
	origins  *OriginIndex
	log      *slog.Logger
}

// NewRemapper builds a remapper over the duplicate set.
//
// Inputs:
//   - fresh: newly duplicated entities keyed by current name.
//   - existing: pre-existing destination entities keyed by name.
//   - origins: side table from the duplication operation; may be nil.
func NewRemapper(fresh, existing map[string]*scene.Entity, origins *OriginIndex, log *slog.Logger) *Remapper {
	if origins == nil {
		origins = NewOriginIndex()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Remapper{fresh: fresh, existing: existing, origins: origins, log: log}
}

// Resolve maps a reference name to its replacement entity name.
//
// Outputs:
//   - string: replacement name, or "" when unresolved (rule (e)).
//   - bool: whether a replacement was found.
func (r *Remapper) Resolve(targetName, requesterName string) (string, bool) {
	if targetName == "" {
		return "", false
	}

	// (a) exact match among the duplicates.
	if _, ok := r.fresh[targetName]; ok {
		return targetName, true
	}

	// (b) a duplicate whose origin is the target.
	if dup := r.origins.Duplicate(targetName); dup != "" {
		if _, ok := r.fresh[dup]; ok {
			return dup, true
		}
	}

	// (c) suffix heuristic: a suffixed requester resolving its own
	// base name prefers a fresh duplicate sharing that base. First
	// match wins.
	targetBase := BaseName(targetName)
	if requesterName != "" {
		requesterBase := BaseName(requesterName)
		if requesterName != requesterBase && targetName == targetBase && requesterBase == targetBase {
			if _, ok := r.fresh[targetBase]; ok {
				return targetBase, true
			}
		}
	}
	if targetBase == targetName {
		for name := range r.fresh {
			if name != targetName && strings.HasPrefix(name, targetName+".") && BaseName(name) == targetName {
				return name, true
			}
			if origin := r.origins.Origin(name); origin != "" && BaseName(origin) == targetName {
				return name, true
			}
		}
	}

	// (d) pre-existing destination entity.
	if _, ok := r.existing[targetName]; ok {
		return targetName, true
	}
	if targetBase != targetName {
		if _, ok := r.fresh[targetBase]; ok {
			return targetBase, true
		}
		if _, ok := r.existing[targetBase]; ok {
			return targetBase, true
		}
	}

	return "", false
}

// RemapEntity re-points every structural reference held by one entity.
// Unresolved references are cleared.
func (r *Remapper) RemapEntity(e *scene.Entity) {
	resolve := func(target string) string {
		if target == "" {
			return ""
		}
		replacement, ok := r.Resolve(target, e.Name)
		if !ok {
			r.log.Debug("clearing unresolved reference",
				"entity", e.Name, "target", target)
			return ""
		}
		return replacement
	}

	e.Parent = resolve(e.Parent)
	for i := range e.Modifiers {
		e.Modifiers[i].Target = resolve(e.Modifiers[i].Target)
	}
	for i := range e.Constraints {
		e.Constraints[i].Target = resolve(e.Constraints[i].Target)
	}
	if e.Curve != nil {
		e.Curve.BevelObject = resolve(e.Curve.BevelObject)
		e.Curve.TaperObject = resolve(e.Curve.TaperObject)
	}
}

// RemapAll runs RemapEntity over every fresh duplicate. Cost is
// O(duplicates x references per entity).
func (r *Remapper) RemapAll() {
	for _, e := range r.fresh {
		r.RemapEntity(e)
	}
}
