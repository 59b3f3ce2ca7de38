// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff compares flattened signature maps into changed-sets and
// expands them over parent/child and pointer dependencies.
package diff

import (
	"sort"

	"github.com/AleutianAI/BlendVault/services/vault/signature"
)

// DeriveChangedSet compares two flattened signature maps.
//
// Description:
//
//	Names present on only one side are unconditionally changed
//	(additions and removals). For names present on both sides, every
//	field in the union of the two key sets is compared; the first
//	mismatch marks the name changed. The result is sorted so callers
//	get deterministic output.
//
// Inputs:
//   - current:  live graph signatures.
//   - previous: signatures flattened from the prior commit.
//
// Outputs:
//   - bool: whether any change exists.
//   - []string: sorted changed names.
func DeriveChangedSet(current, previous map[string]signature.Signature) (bool, []string) {
	changed := make(map[string]bool)

	for name := range current {
		if _, ok := previous[name]; !ok {
			changed[name] = true
		}
	}
	for name := range previous {
		if _, ok := current[name]; !ok {
			changed[name] = true
		}
	}

	for name, cur := range current {
		if changed[name] {
			continue
		}
		prev, ok := previous[name]
		if !ok {
			continue
		}
		if !fieldsEqual(cur, prev) {
			changed[name] = true
		}
	}

	names := make([]string, 0, len(changed))
	for n := range changed {
		names = append(names, n)
	}
	sort.Strings(names)
	return len(names) > 0, names
}

// fieldsEqual compares the union of keys from both signatures. A key
// absent on one side compares against the empty string.
func fieldsEqual(a, b signature.Signature) bool {
	for k, av := range a {
		if av != b[k] {
			return false
		}
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok && bv != "" {
			return false
		}
	}
	return true
}

// ShouldSkip is the fast pre-check run before a full comparison: a
// commit is skippable only when the previous name set is a subset of
// the current one and no field changed.
func ShouldSkip(current, previous map[string]signature.Signature) bool {
	for name := range previous {
		if _, ok := current[name]; !ok {
			return false
		}
	}
	hasChanges, _ := DeriveChangedSet(current, previous)
	return !hasChanges
}

// Dependencies resolves pointer references for one entity name:
// modifier targets, constraint targets, curve bevel/taper objects.
// The parent link is handled separately through the signature map.
type Dependencies func(name string) []string

// ExpandClosure grows a changed-set to a structurally self-consistent
// snapshot boundary.
//
// Description:
//
//	Two rules run to a fixed point: (1) a changed parent drags every
//	structural child in, via the "parent" field of the current
//	signature map; (2) an entity holding a pointer dependency on a
//	changed entity is dragged in too. Expansion stops when a full
//	pass adds nothing, guaranteeing the snapshot never references an
//	entity outside itself that needs re-creation.
//
// Inputs:
//   - changed: initial changed names.
//   - current: live graph signatures (supplies parent links).
//   - deps: pointer-dependency resolver; may be nil.
//
// Outputs:
//   - []string: sorted closure-expanded names.
func ExpandClosure(changed []string, current map[string]signature.Signature, deps Dependencies) []string {
	set := make(map[string]bool, len(changed))
	for _, n := range changed {
		set[n] = true
	}

	for {
		grew := false
		for name, sig := range current {
			if set[name] {
				continue
			}
			if parent := sig["parent"]; parent != "" && set[parent] {
				set[name] = true
				grew = true
				continue
			}
			if deps != nil {
				for _, dep := range deps(name) {
					if set[dep] {
						set[name] = true
						grew = true
						break
					}
				}
			}
		}
		if !grew {
			break
		}
	}

	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
