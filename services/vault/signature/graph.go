// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signature

import (
	"sort"
	"strings"

	"github.com/AleutianAI/BlendVault/services/vault/scene"
)

// summaryFields is the ordered field list folded into the whole-graph
// hash for each entity. A cheap summary, not the full signature.
var summaryFields = []string{
	"parent", "type", "data_name", "transform", "dims",
	"verts", "modifiers", "vgroups", "uv_meta",
	"shapekeys_meta", "shapekeys_values", "materials",
	"edges", "polygons", "geo_hash",
	"light_meta", "camera_meta", FieldCollectionPath,
	"curve_meta", "curve_points_hash",
	"armature_meta", "armature_bones_hash",
}

// ComputeGraphSignature fingerprints every entity reachable from root.
//
// Description:
//
//	Depth-first traversal of the group tree. Each entity records its
//	group path relative to root (root excluded, segments joined with
//	"|"). An entity linked into more than one group is recorded only
//	at first discovery; the visited set uses pointer identity, so a
//	later link to the same entity is skipped, not re-pathed. The
//	returned graph hash covers the sorted per-entity summaries and
//	answers "did anything change" in one comparison.
//
// Inputs:
//   - root: group tree root. May be nil or empty.
//
// Outputs:
//   - map[string]Signature: entity name to full signature.
//   - string: the whole-graph hash.
func ComputeGraphSignature(root *scene.Group) (map[string]Signature, string) {
	sigs := make(map[string]Signature)
	if root != nil {
		seen := make(map[*scene.Entity]bool)
		scene.Walk(root, func(g *scene.Group, path string) {
			for _, e := range g.Entities {
				if seen[e] {
					continue
				}
				seen[e] = true
				sig := ComputeEntitySignature(e)
				if sig[FieldName] == "" {
					continue
				}
				sig[FieldCollectionPath] = path
				sigs[sig[FieldName]] = sig
			}
		})
	}
	return sigs, GraphHash(sigs)
}

// GraphHash folds a signature map into one digest. Entities are
// visited in sorted name order so enumeration order never matters.
func GraphHash(sigs map[string]Signature) string {
	names := make([]string, 0, len(sigs))
	for n := range sigs {
		names = append(names, n)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, n := range names {
		s := sigs[n]
		fields := make([]string, 0, len(summaryFields)+1)
		fields = append(fields, n)
		for _, f := range summaryFields {
			fields = append(fields, s[f])
		}
		lines = append(lines, strings.Join(fields, "|"))
	}
	return sha256Hex(strings.Join(lines, "\n"))
}
