// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"sort"

	"github.com/AleutianAI/BlendVault/services/vault/remap"
	"github.com/AleutianAI/BlendVault/services/vault/scene"
	"github.com/AleutianAI/BlendVault/services/vault/signature"
)

// restoreTag names freshly restored duplicates before their final
// rename.
const restoreTag = "restored"

// ListSnapshots returns the archive's snapshot groups for one source
// name, newest first, optionally bounded by maxUID (inclusive). Pass
// maxUID == "" for no bound.
func (m *Manager) ListSnapshots(sourceName, maxUID string) []*scene.Group {
	if !m.hasArchive() {
		return nil
	}
	archive := m.host.Archive()

	type item struct {
		uid  string
		root *scene.Group
	}
	var items []item
	for _, g := range archive.Children {
		uid := g.TagValue(TagUID)
		if uid == "" || g.TagValue(TagOrigName) != sourceName {
			continue
		}
		if maxUID != "" && uid > maxUID {
			continue
		}
		items = append(items, item{uid: uid, root: g})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].uid > items[j].uid })

	roots := make([]*scene.Group, len(items))
	for i, it := range items {
		roots[i] = it.root
	}
	return roots
}

func (m *Manager) hasArchive() bool {
	if doc, ok := m.host.(*scene.Document); ok {
		return doc.HasArchive()
	}
	return true
}

// snapshotEntry locates one entity inside a snapshot root: the
// duplicate itself and the entity's original group path (snapshot
// groups carry their origin names as tags).
type snapshotEntry struct {
	entity *scene.Entity
	path   string
}

// indexSnapshot maps origin names to entries for one snapshot root.
// Origins are reconstructed from duplicate names by stripping the uid
// suffix; no identity state lives on the entities.
func indexSnapshot(root *scene.Group) map[string]snapshotEntry {
	out := make(map[string]snapshotEntry)
	var walk func(g *scene.Group, path string)
	walk = func(g *scene.Group, path string) {
		for _, e := range g.Entities {
			origin := remap.BaseName(e.Name)
			if origin == "" {
				continue
			}
			if _, ok := out[origin]; !ok {
				out[origin] = snapshotEntry{entity: e, path: path}
			}
		}
		for _, child := range g.Children {
			seg := child.TagValue(TagOrigName)
			if seg == "" {
				seg = remap.BaseName(child.Name)
			}
			childPath := seg
			if path != "" {
				childPath = path + "/" + seg
			}
			walk(child, childPath)
		}
	}
	walk(root, "")
	return out
}

// RestoreCounts summarizes one restore operation.
type RestoreCounts struct {
	Restored int
	Skipped  int
	Removed  int
}

// Restore replays a desired state into the destination group.
//
// Description:
//
//	The desired map comes from flattening a target commit's tree.
//	Every destination entity absent from the desired set is removed.
//	For each desired name, the snapshot roots are searched newest to
//	oldest for a duplicate of that origin; the first found is
//	re-duplicated into a destination path mirroring its original
//	group location, references among the restored set are remapped,
//	the previous live entity of that name is deleted, and duplicates
//	end up renamed to their final, unsuffixed names. A name absent
//	from every searched snapshot is counted and skipped; partial
//	success beats total failure.
//
// Inputs:
//   - desired: flattened target state, name to signature.
//   - destination: live group to restore into.
//   - roots: snapshot roots to search, newest first.
func (m *Manager) Restore(desired map[string]signature.Signature, destination *scene.Group, roots []*scene.Group) (RestoreCounts, error) {
	var counts RestoreCounts

	// Current destination entities by name.
	currentOf := func() map[string]*scene.Entity {
		out := make(map[string]*scene.Entity)
		scene.Walk(destination, func(g *scene.Group, _ string) {
			for _, e := range g.Entities {
				if _, ok := out[e.Name]; !ok {
					out[e.Name] = e
				}
			}
		})
		return out
	}

	// Remove entities outside the desired set.
	for name := range currentOf() {
		if _, ok := desired[name]; !ok {
			if err := m.host.RemoveEntity(name); err == nil {
				counts.Removed++
			}
		}
	}

	current := currentOf()
	indexes := make([]map[string]snapshotEntry, len(roots))
	for i, root := range roots {
		indexes[i] = indexSnapshot(root)
	}

	desiredNames := make([]string, 0, len(desired))
	for name := range desired {
		desiredNames = append(desiredNames, name)
	}
	sort.Strings(desiredNames)

	origins := remap.NewOriginIndex()
	restored := make(map[string]*scene.Entity)
	replaced := make(map[string]*scene.Entity)

	for _, name := range desiredNames {
		var entry snapshotEntry
		found := false
		for _, idx := range indexes {
			if e, ok := idx[name]; ok {
				entry = e
				found = true
				break
			}
		}
		if !found {
			counts.Skipped++
			m.log.Warn("entity absent from snapshot history", "entity", name)
			continue
		}

		dest := destination
		if entry.path != "" {
			mirrored, err := ensurePath(m.host, destination, entry.path)
			if err != nil {
				return counts, err
			}
			dest = mirrored
		}

		dup := CopyEntity(entry.entity)
		dup.Name = m.uniqueName(name, restoreTag)
		finalName, err := m.host.AddEntity(dup, dest)
		if err != nil {
			counts.Skipped++
			continue
		}
		if old, ok := current[name]; ok {
			replaced[name] = old
		}
		origins.Record(finalName, name)
		restored[name] = dup
		counts.Restored++
	}

	// Rebuild parenting from the desired state, origin-level names.
	desiredParent := make(map[string]string, len(desired))
	for name, sig := range desired {
		desiredParent[name] = sig["parent"]
	}
	fixParenting(restored, desiredParent)

	// Re-point remaining references among the restored set.
	fresh := make(map[string]*scene.Entity, len(restored))
	for _, e := range restored {
		fresh[e.Name] = e
	}
	remap.NewRemapper(fresh, current, origins, m.log).RemapAll()

	// Replace the old live entities and claim their names.
	renames := make(map[string]string, len(restored))
	for name := range restored {
		if _, ok := replaced[name]; ok {
			if err := m.host.RemoveEntity(name); err != nil {
				m.log.Warn("stale entity not removed", "entity", name, "error", err)
			}
		}
	}
	for name, dup := range restored {
		oldName := dup.Name
		finalName, err := m.host.Rename(dup, name)
		if err != nil {
			m.log.Warn("rename failed", "entity", name, "error", err)
			continue
		}
		renames[oldName] = finalName
	}

	// References recorded against the suffixed names follow the
	// renames.
	for _, dup := range restored {
		substituteNames(dup, renames)
	}

	return counts, nil
}

func substituteNames(e *scene.Entity, renames map[string]string) {
	sub := func(name string) string {
		if to, ok := renames[name]; ok {
			return to
		}
		return name
	}
	e.Parent = sub(e.Parent)
	for i := range e.Modifiers {
		e.Modifiers[i].Target = sub(e.Modifiers[i].Target)
	}
	for i := range e.Constraints {
		e.Constraints[i].Target = sub(e.Constraints[i].Target)
	}
	if e.Curve != nil {
		e.Curve.BevelObject = sub(e.Curve.BevelObject)
		e.Curve.TaperObject = sub(e.Curve.TaperObject)
	}
}

// ensurePath mirrors a "/"-separated group path under root.
func ensurePath(host scene.Host, root *scene.Group, path string) (*scene.Group, error) {
	if doc, ok := host.(*scene.Document); ok {
		return doc.EnsureGroupPath(root, path)
	}
	// Generic hosts create segments one by one.
	cur := root
	for _, seg := range splitSlash(path) {
		var next *scene.Group
		for _, child := range cur.Children {
			if child.Name == seg {
				next = child
				break
			}
		}
		if next == nil {
			created, err := host.CreateGroup(seg, cur)
			if err != nil {
				return nil, err
			}
			next = created
		}
		cur = next
	}
	return cur, nil
}

func splitSlash(path string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	return segs
}
