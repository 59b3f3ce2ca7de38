// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot creates differential snapshots of a hosted scene
// graph and restores historical states from them.
//
// A differential snapshot mirrors only the group subtrees containing
// at least one changed entity; untouched subtrees are omitted
// entirely. Duplicated entities get globally unique names derived from
// the snapshot uid, with origins tracked in a side table rather than
// on the entities themselves.
package snapshot

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/BlendVault/services/vault/remap"
	"github.com/AleutianAI/BlendVault/services/vault/scene"
)

// Group metadata tags carried by snapshot groups.
const (
	TagUID      = "vault_uid"
	TagOrigName = "vault_orig_name"
)

// Result describes one completed snapshot.
type Result struct {
	// Root is the new snapshot group under the archive.
	Root *scene.Group

	// Origins maps each duplicate's final name to its origin name.
	Origins *remap.OriginIndex

	// Entities maps origin name to the created duplicate.
	Entities map[string]*scene.Entity
}

// Manager runs snapshot and restore operations over one host document.
type Manager struct {
	host scene.Host
	log  *slog.Logger
}

// NewManager wires a manager to a host document.
func NewManager(host scene.Host, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{host: host, log: log}
}

// uniqueName derives a globally unique duplicate name: "base_uid",
// retrying "base_uid-1", "base_uid-2" and so on until free.
func (m *Manager) uniqueName(base, uid string) string {
	candidate := fmt.Sprintf("%s_%s", base, uid)
	if _, taken := m.host.LookupEntity(candidate); !taken {
		return candidate
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s-%d", candidate, i)
		if _, taken := m.host.LookupEntity(name); !taken {
			return name
		}
	}
}

func (m *Manager) uniqueGroupName(base, uid string) string {
	candidate := fmt.Sprintf("%s_%s", base, uid)
	if _, taken := m.host.LookupGroup(candidate); !taken {
		return candidate
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s-%d", candidate, i)
		if _, taken := m.host.LookupGroup(name); !taken {
			return name
		}
	}
}

// Create builds a differential snapshot of src under the archive root.
//
// Description:
//
//	Changed names are first closed over parenting (a changed parent
//	drags its structural children in). Only group subtrees holding a
//	changed entity are mirrored, and within them only changed
//	entities are duplicated. Parent links among the duplicates are
//	rebuilt afterward from the source parent-of map: a parent with a
//	duplicate re-points to it, any other parent link is cleared.
//
// Inputs:
//   - src: source group to snapshot.
//   - uid: snapshot uid; becomes part of every duplicate name.
//   - changedNames: names requiring materialization. Mutated in place
//     by the parent closure.
//
// Outputs:
//   - Result: the new snapshot group plus origin bookkeeping.
func (m *Manager) Create(src *scene.Group, uid string, changedNames map[string]bool) (Result, error) {
	archive := m.host.Archive()

	root, err := m.host.CreateGroup(m.uniqueGroupName(src.Name, uid), archive)
	if err != nil {
		return Result{}, fmt.Errorf("create snapshot group: %w", err)
	}
	root.Tag(TagUID, uid)
	root.Tag(TagOrigName, src.Name)

	// Parent-of map over the whole source subtree.
	parentOf := make(map[string]string)
	scene.Walk(src, func(g *scene.Group, _ string) {
		for _, e := range g.Entities {
			if e.Name != "" {
				parentOf[e.Name] = e.Parent
			}
		}
	})

	// Propagate changes to structural descendants until stable.
	for {
		before := len(changedNames)
		for name, parent := range parentOf {
			if parent != "" && changedNames[parent] && !changedNames[name] {
				changedNames[name] = true
			}
		}
		if len(changedNames) == before {
			break
		}
	}

	origins := remap.NewOriginIndex()
	duplicates := make(map[string]*scene.Entity)
	if err := m.copyChanged(src, root, uid, changedNames, origins, duplicates); err != nil {
		return Result{}, err
	}

	fixParenting(duplicates, parentOf)

	m.log.Info("differential snapshot created",
		"uid", uid, "source", src.Name, "duplicates", len(duplicates))
	return Result{Root: root, Origins: origins, Entities: duplicates}, nil
}

// copyChanged mirrors changed entities level by level, recursing only
// into child groups whose subtree holds a change.
func (m *Manager) copyChanged(srcGroup, destGroup *scene.Group, uid string,
	changed map[string]bool, origins *remap.OriginIndex, duplicates map[string]*scene.Entity) error {

	for _, e := range srcGroup.Entities {
		if e.Name == "" || !changed[e.Name] {
			continue
		}
		dup := CopyEntity(e)
		dup.Name = m.uniqueName(e.Name, uid)
		finalName, err := m.host.AddEntity(dup, destGroup)
		if err != nil {
			return fmt.Errorf("snapshot entity %q: %w", e.Name, err)
		}
		origins.Record(finalName, e.Name)
		duplicates[e.Name] = dup
	}

	for _, child := range srcGroup.Children {
		if !subtreeHasChanges(child, changed) {
			continue
		}
		childGroup, err := m.host.CreateGroup(m.uniqueGroupName(child.Name, uid), destGroup)
		if err != nil {
			return fmt.Errorf("snapshot group %q: %w", child.Name, err)
		}
		childGroup.Tag(TagUID, uid)
		childGroup.Tag(TagOrigName, child.Name)
		if err := m.copyChanged(child, childGroup, uid, changed, origins, duplicates); err != nil {
			return err
		}
	}
	return nil
}

func subtreeHasChanges(g *scene.Group, changed map[string]bool) bool {
	found := false
	scene.Walk(g, func(cur *scene.Group, _ string) {
		if found {
			return
		}
		for _, e := range cur.Entities {
			if changed[e.Name] {
				found = true
				return
			}
		}
	})
	return found
}

// fixParenting rebuilds parent links among duplicates from the source
// parent-of map. Parents without a duplicate in this set are cleared;
// a snapshot never points into the live graph.
func fixParenting(duplicates map[string]*scene.Entity, parentOf map[string]string) {
	for origin, dup := range duplicates {
		parent := parentOf[origin]
		if parent == "" {
			dup.Parent = ""
			continue
		}
		if target, ok := duplicates[parent]; ok {
			dup.Parent = target.Name
		} else {
			dup.Parent = ""
		}
	}
}
