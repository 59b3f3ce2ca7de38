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

import (
	"fmt"
	"strings"
)

// Host is the live scene-graph provider the vault engine operates on.
//
// Description:
//
//	Host abstracts the application document. Source is the user-visible
//	working root whose contents get committed; Archive is the hidden
//	root where differential snapshots accumulate. Both roots live in
//	one global namespace, so a snapshot copy of "Cube" can never also
//	be called "Cube".
//
// Thread Safety: implementations are not required to be safe for
// concurrent use.
type Host interface {
	// Source returns the working root group.
	Source() *Group

	// Archive returns the hidden snapshot root group, creating it on
	// first use.
	Archive() *Group

	// LookupEntity finds an entity anywhere in the document by name.
	LookupEntity(name string) (*Entity, bool)

	// LookupGroup finds a group anywhere in the document by name.
	LookupGroup(name string) (*Group, bool)

	// AddEntity registers a new entity and links it into group. The
	// requested name may be adjusted to stay unique; the final name is
	// returned.
	AddEntity(e *Entity, group *Group) (string, error)

	// CreateGroup creates a child group under parent with a unique
	// name derived from the requested one.
	CreateGroup(name string, parent *Group) (*Group, error)

	// Link attaches an existing entity to an additional group.
	Link(e *Entity, group *Group) error

	// Unlink detaches an entity from one group. The entity remains in
	// the namespace while linked elsewhere; the last unlink removes it.
	Unlink(e *Entity, group *Group) error

	// RemoveEntity unlinks an entity everywhere and drops it from the
	// namespace.
	RemoveEntity(name string) error

	// RemoveGroup removes a group, all its descendant groups, and all
	// entities whose only links were inside the removed subtree.
	RemoveGroup(name string) error

	// Rename changes an entity's name, adjusting for uniqueness, and
	// returns the final name. References held by other entities are
	// not re-pointed.
	Rename(e *Entity, newName string) (string, error)

	// RenameGroup changes a group's name, adjusting for uniqueness,
	// and returns the final name.
	RenameGroup(g *Group, newName string) (string, error)
}

// Document is the in-memory Host implementation.
//
// Description:
//
//	Document maintains the global name registries for entities and
//	groups plus the two root groups. Uniqueness mirrors the host
//	application: requesting a taken name yields "name.001", "name.002"
//	and so on.
//
// Thread Safety: NOT safe for concurrent use.
type Document struct {
	source  *Group
	archive *Group

	entities map[string]*Entity
	groups   map[string]*Group
}

var _ Host = (*Document)(nil)

// ArchiveRootName is the reserved name of the hidden snapshot root.
const ArchiveRootName = "vaultarchive"

// NewDocument creates an empty document with a "Scene" working root.
func NewDocument() *Document {
	d := &Document{
		entities: make(map[string]*Entity),
		groups:   make(map[string]*Group),
	}
	d.source = &Group{Name: "Scene"}
	d.groups[d.source.Name] = d.source
	return d
}

// Source returns the working root group.
func (d *Document) Source() *Group { return d.source }

// Archive returns the hidden snapshot root, creating it lazily.
func (d *Document) Archive() *Group {
	if d.archive == nil {
		d.archive = &Group{Name: ArchiveRootName}
		d.groups[d.archive.Name] = d.archive
	}
	return d.archive
}

// HasArchive reports whether the snapshot root has been created.
func (d *Document) HasArchive() bool { return d.archive != nil }

// LookupEntity finds an entity by name.
func (d *Document) LookupEntity(name string) (*Entity, bool) {
	e, ok := d.entities[name]
	return e, ok
}

// LookupGroup finds a group by name.
func (d *Document) LookupGroup(name string) (*Group, bool) {
	g, ok := d.groups[name]
	return g, ok
}

// EntityNames returns the names of every registered entity, in map
// order. Callers needing determinism sort the result.
func (d *Document) EntityNames() []string {
	names := make([]string, 0, len(d.entities))
	for n := range d.entities {
		names = append(names, n)
	}
	return names
}

// uniqueEntityName returns base if free, else the first free
// "base.001" style suffix.
func (d *Document) uniqueEntityName(base string) string {
	if _, taken := d.entities[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if _, taken := d.entities[name]; !taken {
			return name
		}
	}
}

func (d *Document) uniqueGroupName(base string) string {
	if _, taken := d.groups[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if _, taken := d.groups[name]; !taken {
			return name
		}
	}
}

// AddEntity registers e under a unique name and links it into group.
func (d *Document) AddEntity(e *Entity, group *Group) (string, error) {
	if e.Name == "" {
		return "", fmt.Errorf("add entity: empty name: %w", ErrNotFound)
	}
	if group == nil {
		group = d.source
	}
	e.Name = d.uniqueEntityName(e.Name)
	d.entities[e.Name] = e
	group.Entities = append(group.Entities, e)
	return e.Name, nil
}

// CreateGroup creates a child group under parent.
func (d *Document) CreateGroup(name string, parent *Group) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("create group: empty name: %w", ErrNotFound)
	}
	if parent == nil {
		parent = d.source
	}
	g := &Group{Name: d.uniqueGroupName(name)}
	d.groups[g.Name] = g
	parent.Children = append(parent.Children, g)
	return g, nil
}

// Link attaches an existing entity to an additional group.
func (d *Document) Link(e *Entity, group *Group) error {
	if _, ok := d.entities[e.Name]; !ok {
		return fmt.Errorf("link %q: %w", e.Name, ErrNotFound)
	}
	for _, cur := range group.Entities {
		if cur == e {
			return nil
		}
	}
	group.Entities = append(group.Entities, e)
	return nil
}

// Unlink detaches an entity from one group. When no links remain the
// entity leaves the namespace.
func (d *Document) Unlink(e *Entity, group *Group) error {
	idx := -1
	for i, cur := range group.Entities {
		if cur == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("unlink %q from %q: %w", e.Name, group.Name, ErrNotLinked)
	}
	group.Entities = append(group.Entities[:idx], group.Entities[idx+1:]...)
	if d.linkCount(e) == 0 {
		delete(d.entities, e.Name)
	}
	return nil
}

func (d *Document) linkCount(e *Entity) int {
	count := 0
	var walk func(g *Group)
	walk = func(g *Group) {
		for _, cur := range g.Entities {
			if cur == e {
				count++
			}
		}
		for _, child := range g.Children {
			walk(child)
		}
	}
	walk(d.source)
	if d.archive != nil {
		walk(d.archive)
	}
	return count
}

// RemoveEntity unlinks an entity everywhere and drops it.
func (d *Document) RemoveEntity(name string) error {
	e, ok := d.entities[name]
	if !ok {
		return fmt.Errorf("remove entity %q: %w", name, ErrNotFound)
	}
	var scrub func(g *Group)
	scrub = func(g *Group) {
		kept := g.Entities[:0]
		for _, cur := range g.Entities {
			if cur != e {
				kept = append(kept, cur)
			}
		}
		g.Entities = kept
		for _, child := range g.Children {
			scrub(child)
		}
	}
	scrub(d.source)
	if d.archive != nil {
		scrub(d.archive)
	}
	delete(d.entities, name)
	return nil
}

// RemoveGroup removes a group subtree. Entities linked only inside the
// subtree leave the namespace; entities also linked elsewhere survive.
func (d *Document) RemoveGroup(name string) error {
	g, ok := d.groups[name]
	if !ok {
		return fmt.Errorf("remove group %q: %w", name, ErrNotFound)
	}
	if g == d.source || g == d.archive {
		return fmt.Errorf("remove group %q: root groups cannot be removed: %w", name, ErrNotLinked)
	}

	// Collect the subtree first so membership checks see it whole.
	doomed := make(map[*Group]bool)
	var collect func(sub *Group)
	collect = func(sub *Group) {
		doomed[sub] = true
		for _, child := range sub.Children {
			collect(child)
		}
	}
	collect(g)

	var victims []*Entity
	for sub := range doomed {
		victims = append(victims, sub.Entities...)
	}

	// Detach the subtree from its parent.
	var detach func(parent *Group) bool
	detach = func(parent *Group) bool {
		for i, child := range parent.Children {
			if child == g {
				parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
				return true
			}
		}
		for _, child := range parent.Children {
			if detach(child) {
				return true
			}
		}
		return false
	}
	if !detach(d.source) && d.archive != nil {
		detach(d.archive)
	}

	for sub := range doomed {
		delete(d.groups, sub.Name)
	}
	for _, e := range victims {
		if d.linkCount(e) == 0 {
			delete(d.entities, e.Name)
		}
	}
	return nil
}

// Rename changes an entity's name, adjusting for uniqueness, and
// returns the final name. References from other entities are NOT
// re-pointed; callers wanting that use the remap service.
func (d *Document) Rename(e *Entity, newName string) (string, error) {
	if _, ok := d.entities[e.Name]; !ok {
		return "", fmt.Errorf("rename %q: %w", e.Name, ErrNotFound)
	}
	if newName == e.Name {
		return e.Name, nil
	}
	delete(d.entities, e.Name)
	e.Name = d.uniqueEntityName(newName)
	d.entities[e.Name] = e
	return e.Name, nil
}

// RenameGroup changes a group's name, adjusting for uniqueness, and
// returns the final name.
func (d *Document) RenameGroup(g *Group, newName string) (string, error) {
	if _, ok := d.groups[g.Name]; !ok {
		return "", fmt.Errorf("rename group %q: %w", g.Name, ErrNotFound)
	}
	if newName == g.Name {
		return g.Name, nil
	}
	delete(d.groups, g.Name)
	g.Name = d.uniqueGroupName(newName)
	d.groups[g.Name] = g
	return g.Name, nil
}

// EnsureGroupPath walks a "/"-separated path of group names below root,
// creating missing segments, and returns the final group.
func (d *Document) EnsureGroupPath(root *Group, path string) (*Group, error) {
	cur := root
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		var next *Group
		for _, child := range cur.Children {
			if child.Name == seg {
				next = child
				break
			}
		}
		if next == nil {
			created, err := d.CreateGroup(seg, cur)
			if err != nil {
				return nil, err
			}
			// CreateGroup may have suffixed the name when taken
			// elsewhere in the document; keep the requested segment
			// only when it was granted.
			next = created
		}
		cur = next
	}
	return cur, nil
}

// Walk visits every group reachable from root in depth-first child
// order, calling fn with the group and the "|"-joined path of group
// names below root ("" for root itself). Entities linked into more
// than one group are visited once per link; callers canonicalize.
func Walk(root *Group, fn func(g *Group, path string)) {
	var walk func(g *Group, path string)
	walk = func(g *Group, path string) {
		fn(g, path)
		for _, child := range g.Children {
			childPath := child.Name
			if path != "" {
				childPath = path + "|" + child.Name
			}
			walk(child, childPath)
		}
	}
	walk(root, "")
}
