// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package remap re-points structural references inside freshly
// duplicated entity sets: parent links, modifier targets, constraint
// targets, and curve bevel/taper objects.
package remap

import "regexp"

// OriginIndex is the side table mapping a duplicate's current name to
// the name it was duplicated from. It is owned by the duplication or
// restore operation that created the duplicates; identity bookkeeping
// never lives on the entities themselves.
type OriginIndex struct {
	byDuplicate map[string]string
	byOrigin    map[string]string
}

// NewOriginIndex returns an empty index.
func NewOriginIndex() *OriginIndex {
	return &OriginIndex{
		byDuplicate: make(map[string]string),
		byOrigin:    make(map[string]string),
	}
}

// Record notes that duplicateName was created from originName. One
// origin maps to at most one duplicate per operation; a second Record
// for the same origin overwrites the first.
func (idx *OriginIndex) Record(duplicateName, originName string) {
	idx.byDuplicate[duplicateName] = originName
	idx.byOrigin[originName] = duplicateName
}

// Origin returns the origin name of a duplicate, or "".
func (idx *OriginIndex) Origin(duplicateName string) string {
	return idx.byDuplicate[duplicateName]
}

// Duplicate returns the duplicate created from originName, or "".
func (idx *OriginIndex) Duplicate(originName string) string {
	return idx.byOrigin[originName]
}

// Len returns the number of recorded duplicates.
func (idx *OriginIndex) Len() int { return len(idx.byDuplicate) }

// Duplicates returns the current names of every recorded duplicate.
func (idx *OriginIndex) Duplicates() []string {
	names := make([]string, 0, len(idx.byDuplicate))
	for n := range idx.byDuplicate {
		names = append(names, n)
	}
	return names
}

var (
	// snapshotSuffix matches "_20231201120000" and "_20231201120000-3"
	// style snapshot disambiguation suffixes.
	snapshotSuffix = regexp.MustCompile(`_(\d{10,20})(?:-\d+)?$`)

	// duplicateSuffix matches ".001" style duplicate numbering,
	// including stacked runs like ".001.002".
	duplicateSuffix = regexp.MustCompile(`(\.\d{3})+$`)
)

// BaseName strips snapshot and duplicate-numbering suffixes, yielding
// the un-suffixed root two related duplicates share.
func BaseName(name string) string {
	if name == "" {
		return ""
	}
	if loc := snapshotSuffix.FindStringIndex(name); loc != nil {
		return name[:loc[0]]
	}
	if loc := duplicateSuffix.FindStringIndex(name); loc != nil {
		return name[:loc[0]]
	}
	return name
}
