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
	"os"

	"gopkg.in/yaml.v3"
)

// documentFile is the on-disk YAML shape of a document: the two root
// groups, everything else reachable from them.
type documentFile struct {
	Source  *Group `yaml:"source"`
	Archive *Group `yaml:"archive,omitempty"`
}

// SaveYAML writes the document to a YAML file.
//
// Description:
//
//	Serializes both root groups. An entity linked into several groups
//	is written once per link; LoadYAML unifies copies by name, so the
//	round trip preserves identity as long as names stay unique.
func SaveYAML(d *Document, path string) error {
	data, err := yaml.Marshal(documentFile{
		Source:  d.source,
		Archive: d.archive,
	})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}
	return nil
}

// LoadYAML reads a document from a YAML file and rebuilds the name
// registries. Entities appearing under several groups collapse to a
// single instance, restoring link sharing.
func LoadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	var df documentFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}

	d := &Document{
		entities: make(map[string]*Entity),
		groups:   make(map[string]*Group),
	}
	if df.Source == nil {
		df.Source = &Group{Name: "Scene"}
	}
	d.source = df.Source
	d.rehydrate(d.source)
	if df.Archive != nil {
		d.archive = df.Archive
		d.rehydrate(d.archive)
	}
	return d, nil
}

// rehydrate registers every group and entity under root, unifying
// entities that share a name into one pointer.
func (d *Document) rehydrate(root *Group) {
	Walk(root, func(g *Group, _ string) {
		d.groups[g.Name] = g
		for i, e := range g.Entities {
			if existing, ok := d.entities[e.Name]; ok {
				g.Entities[i] = existing
				continue
			}
			d.entities[e.Name] = e
		}
	})
}
