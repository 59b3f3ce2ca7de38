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
	"path/filepath"
	"testing"
)

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")

	d := NewDocument()
	props, _ := d.CreateGroup("Props", nil)
	mug := &Entity{
		Name: "Mug",
		Type: TypeMesh,
		Mesh: &Mesh{Vertices: []Vec3{{0, 0, 0}, {1, 0, 0}}, EdgeCount: 1},
	}
	if _, err := d.AddEntity(mug, props); err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}
	if err := d.Link(mug, d.Source()); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	d.Archive().Tag("created", "yes")

	if err := SaveYAML(d, path); err != nil {
		t.Fatalf("SaveYAML failed: %v", err)
	}

	loaded, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}

	got, ok := loaded.LookupEntity("Mug")
	if !ok {
		t.Fatal("Mug missing after round trip")
	}
	if got.Mesh == nil || len(got.Mesh.Vertices) != 2 {
		t.Error("mesh data lost in round trip")
	}

	// The doubly linked entity must collapse back to one instance.
	var inSource, inProps *Entity
	for _, e := range loaded.Source().Entities {
		if e.Name == "Mug" {
			inSource = e
		}
	}
	propsGroup, ok := loaded.LookupGroup("Props")
	if !ok {
		t.Fatal("Props group missing after round trip")
	}
	for _, e := range propsGroup.Entities {
		if e.Name == "Mug" {
			inProps = e
		}
	}
	if inSource == nil || inProps == nil {
		t.Fatal("Mug should be linked in both groups")
	}
	if inSource != inProps {
		t.Error("links should unify to a single entity instance")
	}

	if !loaded.HasArchive() {
		t.Error("archive root lost in round trip")
	}
	if loaded.Archive().TagValue("created") != "yes" {
		t.Error("archive tags lost in round trip")
	}
}

func TestLoadYAML_MissingFile(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
