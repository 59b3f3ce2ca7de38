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
	"testing"

	"github.com/AleutianAI/BlendVault/services/vault/scene"
)

func buildGraph(order []string) *scene.Group {
	root := &scene.Group{Name: "Scene"}
	props := &scene.Group{Name: "Props"}
	kitchen := &scene.Group{Name: "Kitchen"}
	props.Children = append(props.Children, kitchen)
	root.Children = append(root.Children, props)

	for _, name := range order {
		kitchen.Entities = append(kitchen.Entities, meshEntity(name))
	}
	return root
}

func TestComputeGraphSignature(t *testing.T) {
	t.Run("records group paths relative to root", func(t *testing.T) {
		sigs, _ := ComputeGraphSignature(buildGraph([]string{"Mug"}))
		sig, ok := sigs["Mug"]
		if !ok {
			t.Fatal("Mug not found in graph signatures")
		}
		if sig[FieldCollectionPath] != "Props|Kitchen" {
			t.Errorf("collection_path = %q, want Props|Kitchen", sig[FieldCollectionPath])
		}
	})

	t.Run("insertion order does not change the hash", func(t *testing.T) {
		_, h1 := ComputeGraphSignature(buildGraph([]string{"Mug", "Plate", "Fork"}))
		_, h2 := ComputeGraphSignature(buildGraph([]string{"Fork", "Mug", "Plate"}))
		if h1 != h2 {
			t.Errorf("graph hash depends on insertion order: %s vs %s", h1, h2)
		}
	})

	t.Run("multi-linked entity keeps first-discovery path", func(t *testing.T) {
		root := buildGraph([]string{"Mug"})
		// Link the same entity into a second group later in DFS order.
		shared := root.Children[0].Children[0].Entities[0]
		extra := &scene.Group{Name: "Favorites", Entities: []*scene.Entity{shared}}
		root.Children = append(root.Children, extra)

		sigs, _ := ComputeGraphSignature(root)
		if got := sigs["Mug"][FieldCollectionPath]; got != "Props|Kitchen" {
			t.Errorf("collection_path = %q, want first-discovery path Props|Kitchen", got)
		}
		if len(sigs) != 1 {
			t.Errorf("entity count = %d, want 1", len(sigs))
		}
	})

	t.Run("moving an entity changes the hash", func(t *testing.T) {
		base := buildGraph([]string{"Mug"})
		_, h1 := ComputeGraphSignature(base)

		moved := buildGraph([]string{"Mug"})
		kitchen := moved.Children[0].Children[0]
		mug := kitchen.Entities[0]
		kitchen.Entities = nil
		moved.Children[0].Entities = append(moved.Children[0].Entities, mug)
		_, h2 := ComputeGraphSignature(moved)

		if h1 == h2 {
			t.Error("graph hash should change when an entity moves groups")
		}
	})

	t.Run("nil root yields empty map", func(t *testing.T) {
		sigs, h := ComputeGraphSignature(nil)
		if len(sigs) != 0 {
			t.Errorf("entity count = %d, want 0", len(sigs))
		}
		if h == "" {
			t.Error("empty graph still hashes to a stable digest")
		}
	})
}

func TestGraphHash(t *testing.T) {
	t.Run("summary field change is visible", func(t *testing.T) {
		sigs, _ := ComputeGraphSignature(buildGraph([]string{"Mug"}))
		h1 := GraphHash(sigs)

		sigs["Mug"]["transform"] = "different"
		h2 := GraphHash(sigs)
		if h1 == h2 {
			t.Error("transform change should alter the graph hash")
		}
	})

	t.Run("non-summary field change is invisible", func(t *testing.T) {
		sigs, _ := ComputeGraphSignature(buildGraph([]string{"Mug"}))
		h1 := GraphHash(sigs)

		sigs["Mug"]["constraints"] = "different"
		h2 := GraphHash(sigs)
		if h1 != h2 {
			t.Error("graph hash is a coarse summary; constraints are not part of it")
		}
	})
}
