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

import "github.com/AleutianAI/BlendVault/services/vault/scene"

// CopyEntity deep-copies an entity and all attached data. The copy
// keeps the source's name; callers rename before registering it.
func CopyEntity(e *scene.Entity) *scene.Entity {
	dup := *e

	dup.Materials = append([]string(nil), e.Materials...)
	dup.Modifiers = copyModifiers(e.Modifiers)
	dup.Constraints = append([]scene.Constraint(nil), e.Constraints...)
	dup.Drivers = copyDrivers(e.Drivers)
	if e.Custom != nil {
		dup.Custom = make(map[string]string, len(e.Custom))
		for k, v := range e.Custom {
			dup.Custom[k] = v
		}
	}

	if e.Mesh != nil {
		dup.Mesh = copyMesh(e.Mesh)
	}
	if e.Light != nil {
		light := *e.Light
		dup.Light = &light
	}
	if e.Camera != nil {
		cam := *e.Camera
		if e.Camera.DOF != nil {
			dof := *e.Camera.DOF
			cam.DOF = &dof
		}
		dup.Camera = &cam
	}
	if e.Curve != nil {
		dup.Curve = copyCurve(e.Curve)
	}
	if e.Armature != nil {
		arm := *e.Armature
		arm.Bones = append([]scene.Bone(nil), e.Armature.Bones...)
		dup.Armature = &arm
	}

	return &dup
}

func copyModifiers(mods []scene.Modifier) []scene.Modifier {
	out := make([]scene.Modifier, len(mods))
	for i, m := range mods {
		out[i] = m
		if m.FloatParams != nil {
			out[i].FloatParams = make(map[string]float64, len(m.FloatParams))
			for k, v := range m.FloatParams {
				out[i].FloatParams[k] = v
			}
		}
		if m.StringParams != nil {
			out[i].StringParams = make(map[string]string, len(m.StringParams))
			for k, v := range m.StringParams {
				out[i].StringParams[k] = v
			}
		}
	}
	return out
}

func copyDrivers(drivers []scene.Driver) []scene.Driver {
	out := make([]scene.Driver, len(drivers))
	for i, d := range drivers {
		out[i] = d
		out[i].Variables = make([]scene.DriverVariable, len(d.Variables))
		for j, v := range d.Variables {
			out[i].Variables[j] = v
			out[i].Variables[j].Targets = append([]string(nil), v.Targets...)
		}
	}
	return out
}

func copyMesh(m *scene.Mesh) *scene.Mesh {
	out := *m
	out.Vertices = append([]scene.Vec3(nil), m.Vertices...)
	out.VertexGroups = append([]string(nil), m.VertexGroups...)
	out.UVLayers = make([]scene.UVLayer, len(m.UVLayers))
	for i, layer := range m.UVLayers {
		out.UVLayers[i] = layer
		out.UVLayers[i].Coords = append([][2]float64(nil), layer.Coords...)
	}
	out.ShapeKeys = make([]scene.ShapeKey, len(m.ShapeKeys))
	for i, key := range m.ShapeKeys {
		out.ShapeKeys[i] = key
		out.ShapeKeys[i].Points = append([]scene.Vec3(nil), key.Points...)
	}
	return &out
}

func copyCurve(c *scene.Curve) *scene.Curve {
	out := *c
	out.Splines = make([]scene.Spline, len(c.Splines))
	for i, sp := range c.Splines {
		out.Splines[i] = sp
		out.Splines[i].BezierPoints = append([]scene.BezierPoint(nil), sp.BezierPoints...)
		out.Splines[i].Points = append([]scene.Vec4(nil), sp.Points...)
	}
	return &out
}
