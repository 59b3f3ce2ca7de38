// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signature computes deterministic content fingerprints for
// entities and whole graphs.
//
// A Signature is a flat string map of independently hashed sub-domains
// (transform, geometry, modifiers, constraints, drivers, materials,
// visibility, custom properties). Every signature carries the full key
// set with stable defaults for inapplicable domains, so the diff engine
// can compare field by field without caring about entity type. Identity
// (name) and placement (collection_path) are carried alongside but are
// excluded from blob payloads, so a rename or move alone never changes
// stored content.
package signature

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/BlendVault/services/vault/scene"
)

// Field names that identify rather than describe an entity. Blob
// payloads strip them; everything else participates in addressing.
const (
	FieldName           = "name"
	FieldCollectionPath = "collection_path"
)

// Signature is a flat map of domain names to hashed or literal values.
// All values are strings so union-of-keys comparison and canonical
// serialization stay uniform.
type Signature map[string]string

// Clone returns a deep copy.
func (s Signature) Clone() Signature {
	out := make(Signature, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// StripIdentity returns a copy without the name and placement fields,
// suitable for content addressing.
func (s Signature) StripIdentity() Signature {
	out := make(Signature, len(s))
	for k, v := range s {
		if k == FieldName || k == FieldCollectionPath {
			continue
		}
		out[k] = v
	}
	return out
}

// defaults lists every signature field with its stable zero value.
// Type-inapplicable fields keep these so all signatures share one
// structural shape.
var defaults = Signature{
	"verts": "0", "edges": "0", "polygons": "0",
	"modifiers": "", "vgroups": "", "uv_meta": "", "uv_data": "",
	"shapekeys_meta": "", "shapekeys_values": "", "shapekeys_detailed": "",
	"geo_hash":   "",
	"light_meta": "", "camera_meta": "",
	"curve_meta": "", "curve_points_hash": "",
	"armature_meta": "", "armature_bones_hash": "",
}

// ComputeEntitySignature computes the content fingerprint of one
// entity.
//
// Description:
//
//	Gathers per-domain hashes with all floating values quantized to
//	FloatDigits decimals, then fills every absent field from the
//	stable default set. The result always contains the same keys
//	regardless of entity type.
//
// Inputs:
//   - e: the entity to fingerprint. Must be non-nil.
//
// Outputs:
//   - Signature: the complete field map, including identity fields.
func ComputeEntitySignature(e *scene.Entity) Signature {
	sig := Signature{}
	sig[FieldName] = e.Name
	sig["parent"] = e.Parent
	sig["type"] = string(e.Type)
	sig["data_name"] = e.DataName

	sig["transform"] = matrixHash(e.Transform)
	sig["dims"] = sha256Hex(fmtVec3(e.Dimensions))

	sig["visibility_flags"] = visibilityHash(e.Visibility)
	sig["custom_properties"] = customPropertiesHash(e.Custom)
	sig["constraints"] = constraintsHash(e.Constraints)
	sig["drivers"] = driversHash(e.Drivers)
	sig["materials"] = listHash(e.Materials)
	sig["modifiers"] = modifiersHash(e.Modifiers)

	switch {
	case e.Mesh != nil:
		meshDomains(sig, e.Mesh)
	case e.Light != nil:
		sig["light_meta"] = lightHash(e.Light)
	case e.Camera != nil:
		sig["camera_meta"] = cameraHash(e.Camera)
	case e.Curve != nil:
		sig["curve_meta"] = curveMetaHash(e.Curve)
		sig["curve_points_hash"] = curvePointsHash(e.Curve)
	case e.Armature != nil:
		sig["armature_meta"] = armatureMetaHash(e.Armature)
		sig["armature_bones_hash"] = armatureBonesHash(e.Armature)
	}

	for key, def := range defaults {
		if _, ok := sig[key]; !ok {
			sig[key] = def
		}
	}
	return sig
}

func visibilityHash(v scene.Visibility) string {
	flags := []string{
		"hide_viewport:" + fmtBool(v.HideViewport),
		"hide_render:" + fmtBool(v.HideRender),
		"hide_select:" + fmtBool(v.HideSelect),
		"show_name:" + fmtBool(v.ShowName),
		"show_axis:" + fmtBool(v.ShowAxis),
		"show_in_front:" + fmtBool(v.ShowInFront),
	}
	return sha256Hex(strings.Join(flags, "|"))
}

func customPropertiesHash(props map[string]string) string {
	if len(props) == 0 {
		return sha256Hex("")
	}
	parts := make([]string, 0, len(props))
	for k, v := range props {
		if strings.HasPrefix(k, "_") {
			continue
		}
		parts = append(parts, k+":"+v)
	}
	sort.Strings(parts)
	return sha256Hex(strings.Join(parts, "|"))
}

func constraintsHash(cons []scene.Constraint) string {
	parts := make([]string, 0, len(cons))
	for _, c := range cons {
		fields := []string{
			c.Type,
			c.Name,
			fmtFloat(c.Influence),
			"mute:" + fmtBool(c.Mute),
			"target:" + c.Target,
			"subtarget:" + c.Subtarget,
			"owner_space:" + c.OwnerSpace,
			"target_space:" + c.TargetSpace,
		}
		parts = append(parts, strings.Join(fields, "|"))
	}
	return sha256Hex(strings.Join(parts, "||"))
}

func modifiersHash(mods []scene.Modifier) string {
	parts := make([]string, 0, len(mods))
	for _, m := range mods {
		fields := []string{
			"type:" + m.Type,
			"name:" + m.Name,
			"show_viewport:" + fmtBool(m.ShowViewport),
			"show_render:" + fmtBool(m.ShowRender),
			"target:" + m.Target,
		}
		keys := make([]string, 0, len(m.FloatParams))
		for k := range m.FloatParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, k+":"+fmtFloat(m.FloatParams[k]))
		}
		keys = keys[:0]
		for k := range m.StringParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, k+":"+m.StringParams[k])
		}
		parts = append(parts, strings.Join(fields, "|"))
	}
	return sha256Hex(strings.Join(parts, "||"))
}

func driversHash(drivers []scene.Driver) string {
	parts := make([]string, 0, len(drivers))
	for _, d := range drivers {
		fields := []string{
			"path:" + d.Path,
			"index:" + strconv.Itoa(d.Index),
			"type:" + d.Type,
			"expr:" + d.Expression,
		}
		for _, v := range d.Variables {
			fields = append(fields, "var:"+v.Name+"="+v.Type)
			for _, t := range v.Targets {
				fields = append(fields, "target:"+t)
			}
		}
		parts = append(parts, strings.Join(fields, "|"))
	}
	return sha256Hex(strings.Join(parts, "||"))
}

func meshDomains(sig Signature, m *scene.Mesh) {
	sig["verts"] = strconv.Itoa(len(m.Vertices))
	sig["edges"] = strconv.Itoa(m.EdgeCount)
	sig["polygons"] = strconv.Itoa(m.PolygonCount)

	groups := append([]string(nil), m.VertexGroups...)
	sort.Strings(groups)
	sig["vgroups"] = listHash(groups)

	uvNames := make([]string, len(m.UVLayers))
	uvParts := make([]string, 0, len(m.UVLayers))
	for i, layer := range m.UVLayers {
		uvNames[i] = layer.Name
		coords := make([]string, 0, len(layer.Coords))
		for _, uv := range layer.Coords {
			coords = append(coords, fmtFloats(uv[:]))
		}
		uvParts = append(uvParts, "uv_layer:"+layer.Name+"|uvs:"+sha256Hex(strings.Join(coords, "|")))
	}
	sig["uv_meta"] = listHash(uvNames)
	sig["uv_data"] = sha256Hex(strings.Join(uvParts, "||"))

	skNames := make([]string, len(m.ShapeKeys))
	skValues := make([]string, len(m.ShapeKeys))
	skParts := make([]string, 0, len(m.ShapeKeys))
	for i, key := range m.ShapeKeys {
		skNames[i] = key.Name
		skValues[i] = key.Name + ":" + fmtFloat(key.Value)
		verts := make([]string, 0, len(key.Points))
		for _, p := range key.Points {
			verts = append(verts, fmtVec3(p))
		}
		fields := []string{
			"name:" + key.Name,
			"value:" + fmtFloat(key.Value),
			"min:" + fmtFloat(key.Min),
			"max:" + fmtFloat(key.Max),
			"mute:" + fmtBool(key.Mute),
			"verts:" + sha256Hex(strings.Join(verts, "|")),
		}
		skParts = append(skParts, strings.Join(fields, "|"))
	}
	sig["shapekeys_meta"] = listHash(skNames)
	sig["shapekeys_values"] = listHash(skValues)
	sig["shapekeys_detailed"] = sha256Hex(strings.Join(skParts, "||"))

	coords := make([]string, 0, len(m.Vertices))
	for _, v := range m.Vertices {
		coords = append(coords, fmtFloat(v[0]), fmtFloat(v[1]), fmtFloat(v[2]))
	}
	sig["geo_hash"] = sha256Hex(strings.Join(coords, "|"))
}

func lightHash(l *scene.Light) string {
	vals := []string{
		l.Kind,
		fmtVec3(l.Color),
		fmtFloat(l.Energy),
		fmtFloat(l.SoftSize),
		fmtFloat(l.Angle),
	}
	if l.Kind == "SPOT" {
		vals = append(vals, fmtFloat(l.SpotSize), fmtFloat(l.SpotBlend))
	}
	if l.Kind == "AREA" {
		vals = append(vals, l.Shape, fmtFloat(l.Size), fmtFloat(l.SizeY))
	}
	return sha256Hex(strings.Join(vals, "|"))
}

func cameraHash(c *scene.Camera) string {
	vals := []string{
		c.Kind,
		fmtFloat(c.Lens),
		fmtFloat(c.OrthoScale),
		fmtFloat(c.SensorWidth),
		fmtFloat(c.SensorHeight),
		fmtFloat(c.ShiftX),
		fmtFloat(c.ShiftY),
		fmtFloat(c.ClipStart),
		fmtFloat(c.ClipEnd),
	}
	if c.DOF != nil {
		vals = append(vals, "DOF:"+fmtBool(c.DOF.Enabled),
			fmtFloat(c.DOF.FocusDistance),
			fmtFloat(c.DOF.FStop),
			fmtFloat(c.DOF.ApertureSize))
	} else {
		vals = append(vals, "DOF:0")
	}
	return sha256Hex(strings.Join(vals, "|"))
}

func curveMetaHash(c *scene.Curve) string {
	vals := []string{
		c.Dimensions,
		fmt.Sprintf("%d", c.ResolutionU),
		fmtFloat(c.BevelDepth),
		fmt.Sprintf("%d", c.BevelResolution),
		fmtFloat(c.Extrude),
		c.FillMode,
		c.BevelObject,
		c.TaperObject,
	}
	return sha256Hex(strings.Join(vals, "|"))
}

func curvePointsHash(c *scene.Curve) string {
	var parts []string
	for _, sp := range c.Splines {
		parts = append(parts,
			"T:"+string(sp.Type),
			"CyclicU:"+fmtBool(sp.CyclicU),
			"OrderU:"+strconv.Itoa(sp.OrderU),
			"ResU:"+strconv.Itoa(sp.ResolutionU),
		)
		if sp.Type == scene.SplineBezier {
			for _, bp := range sp.BezierPoints {
				parts = append(parts, fmtVec3(bp.HandleLeft), fmtVec3(bp.Co), fmtVec3(bp.HandleRight))
			}
		} else {
			for _, p := range sp.Points {
				parts = append(parts, fmtVec4(p))
			}
		}
	}
	return sha256Hex(strings.Join(parts, "|"))
}

func armatureMetaHash(a *scene.Armature) string {
	return sha256Hex(a.DisplayType + "|" + a.PosePosition)
}

func armatureBonesHash(a *scene.Armature) string {
	var parts []string
	for _, b := range a.Bones {
		parts = append(parts,
			"B:"+b.Name,
			"P:"+b.Parent,
			"H:"+fmtVec3(b.Head),
			"T:"+fmtVec3(b.Tail),
			"Roll:"+fmtFloat(b.Roll),
			"Conn:"+fmtBool(b.Connect),
			"Deform:"+fmtBool(b.Deform),
		)
	}
	return sha256Hex(strings.Join(parts, "|"))
}
