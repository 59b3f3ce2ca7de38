// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scene defines the hosted scene-graph data model and an in-memory
// host document implementation.
//
// The vault engine never owns the live graph; it consumes it through the
// Host interface defined here. Entities are nodes with a world transform,
// an optional parent link (by name), typed attached data (mesh, light,
// camera, curve, armature), a procedural modifier stack, constraints,
// animation drivers, material bindings, and free-form custom properties.
// Groups form the hierarchy the storage layer mirrors as trees.
//
// # Ownership Model
//
// The Document owns every Entity and Group registered with it. Callers
// construct entities, hand them to AddEntity, and afterward mutate them
// only through the live document. Entity names are unique across the
// whole document at any point in time, matching the host application's
// global namespace.
//
// # Thread Safety
//
// Document is NOT safe for concurrent use. The engine is single-threaded
// by design; callers must serialize access externally.
package scene

// EntityType tags the kind of data attached to an entity.
type EntityType string

// Entity types understood by the signature engine. Unknown types still
// get a signature from the common domains (transform, flags, properties).
const (
	TypeMesh     EntityType = "MESH"
	TypeLight    EntityType = "LIGHT"
	TypeCamera   EntityType = "CAMERA"
	TypeCurve    EntityType = "CURVE"
	TypeArmature EntityType = "ARMATURE"
	TypeEmpty    EntityType = "EMPTY"
)

// Vec3 is a 3-component vector.
type Vec3 [3]float64

// Vec4 is a 4-component vector (homogeneous curve points, RGBA).
type Vec4 [4]float64

// Matrix is a row-major 4x4 world transform.
type Matrix [4][4]float64

// Identity returns the identity transform.
func Identity() Matrix {
	var m Matrix
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

// Modifier is one entry of an entity's procedural modifier stack.
//
// Target holds the name of another entity the modifier depends on
// (mirror object, deform armature, path curve, boolean operand). It is
// a weak reference by name; the remapper re-points it after duplication.
type Modifier struct {
	// Type is the modifier kind (SUBSURF, ARRAY, MIRROR, ARMATURE, ...).
	Type string

	// Name is the per-entity stack label.
	Name string

	// ShowViewport and ShowRender gate evaluation.
	ShowViewport bool
	ShowRender   bool

	// FloatParams and StringParams hold the modifier settings. Float
	// values are quantized before hashing; strings are hashed verbatim.
	FloatParams  map[string]float64
	StringParams map[string]string

	// Target names another entity this modifier reads from, or "".
	Target string
}

// Constraint restricts an entity relative to a target entity.
type Constraint struct {
	Type        string
	Name        string
	Target      string // target entity name, or ""
	Subtarget   string // bone or vertex-group name on the target
	Influence   float64
	Mute        bool
	OwnerSpace  string
	TargetSpace string
}

// DriverVariable is one input of a driver expression.
type DriverVariable struct {
	Name    string
	Type    string
	Targets []string // data paths of the driven inputs
}

// Driver is an animation driver attached to a property path.
type Driver struct {
	Path       string
	Index      int
	Type       string
	Expression string
	Variables  []DriverVariable
}

// UVLayer carries a named UV map with per-loop coordinates.
type UVLayer struct {
	Name   string
	Coords [][2]float64
}

// ShapeKey is a morph target with sampled point positions.
type ShapeKey struct {
	Name   string
	Value  float64
	Min    float64
	Max    float64
	Mute   bool
	Points []Vec3
}

// Mesh is polygonal geometry data.
type Mesh struct {
	Vertices     []Vec3
	EdgeCount    int
	PolygonCount int
	VertexGroups []string
	UVLayers     []UVLayer
	ShapeKeys    []ShapeKey
}

// Light is light-source data.
type Light struct {
	Kind      string // POINT, SUN, SPOT, AREA
	Color     Vec3
	Energy    float64
	SoftSize  float64
	Angle     float64 // sun angular diameter
	SpotSize  float64
	SpotBlend float64
	Shape     string // area shape
	Size      float64
	SizeY     float64
}

// DepthOfField is the optional camera focus block.
type DepthOfField struct {
	Enabled       bool
	FocusDistance float64
	FStop         float64
	ApertureSize  float64
}

// Camera is camera intrinsics data.
type Camera struct {
	Kind         string // PERSP, ORTHO, PANO
	Lens         float64
	OrthoScale   float64
	SensorWidth  float64
	SensorHeight float64
	ShiftX       float64
	ShiftY       float64
	ClipStart    float64
	ClipEnd      float64
	DOF          *DepthOfField
}

// SplineType tags a curve spline.
type SplineType string

const (
	SplineBezier SplineType = "BEZIER"
	SplineNURBS  SplineType = "NURBS"
	SplinePoly   SplineType = "POLY"
)

// BezierPoint is a bezier control point with handles.
type BezierPoint struct {
	HandleLeft  Vec3
	Co          Vec3
	HandleRight Vec3
}

// Spline is one segment of a curve.
type Spline struct {
	Type         SplineType
	CyclicU      bool
	OrderU       int
	ResolutionU  int
	BezierPoints []BezierPoint
	Points       []Vec4
}

// Curve is parametric curve data.
type Curve struct {
	Dimensions      string // 2D or 3D
	ResolutionU     int
	BevelDepth      float64
	BevelResolution int
	Extrude         float64
	FillMode        string
	BevelObject     string // entity name, weak reference
	TaperObject     string // entity name, weak reference
	Splines         []Spline
}

// Bone is a rest-pose armature bone.
type Bone struct {
	Name    string
	Parent  string
	Head    Vec3
	Tail    Vec3
	Roll    float64
	Connect bool
	Deform  bool
}

// Armature is skeleton data.
type Armature struct {
	DisplayType  string
	PosePosition string
	Bones        []Bone
}

// Visibility carries the viewport/render visibility and display flags
// that participate in the entity signature.
type Visibility struct {
	HideViewport bool
	HideRender   bool
	HideSelect   bool
	ShowName     bool
	ShowAxis     bool
	ShowInFront  bool
}

// Entity is a named node in the hosted scene graph.
//
// Exactly one of the typed data pointers is non-nil for typed entities;
// all may be nil for an EMPTY. Parent is a weak reference by name and
// may point outside the entity's own group.
type Entity struct {
	Name       string
	Type       EntityType
	Parent     string
	DataName   string
	Transform  Matrix
	Dimensions Vec3
	Visibility Visibility

	Materials   []string
	Modifiers   []Modifier
	Constraints []Constraint
	Drivers     []Driver
	Custom      map[string]string

	Mesh     *Mesh
	Light    *Light
	Camera   *Camera
	Curve    *Curve
	Armature *Armature
}

// Dependencies returns the names of entities this entity points at:
// its parent, modifier targets, curve bevel/taper objects, and
// constraint targets. Empty references are omitted.
func (e *Entity) Dependencies() []string {
	var deps []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	}
	add(e.Parent)
	for _, m := range e.Modifiers {
		add(m.Target)
	}
	for _, c := range e.Constraints {
		add(c.Target)
	}
	if e.Curve != nil {
		add(e.Curve.BevelObject)
		add(e.Curve.TaperObject)
	}
	return deps
}

// Group is a named node of the hierarchy. Entities link into exactly
// one or more groups; the storage layer canonicalizes multi-linked
// entities to their first-discovery path.
type Group struct {
	Name     string
	Entities []*Entity
	Children []*Group

	// Custom carries free-form metadata tags (snapshot uid, branch).
	Custom map[string]string
}

// Tag sets a metadata key on the group.
func (g *Group) Tag(key, value string) {
	if g.Custom == nil {
		g.Custom = make(map[string]string)
	}
	g.Custom[key] = value
}

// TagValue reads a metadata key, returning "" when absent.
func (g *Group) TagValue(key string) string {
	if g.Custom == nil {
		return ""
	}
	return g.Custom[key]
}
