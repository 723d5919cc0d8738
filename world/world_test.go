// SPDX-License-Identifier: GPL-2.0-or-later

package world

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"govis/cull"
	"govis/level"
	"govis/math/vec"
)

// quadX returns a square in the plane at x with half size h around y, z. The
// winding normal is +x if posX is set and -x otherwise.
func quadX(x, y, z, h float32, posX bool) []vec.Vec3 {
	q := []vec.Vec3{{x, y - h, z - h}, {x, y + h, z - h}, {x, y + h, z + h}, {x, y - h, z + h}}
	if !posX {
		q[0], q[1], q[2], q[3] = q[3], q[2], q[1], q[0]
	}
	return q
}

// addQuad appends a two triangle surface. Texture coordinates run from 0 to 1
// along the first and the last edge.
func addQuad(d *level.Desc, q []vec.Vec3, queryGroup, flags uint32) int32 {
	base := uint32(len(d.Vertices))
	uv := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for i, p := range q {
		d.Vertices = append(d.Vertices, level.Vertex{Pos: p, UV: uv[i], LightmapUV: uv[i]})
	}
	s := level.Surface{
		FirstIndex:   int32(len(d.Indices)),
		NumIndices:   6,
		Material:     -1,
		LightmapSlot: 7,
		QueryGroup:   queryGroup,
		VisGroup:     1,
		Flags:        flags,
	}
	d.Indices = append(d.Indices, base, base+1, base+2, base, base+2, base+3)
	d.SurfaceRefs = append(d.SurfaceRefs, int32(len(d.Surfaces)))
	d.Surfaces = append(d.Surfaces, s)
	return int32(len(d.Surfaces) - 1)
}

// twoRooms is split at x=0 into room A (x > 0, area 0) and room B (x < 0,
// area 1) joined by a door of 32x32 units around the origin.
func twoRooms() *level.Desc {
	return &level.Desc{
		Name:   "two rooms",
		Planes: []level.Plane{{Normal: vec.Vec3{1, 0, 0}}},
		Nodes: []level.Node{{
			Parent:   -1,
			Mins:     vec.Vec3{-128, -64, -64},
			Maxs:     vec.Vec3{128, 64, 64},
			Children: [2]int32{-1, -2},
		}},
		Leafs: []level.Leaf{
			{Parent: 0, Mins: vec.Vec3{0, -64, -64}, Maxs: vec.Vec3{128, 64, 64}, Cluster: -1, Area: 0, AudioArea: -1, VisOffset: -1},
			{Parent: 0, Mins: vec.Vec3{-128, -64, -64}, Maxs: vec.Vec3{0, 64, 64}, Cluster: -1, Area: 1, AudioArea: -1, VisOffset: -1},
		},
		Areas: []level.Area{
			{Mins: vec.Vec3{0, -64, -64}, Maxs: vec.Vec3{128, 64, 64}},
			{Mins: vec.Vec3{-128, -64, -64}, Maxs: vec.Vec3{0, 64, 64}},
		},
		Portals:      []level.Portal{{FirstVertex: 0, NumVertices: 4, Areas: [2]int32{0, 1}}},
		HullVertices: quadX(0, 0, 0, 16, true),
	}
}

// wall has room A at x > 10 (area 0), solid space between x=0 and x=10 and
// room B at x < 0 (area 1). There are no portals.
func wall() *level.Desc {
	return &level.Desc{
		Name: "wall",
		Planes: []level.Plane{
			{Normal: vec.Vec3{1, 0, 0}, Dist: 0},
			{Normal: vec.Vec3{1, 0, 0}, Dist: 10},
		},
		Nodes: []level.Node{
			{Parent: -1, Mins: vec.Vec3{-128, -64, -64}, Maxs: vec.Vec3{128, 64, 64}, Plane: 0, Children: [2]int32{1, -2}},
			{Parent: 0, Mins: vec.Vec3{0, -64, -64}, Maxs: vec.Vec3{128, 64, 64}, Plane: 1, Children: [2]int32{-1, 0}},
		},
		Leafs: []level.Leaf{
			{Parent: 1, Mins: vec.Vec3{10, -64, -64}, Maxs: vec.Vec3{128, 64, 64}, Cluster: -1, Area: 0, VisOffset: -1},
			{Parent: 0, Mins: vec.Vec3{-128, -64, -64}, Maxs: vec.Vec3{0, 64, 64}, Cluster: -1, Area: 1, VisOffset: -1},
		},
		Areas: []level.Area{
			{Mins: vec.Vec3{10, -64, -64}, Maxs: vec.Vec3{128, 64, 64}},
			{Mins: vec.Vec3{-128, -64, -64}, Maxs: vec.Vec3{0, 64, 64}},
		},
	}
}

// open is a single area without tree or portals.
func open() *level.Desc {
	return &level.Desc{
		Name:  "open",
		Areas: []level.Area{{Mins: vec.Vec3{-200, -200, -200}, Maxs: vec.Vec3{200, 200, 200}}},
	}
}

func mustLevel(t *testing.T, d *level.Desc) *Level {
	t.Helper()
	l, err := NewLevel(d)
	if err != nil {
		t.Fatalf("NewLevel(%q) = %v", d.Name, err)
	}
	return l
}

func box(center vec.Vec3, h float32) PrimitiveDef {
	e := vec.Vec3{h, h, h}
	return PrimitiveDef{
		Owner:      uuid.New(),
		Shape:      ShapeBox,
		Mins:       vec.Sub(center, e),
		Maxs:       vec.Add(center, e),
		QueryGroup: 1,
		VisGroup:   1,
	}
}

func sphere(center vec.Vec3, r float32) PrimitiveDef {
	return PrimitiveDef{
		Owner:      uuid.New(),
		Shape:      ShapeSphere,
		Center:     center,
		Radius:     r,
		QueryGroup: 1,
		VisGroup:   1,
	}
}

// view returns a query at org looking along the horizontal direction forward
// with a 90 degree field of view.
func view(org, forward vec.Vec3) *Query {
	up := vec.Vec3{0, 0, 1}
	right := vec.Cross(forward, up)
	planes := cull.FrustumFromView(org, forward, right, up, 90, 90, 1, 1000)
	return &Query{
		Planes:    planes[:],
		Origin:    org,
		Right:     right,
		Up:        up,
		VisMask:   AllGroups,
		QueryMask: AllGroups,
	}
}

func TestNewLevel(t *testing.T) {
	l := mustLevel(t, twoRooms())
	if len(l.Areas) != 3 {
		t.Fatalf("len(Areas) = %d, want 3", len(l.Areas))
	}
	if len(l.Links) != 2 {
		t.Fatalf("len(Links) = %d, want 2", len(l.Links))
	}
	for i, lk := range l.Links {
		if l.Areas[lk.Area].FirstPortal != int32(i) {
			t.Errorf("area %d: FirstPortal = %d, want %d", lk.Area, l.Areas[lk.Area].FirstPortal, i)
		}
		// the plane faces into the owning area
		inside := l.Areas[lk.Area]
		c := vec.Scale(0.5, vec.Add(inside.Mins, inside.Maxs))
		if d := lk.Plane.Distance(c); d <= 0 {
			t.Errorf("link %d: distance of area %d center = %v, want > 0", i, lk.Area, d)
		}
		if lk.Portal != 0 || lk.Next != none {
			t.Errorf("link %d: portal = %d, next = %d", i, lk.Portal, lk.Next)
		}
	}
	if l.Links[0].Target != 2 || l.Links[1].Target != 1 {
		t.Errorf("link targets = %d, %d, want 2, 1", l.Links[0].Target, l.Links[1].Target)
	}
	if l.Tree.Nodes[0].Parent != -1 || l.Tree.Leafs[1].Parent != 0 {
		t.Errorf("parents not linked")
	}
}

func TestNewLevelErrors(t *testing.T) {
	d := twoRooms()
	d.Portals[0].Areas[1] = 5
	if _, err := NewLevel(d); err == nil {
		t.Errorf("NewLevel(bad portal area) = nil, want error")
	}
	d = twoRooms()
	d.HullVertices = []vec.Vec3{{0, 0, 0}, {0, 1, 0}, {0, 2, 0}, {0, 3, 0}}
	if _, err := NewLevel(d); err == nil {
		t.Errorf("NewLevel(degenerate hull) = nil, want error")
	}
	d = twoRooms()
	d.Nodes = append(d.Nodes, level.Node{Plane: 0, Children: [2]int32{-1, -2}})
	if _, err := NewLevel(d); err == nil {
		t.Errorf("NewLevel(leafs with two parents) = nil, want error")
	}
}

func TestSurfacePlanarity(t *testing.T) {
	d := open()
	flat := addQuad(d, quadX(50, 0, 0, 8, false), 1, 0)
	bent := addQuad(d, quadX(50, 0, 0, 8, false), 1, 0)
	forced := addQuad(d, quadX(50, 0, 0, 8, false), 1, level.SurfaceNonPlanar|level.SurfaceTwoSided)
	d.Vertices[d.Indices[d.Surfaces[bent].FirstIndex+5]].Pos[0] = 60
	d.Areas[0].NumSurfaces = 3
	l := mustLevel(t, d)
	if s := l.Surfaces[flat]; !s.Planar || s.TwoSided || s.Plane.Normal != (vec.Vec3{-1, 0, 0}) {
		t.Errorf("flat surface = %+v", s)
	}
	if s := l.Surfaces[bent]; s.Planar {
		t.Errorf("bent surface is planar")
	}
	if s := l.Surfaces[forced]; s.Planar || !s.TwoSided {
		t.Errorf("forced surface = %+v", s)
	}
	if s := l.Surfaces[flat]; s.Mins != (vec.Vec3{50, -8, -8}) || s.Maxs != (vec.Vec3{50, 8, 8}) {
		t.Errorf("flat surface bounds = %v %v", s.Mins, s.Maxs)
	}
}

func TestFindLeafArea(t *testing.T) {
	rooms := mustLevel(t, twoRooms())
	w := mustLevel(t, wall())
	o := mustLevel(t, open())
	tests := []struct {
		l    *Level
		p    vec.Vec3
		leaf int
		area int32
	}{
		{rooms, vec.Vec3{10, 0, 0}, 0, 1},
		{rooms, vec.Vec3{-10, 5, 5}, 1, 2},
		{w, vec.Vec3{64, 0, 0}, 0, 1},
		{w, vec.Vec3{5, 0, 0}, -1, OutdoorArea},
		{w, vec.Vec3{-5, 0, 0}, 1, 2},
		{o, vec.Vec3{0, 0, 0}, -1, 1},
		{o, vec.Vec3{1000, 0, 0}, -1, OutdoorArea},
	}
	for _, tc := range tests {
		if got := tc.l.FindLeaf(tc.p); got != tc.leaf {
			t.Errorf("%s: FindLeaf(%v) = %d, want %d", tc.l.Name, tc.p, got, tc.leaf)
		}
		if got := tc.l.FindArea(tc.p); got != tc.area {
			t.Errorf("%s: FindArea(%v) = %d, want %d", tc.l.Name, tc.p, got, tc.area)
		}
	}
}

func TestStats(t *testing.T) {
	l := mustLevel(t, twoRooms())
	l.SetPortalBlocked(0, true)
	if !l.PortalBlocked(0) {
		t.Errorf("PortalBlocked(0) = false after SetPortalBlocked(0, true)")
	}
	got := l.Stats()
	want := LevelStats{Planes: 1, Nodes: 1, Leafs: 2, Areas: 2, Portals: 1, Blocked: 1, HasTree: true}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestRegistry(t *testing.T) {
	w := NewWorld(mustLevel(t, twoRooms()))
	def := box(vec.Vec3{64, 0, 0}, 4)
	id := w.AddPrimitive(def)
	if got, ok := w.Primitive(id); !ok || got.Owner != def.Owner {
		t.Errorf("Primitive(%d) = %v, %v", id, got, ok)
	}
	areas, err := w.PrimitiveAreas(id, nil)
	if err != nil || !reflect.DeepEqual(areas, [][2]int32{{0, 1}}) {
		t.Errorf("PrimitiveAreas(%d) = %v, %v, want [[0 1]]", id, areas, err)
	}

	// move into room B
	p, _ := w.Primitive(id)
	p.Mins, p.Maxs = vec.Vec3{-68, -4, -4}, vec.Vec3{-60, 4, 4}
	if err := w.MarkPrimitive(id); err != nil {
		t.Fatalf("MarkPrimitive(%d) = %v", id, err)
	}
	if err := w.MarkPrimitive(id); err != nil {
		t.Fatalf("MarkPrimitive(%d) = %v", id, err)
	}
	if n := w.UpdatePrimitiveLinks(); n != 1 {
		t.Errorf("UpdatePrimitiveLinks() = %d, want 1", n)
	}
	areas, _ = w.PrimitiveAreas(id, areas[:0])
	if !reflect.DeepEqual(areas, [][2]int32{{0, 2}}) {
		t.Errorf("PrimitiveAreas(%d) after move = %v, want [[0 2]]", id, areas)
	}
	if got := w.AreaPrimitives(0, 1, nil); len(got) != 0 {
		t.Errorf("AreaPrimitives(0, 1) = %v, want none", got)
	}
	if n := w.UpdatePrimitiveLinks(); n != 0 {
		t.Errorf("second UpdatePrimitiveLinks() = %d, want 0", n)
	}

	other := w.AddPrimitive(box(vec.Vec3{-64, 20, 0}, 4))
	if got := w.AreaPrimitives(0, 2, nil); !reflect.DeepEqual(got, []PrimitiveID{other, id}) {
		t.Errorf("AreaPrimitives(0, 2) = %v, want [%d %d]", got, other, id)
	}
	if err := w.RemovePrimitive(id); err != nil {
		t.Fatalf("RemovePrimitive(%d) = %v", id, err)
	}
	if got := w.AreaPrimitives(0, 2, nil); !reflect.DeepEqual(got, []PrimitiveID{other}) {
		t.Errorf("AreaPrimitives(0, 2) after remove = %v, want [%d]", got, other)
	}
	if err := w.RemovePrimitive(id); !errors.Is(err, ErrUnknownPrimitive) {
		t.Errorf("second RemovePrimitive(%d) = %v, want ErrUnknownPrimitive", id, err)
	}
	if err := w.MarkPrimitive(id); !errors.Is(err, ErrUnknownPrimitive) {
		t.Errorf("MarkPrimitive(removed) = %v, want ErrUnknownPrimitive", err)
	}
	if _, ok := w.Primitive(42); ok {
		t.Errorf("Primitive(42) found")
	}
	if w.NumPrimitives() != 1 {
		t.Errorf("NumPrimitives() = %d, want 1", w.NumPrimitives())
	}
	if again := w.AddPrimitive(box(vec.Vec3{64, 0, 0}, 1)); again != id {
		t.Errorf("AddPrimitive reused id %d, want %d", again, id)
	}
}

func TestRemoveMarkedPrimitive(t *testing.T) {
	w := NewWorld(mustLevel(t, twoRooms()))
	id := w.AddPrimitive(box(vec.Vec3{64, 0, 0}, 4))
	if err := w.MarkPrimitive(id); err != nil {
		t.Fatal(err)
	}
	if err := w.RemovePrimitive(id); err != nil {
		t.Fatal(err)
	}
	if n := w.UpdatePrimitiveLinks(); n != 0 {
		t.Errorf("UpdatePrimitiveLinks() = %d, want 0", n)
	}
}

func TestNoDuplicateLinks(t *testing.T) {
	// both leafs belong to area 0
	d := twoRooms()
	d.Leafs[1].Area = 0
	d.Portals = nil
	d.HullVertices = nil
	d2 := open()
	w := NewWorld(mustLevel(t, d), mustLevel(t, d2))

	id := w.AddPrimitive(box(vec.Vec3{0, 0, 0}, 8))
	want := [][2]int32{{1, 1}, {0, 1}}
	for i := 0; i < 3; i++ {
		areas, err := w.PrimitiveAreas(id, nil)
		if err != nil || !reflect.DeepEqual(areas, want) {
			t.Errorf("pass %d: PrimitiveAreas = %v, %v, want %v", i, areas, err, want)
		}
		if got := w.AreaPrimitives(0, 1, nil); !reflect.DeepEqual(got, []PrimitiveID{id}) {
			t.Errorf("pass %d: AreaPrimitives(0, 1) = %v, want [%d]", i, got, id)
		}
		w.addLink(id, 0, 1)
		w.MarkPrimitive(id)
		w.UpdatePrimitiveLinks()
	}
}

func TestPrimitiveInSolid(t *testing.T) {
	w := NewWorld(mustLevel(t, wall()))
	id := w.AddPrimitive(box(vec.Vec3{5, 0, 0}, 2))
	areas, err := w.PrimitiveAreas(id, nil)
	if err != nil || len(areas) != 0 {
		t.Errorf("PrimitiveAreas(in solid) = %v, %v, want none", areas, err)
	}
}
