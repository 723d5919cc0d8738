// SPDX-License-Identifier: GPL-2.0-or-later

// Package level holds the flat arrays a baked level is made of and reads and
// writes them.
package level

import (
	"github.com/pkg/errors"

	"govis/math/vec"
)

// OutdoorArea is the area of leafs with Area set to it and the index of the
// outdoor area in a built level.
const OutdoorArea = -1

// Surface flags
const (
	SurfaceTwoSided = 1 << iota
	SurfaceNonPlanar
)

type Plane struct {
	Normal vec.Vec3
	Dist   float32
}

type Node struct {
	Parent   int32
	Mins     vec.Vec3
	Maxs     vec.Vec3
	Plane    int32
	Children [2]int32
}

type Leaf struct {
	Parent    int32
	Mins      vec.Vec3
	Maxs      vec.Vec3
	Cluster   int32
	Area      int32 // index into Areas or OutdoorArea
	AudioArea int32
	VisOffset int32
}

type Area struct {
	Mins         vec.Vec3
	Maxs         vec.Vec3
	FirstSurface int32 // into SurfaceRefs
	NumSurfaces  int32
}

// Portal connects Areas[0] and Areas[1]. The hull normal following the right
// hand rule points into Areas[0]. An area of OutdoorArea is the outdoor area.
type Portal struct {
	FirstVertex int32 // into HullVertices
	NumVertices int32
	Areas       [2]int32
}

type PVS struct {
	Data         []byte
	ClusterCount int32
	Compressed   bool
}

type Vertex struct {
	Pos        vec.Vec3
	Normal     vec.Vec3
	UV         [2]float32
	LightmapUV [2]float32
}

type Material struct {
	Name string
}

// Surface is a triangle list in Indices.
type Surface struct {
	FirstIndex   int32
	NumIndices   int32
	Material     int32
	LightmapSlot int32
	QueryGroup   uint32
	VisGroup     uint32
	Flags        uint32
}

// Desc is a baked level as produced by a level compiler.
type Desc struct {
	Name         string
	Planes       []Plane
	Nodes        []Node
	Leafs        []Leaf
	Areas        []Area
	Portals      []Portal
	HullVertices []vec.Vec3
	PVS          *PVS
	// Outdoor describes the surfaces of the outdoor area. Its bounds are
	// ignored, the outdoor area is unbounded.
	Outdoor Area

	Vertices    []Vertex
	Indices     []uint32
	Materials   []Material
	Surfaces    []Surface
	SurfaceRefs []int32
}

func inRange(first, num int32, size int) bool {
	return first >= 0 && num >= 0 && int(first)+int(num) <= size
}

func checkArea(a int32, n int) bool {
	return a == OutdoorArea || (a >= 0 && int(a) < n)
}

// Validate checks that every index in the level is in range.
func (d *Desc) Validate() error {
	if err := d.validateTree(); err != nil {
		return errors.Wrapf(err, "level %q", d.Name)
	}
	if err := d.validateAreas(); err != nil {
		return errors.Wrapf(err, "level %q", d.Name)
	}
	if err := d.validateSurfaces(); err != nil {
		return errors.Wrapf(err, "level %q", d.Name)
	}
	return nil
}

func (d *Desc) validateTree() error {
	if len(d.Nodes) == 0 && len(d.Leafs) != 0 {
		return errors.New("leafs without nodes")
	}
	for i, n := range d.Nodes {
		if n.Plane < 0 || int(n.Plane) >= len(d.Planes) {
			return errors.Errorf("node %d: plane %d out of range", i, n.Plane)
		}
		for _, c := range n.Children {
			if c > 0 && int(c) >= len(d.Nodes) {
				return errors.Errorf("node %d: child node %d out of range", i, c)
			}
			if c < 0 && int(-1-c) >= len(d.Leafs) {
				return errors.Errorf("node %d: child leaf %d out of range", i, -1-c)
			}
		}
	}
	for i, l := range d.Leafs {
		if !checkArea(l.Area, len(d.Areas)) {
			return errors.Errorf("leaf %d: area %d out of range", i, l.Area)
		}
		if d.PVS != nil && l.Cluster >= d.PVS.ClusterCount {
			return errors.Errorf("leaf %d: cluster %d out of range", i, l.Cluster)
		}
	}
	if d.PVS != nil && d.PVS.ClusterCount < 0 {
		return errors.Errorf("pvs: negative cluster count %d", d.PVS.ClusterCount)
	}
	return nil
}

func (d *Desc) validateAreas() error {
	if !inRange(d.Outdoor.FirstSurface, d.Outdoor.NumSurfaces, len(d.SurfaceRefs)) {
		return errors.Errorf("outdoor area: surfaces [%d,+%d) out of range", d.Outdoor.FirstSurface, d.Outdoor.NumSurfaces)
	}
	for i, a := range d.Areas {
		if !inRange(a.FirstSurface, a.NumSurfaces, len(d.SurfaceRefs)) {
			return errors.Errorf("area %d: surfaces [%d,+%d) out of range", i, a.FirstSurface, a.NumSurfaces)
		}
	}
	for i, p := range d.Portals {
		if !inRange(p.FirstVertex, p.NumVertices, len(d.HullVertices)) {
			return errors.Errorf("portal %d: hull vertices [%d,+%d) out of range", i, p.FirstVertex, p.NumVertices)
		}
		if p.NumVertices < 3 {
			return errors.Errorf("portal %d: hull with %d vertices", i, p.NumVertices)
		}
		for _, a := range p.Areas {
			if !checkArea(a, len(d.Areas)) {
				return errors.Errorf("portal %d: area %d out of range", i, a)
			}
		}
		if p.Areas[0] == p.Areas[1] {
			return errors.Errorf("portal %d: connects area %d with itself", i, p.Areas[0])
		}
	}
	return nil
}

func (d *Desc) validateSurfaces() error {
	for i, r := range d.SurfaceRefs {
		if r < 0 || int(r) >= len(d.Surfaces) {
			return errors.Errorf("surface ref %d: surface %d out of range", i, r)
		}
	}
	for i, s := range d.Surfaces {
		if !inRange(s.FirstIndex, s.NumIndices, len(d.Indices)) || s.NumIndices%3 != 0 {
			return errors.Errorf("surface %d: indices [%d,+%d) invalid", i, s.FirstIndex, s.NumIndices)
		}
		if s.Material < -1 || int(s.Material) >= len(d.Materials) {
			return errors.Errorf("surface %d: material %d out of range", i, s.Material)
		}
	}
	for i, idx := range d.Indices {
		if int(idx) >= len(d.Vertices) {
			return errors.Errorf("index %d: vertex %d out of range", i, idx)
		}
	}
	return nil
}

// Hull returns the hull vertices of portal p.
func (d *Desc) Hull(p int) []vec.Vec3 {
	pt := &d.Portals[p]
	return d.HullVertices[pt.FirstVertex : pt.FirstVertex+pt.NumVertices]
}
