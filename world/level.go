// SPDX-License-Identifier: GPL-2.0-or-later

// Package world answers visibility and raycast queries against baked levels
// and the movable primitives placed into them.
package world

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"govis/bsp"
	"govis/geom"
	"govis/level"
	"govis/math/vec"
)

// OutdoorArea is the index of the outdoor area of every level.
const OutdoorArea = 0

const none = -1

// nonPlanarEpsilon is the largest vertex distance from the plane of the first
// triangle for which a surface still counts as planar.
const nonPlanarEpsilon = 0.01

type Area struct {
	Mins, Maxs   vec.Vec3
	FirstPortal  int32 // head of the portal link list, -1 if none
	FirstSurface int32 // into Level.SurfaceRefs
	NumSurfaces  int32
}

// Portal is a pair of PortalLinks, one for each area it joins.
type Portal struct {
	Links   [2]int32
	Blocked bool
}

// PortalLink is the side of a portal seen from the area owning it. The plane
// normal points into the owning area and the hull is wound around it.
type PortalLink struct {
	Portal int32
	Area   int32
	Target int32
	Next   int32
	Plane  geom.Plane
	Hull   []vec.Vec3
}

type Surface struct {
	FirstIndex   int32
	NumIndices   int32
	Mins, Maxs   vec.Vec3
	Plane        geom.Plane // plane of the first triangle
	Planar       bool
	TwoSided     bool
	Material     int32
	LightmapSlot int32
	QueryGroup   uint32
	VisGroup     uint32
}

// Level is the runtime form of a level.Desc. Areas are shifted by one: area 0
// is the outdoor area and area i+1 is Desc.Areas[i].
type Level struct {
	Name        string
	Tree        *bsp.Tree // nil if the level has no tree
	Areas       []Area
	Portals     []Portal
	Links       []PortalLink
	Vertices    []level.Vertex
	Indices     []uint32
	Materials   []level.Material
	Surfaces    []Surface
	SurfaceRefs []int32
}

func areaIndex(a int32) int32 {
	return a + 1
}

// NewLevel validates d and builds a level from it.
func NewLevel(d *level.Desc) (*Level, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	l := &Level{
		Name:        d.Name,
		Vertices:    d.Vertices,
		Indices:     d.Indices,
		Materials:   d.Materials,
		SurfaceRefs: d.SurfaceRefs,
	}
	if len(d.Nodes) > 0 {
		t, err := newTree(d)
		if err != nil {
			return nil, errors.Wrapf(err, "level %q", d.Name)
		}
		l.Tree = t
	}

	inf := math32.Inf(1)
	l.Areas = make([]Area, 0, len(d.Areas)+1)
	l.Areas = append(l.Areas, Area{
		Mins:         vec.Vec3{-inf, -inf, -inf},
		Maxs:         vec.Vec3{inf, inf, inf},
		FirstPortal:  none,
		FirstSurface: d.Outdoor.FirstSurface,
		NumSurfaces:  d.Outdoor.NumSurfaces,
	})
	for _, a := range d.Areas {
		l.Areas = append(l.Areas, Area{
			Mins:         a.Mins,
			Maxs:         a.Maxs,
			FirstPortal:  none,
			FirstSurface: a.FirstSurface,
			NumSurfaces:  a.NumSurfaces,
		})
	}

	for i := range d.Portals {
		if err := l.addPortal(d, i); err != nil {
			return nil, errors.Wrapf(err, "level %q: portal %d", d.Name, i)
		}
	}

	l.Surfaces = make([]Surface, len(d.Surfaces))
	for i := range d.Surfaces {
		l.Surfaces[i] = l.newSurface(&d.Surfaces[i])
	}
	return l, nil
}

func newTree(d *level.Desc) (*bsp.Tree, error) {
	t := &bsp.Tree{
		Planes: make([]geom.Plane, len(d.Planes)),
		Nodes:  make([]bsp.Node, len(d.Nodes)),
		Leafs:  make([]bsp.Leaf, len(d.Leafs)),
	}
	for i, p := range d.Planes {
		t.Planes[i] = geom.NewPlane(p.Normal, p.Dist)
	}
	for i, n := range d.Nodes {
		t.Nodes[i] = bsp.Node{
			Mins:     n.Mins,
			Maxs:     n.Maxs,
			Plane:    n.Plane,
			Children: n.Children,
		}
	}
	for i, lf := range d.Leafs {
		t.Leafs[i] = bsp.Leaf{
			Mins:      lf.Mins,
			Maxs:      lf.Maxs,
			Cluster:   lf.Cluster,
			Area:      areaIndex(lf.Area),
			AudioArea: lf.AudioArea,
			VisOffset: lf.VisOffset,
		}
	}
	if d.PVS != nil {
		t.PVS = &bsp.PVS{
			Data:         d.PVS.Data,
			ClusterCount: int(d.PVS.ClusterCount),
			Compressed:   d.PVS.Compressed,
		}
	}
	if err := t.LinkParents(); err != nil {
		return nil, err
	}
	return t, nil
}

func (l *Level) addPortal(d *level.Desc, i int) error {
	hull := d.Hull(i)
	plane, ok := geom.PolygonPlane(hull)
	if !ok {
		return errors.New("degenerate hull")
	}
	if len(hull) > geom.MaxWindingPoints {
		return errors.Errorf("hull with %d points", len(hull))
	}
	p := &d.Portals[i]
	pi := int32(len(l.Portals))
	front := append([]vec.Vec3(nil), hull...)
	back := make([]vec.Vec3, len(hull))
	for j, v := range hull {
		back[len(hull)-1-j] = v
	}
	a0, a1 := areaIndex(p.Areas[0]), areaIndex(p.Areas[1])
	l0 := l.addLink(PortalLink{Portal: pi, Area: a0, Target: a1, Plane: plane, Hull: front})
	l1 := l.addLink(PortalLink{Portal: pi, Area: a1, Target: a0, Plane: plane.Flip(), Hull: back})
	l.Portals = append(l.Portals, Portal{Links: [2]int32{l0, l1}})
	return nil
}

func (l *Level) addLink(pl PortalLink) int32 {
	idx := int32(len(l.Links))
	a := &l.Areas[pl.Area]
	pl.Next = a.FirstPortal
	a.FirstPortal = idx
	l.Links = append(l.Links, pl)
	return idx
}

func (l *Level) newSurface(s *level.Surface) Surface {
	ns := Surface{
		FirstIndex:   s.FirstIndex,
		NumIndices:   s.NumIndices,
		TwoSided:     s.Flags&level.SurfaceTwoSided != 0,
		Material:     s.Material,
		LightmapSlot: s.LightmapSlot,
		QueryGroup:   s.QueryGroup,
		VisGroup:     s.VisGroup,
	}
	idx := l.Indices[s.FirstIndex : s.FirstIndex+s.NumIndices]
	if len(idx) == 0 {
		return ns
	}
	ns.Mins = l.Vertices[idx[0]].Pos
	ns.Maxs = ns.Mins
	for _, i := range idx {
		ns.Mins = vec.Min(ns.Mins, l.Vertices[i].Pos)
		ns.Maxs = vec.Max(ns.Maxs, l.Vertices[i].Pos)
	}
	p, ok := geom.PlaneFromPoints(l.Vertices[idx[0]].Pos, l.Vertices[idx[1]].Pos, l.Vertices[idx[2]].Pos)
	if !ok {
		return ns
	}
	ns.Plane = p
	ns.Planar = s.Flags&level.SurfaceNonPlanar == 0
	for _, i := range idx {
		if !ns.Planar {
			break
		}
		if math32.Abs(p.Distance(l.Vertices[i].Pos)) > nonPlanarEpsilon {
			ns.Planar = false
		}
	}
	return ns
}

// FindLeaf returns the leaf containing p or -1 if p is in solid space or the
// level has no tree.
func (l *Level) FindLeaf(p vec.Vec3) int {
	if l.Tree == nil {
		return -1
	}
	return l.Tree.FindLeaf(p)
}

// FindArea returns the area containing p. Points in solid space belong to the
// outdoor area. Without a tree the first area whose bounds contain p wins.
func (l *Level) FindArea(p vec.Vec3) int32 {
	if l.Tree == nil {
		for i := 1; i < len(l.Areas); i++ {
			a := &l.Areas[i]
			if geom.BoxContains(a.Mins, a.Maxs, p) {
				return int32(i)
			}
		}
		return OutdoorArea
	}
	leaf := l.Tree.FindLeaf(p)
	if leaf < 0 {
		return OutdoorArea
	}
	return l.Tree.Leafs[leaf].Area
}

// SetPortalBlocked closes or opens a portal. Blocked portals keep their links
// but are never traversed.
func (l *Level) SetPortalBlocked(portal int, blocked bool) {
	l.Portals[portal].Blocked = blocked
}

func (l *Level) PortalBlocked(portal int) bool {
	return l.Portals[portal].Blocked
}

func (l *Level) areaSurface(a *Area, i int32) int32 {
	return l.SurfaceRefs[a.FirstSurface+i]
}

// triangle returns the vertices of the triangle starting at index i.
func (l *Level) triangle(i int32) (a, b, c *level.Vertex) {
	return &l.Vertices[l.Indices[i]], &l.Vertices[l.Indices[i+1]], &l.Vertices[l.Indices[i+2]]
}

type LevelStats struct {
	Planes     int
	Nodes      int
	Leafs      int
	Clusters   int
	PVSBytes   int
	Areas      int // without the outdoor area
	Portals    int
	Blocked    int
	Surfaces   int
	Planar     int
	Triangles  int
	Vertices   int
	Materials  int
	Compressed bool
	HasPVS     bool
	HasTree    bool
}

func (l *Level) Stats() LevelStats {
	s := LevelStats{
		Areas:     len(l.Areas) - 1,
		Portals:   len(l.Portals),
		Surfaces:  len(l.Surfaces),
		Triangles: len(l.Indices) / 3,
		Vertices:  len(l.Vertices),
		Materials: len(l.Materials),
	}
	if t := l.Tree; t != nil {
		s.HasTree = true
		s.Planes = len(t.Planes)
		s.Nodes = len(t.Nodes)
		s.Leafs = len(t.Leafs)
		if t.PVS != nil {
			s.HasPVS = true
			s.Clusters = t.PVS.ClusterCount
			s.PVSBytes = len(t.PVS.Data)
			s.Compressed = t.PVS.Compressed
		}
	}
	for _, p := range l.Portals {
		if p.Blocked {
			s.Blocked++
		}
	}
	for _, sf := range l.Surfaces {
		if sf.Planar {
			s.Planar++
		}
	}
	return s
}
