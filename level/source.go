// SPDX-License-Identifier: GPL-2.0-or-later

package level

import (
	"github.com/galaco/bsp"
	"github.com/galaco/bsp/lumps"
	"github.com/pkg/errors"

	"govis/geom"
	"govis/math/vec"
)

const sourceContentsSolid = 0x1

// ImportSourceFile reads a Source engine BSP file.
func ImportSourceFile(name string, queryGroup, visGroup uint32) (*Desc, error) {
	f, err := bsp.ReadFromFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "import source bsp %s", name)
	}
	d, err := ImportSource(f, name, queryGroup, visGroup)
	if err != nil {
		return nil, errors.Wrapf(err, "import source bsp %s", name)
	}
	return d, nil
}

type sourceLeaf struct {
	mins, maxs vec.Vec3
	contents   int32
	cluster    int32
	firstFace  int // into leafFaces
	numFaces   int
}

// sourceMap holds what the import needs from the lumps of a Source map.
type sourceMap struct {
	planes    []Plane
	nodes     []Node // children still in Source encoding
	leafs     []sourceLeaf
	leafFaces []uint16
	faces     [][]vec.Vec3 // convex windings, nil if unusable

	clusters   int32
	visData    []byte
	visOffsets []int32 // pvs row of each cluster
}

// ImportSource converts the tree, the visibility data and the faces of a
// Source engine map. Source maps carry no portal graph usable here. Every
// visibility cluster becomes an area holding the faces its leafs list, faces
// no leaf lists belong to the outdoor area.
func ImportSource(f *bsp.Bsp, name string, queryGroup, visGroup uint32) (*Desc, error) {
	vis := f.Lump(bsp.LumpVisibility).(*lumps.Visibility).GetData()
	faces := f.Lump(bsp.LumpFaces).(*lumps.Face).GetData()
	surfEdges := f.Lump(bsp.LumpSurfEdges).(*lumps.Surfedge).GetData()
	edges := f.Lump(bsp.LumpEdges).(*lumps.Edge).GetData()
	vertices := f.Lump(bsp.LumpVertexes).(*lumps.Vertex).GetData()

	m := &sourceMap{
		leafFaces: f.Lump(bsp.LumpLeafFaces).(*lumps.LeafFace).GetData(),
	}
	for _, p := range f.Lump(bsp.LumpPlanes).(*lumps.Planes).GetData() {
		m.planes = append(m.planes, Plane{Normal: vec.Vec3(p.Normal), Dist: p.Distance})
	}
	for _, n := range f.Lump(bsp.LumpNodes).(*lumps.Node).GetData() {
		m.nodes = append(m.nodes, Node{
			Parent:   -1,
			Mins:     vec.Vec3{float32(n.Mins[0]), float32(n.Mins[1]), float32(n.Mins[2])},
			Maxs:     vec.Vec3{float32(n.Maxs[0]), float32(n.Maxs[1]), float32(n.Maxs[2])},
			Plane:    int32(n.PlaneNum),
			Children: [2]int32{int32(n.Children[0]), int32(n.Children[1])},
		})
	}
	for _, l := range f.Lump(bsp.LumpLeafs).(*lumps.Leaf).GetData() {
		m.leafs = append(m.leafs, sourceLeaf{
			mins:      vec.Vec3{float32(l.Mins[0]), float32(l.Mins[1]), float32(l.Mins[2])},
			maxs:      vec.Vec3{float32(l.Maxs[0]), float32(l.Maxs[1]), float32(l.Maxs[2])},
			contents:  int32(l.Contents),
			cluster:   int32(l.Cluster),
			firstFace: int(l.FirstLeafFace),
			numFaces:  int(l.NumLeafFaces),
		})
	}
	if vis != nil && vis.NumClusters > 0 {
		m.clusters = int32(vis.NumClusters)
		m.visData = vis.BitVectors
		for _, o := range vis.ByteOffset {
			m.visOffsets = append(m.visOffsets, int32(o[0]))
		}
	}

	for fi, face := range faces {
		first, num := int(face.FirstEdge), int(face.NumEdges)
		if num < 3 || first < 0 || first+num > len(surfEdges) {
			m.faces = append(m.faces, nil)
			continue
		}
		winding := make([]vec.Vec3, 0, num)
		for i := 0; i < num; i++ {
			e := surfEdges[first+i]
			var v uint16
			if e >= 0 {
				if int(e) >= len(edges) {
					return nil, errors.Errorf("face %d: edge %d out of range", fi, e)
				}
				v = edges[e][0]
			} else {
				if int(-e) >= len(edges) {
					return nil, errors.Errorf("face %d: edge %d out of range", fi, e)
				}
				v = edges[-e][1]
			}
			if int(v) >= len(vertices) {
				return nil, errors.Errorf("face %d: vertex %d out of range", fi, v)
			}
			winding = append(winding, vec.Vec3(vertices[v]))
		}
		m.faces = append(m.faces, winding)
	}
	return m.desc(name, queryGroup, visGroup)
}

// sourceChild converts a Source child reference, >= 0 node and < 0 leaf
// -1-child. Node 0 is the root and never a child, so solid leafs become
// solid space.
func sourceChild(c int32, solid []bool) int32 {
	if c >= 0 {
		return c
	}
	if l := int(-1 - c); l < len(solid) && solid[l] {
		return 0
	}
	return c
}

func (m *sourceMap) desc(name string, queryGroup, visGroup uint32) (*Desc, error) {
	if len(m.nodes) == 0 {
		return nil, errors.New("no nodes")
	}
	d := &Desc{Name: name, Planes: m.planes}

	solid := make([]bool, len(m.leafs))
	for i, l := range m.leafs {
		solid[i] = l.contents&sourceContentsSolid != 0
	}
	for _, n := range m.nodes {
		n.Children = [2]int32{sourceChild(n.Children[0], solid), sourceChild(n.Children[1], solid)}
		d.Nodes = append(d.Nodes, n)
	}

	if m.clusters > 0 {
		d.PVS = &PVS{Data: m.visData, ClusterCount: m.clusters, Compressed: true}
		d.Areas = make([]Area, m.clusters)
	}
	bounded := make([]bool, len(d.Areas))
	for i, l := range m.leafs {
		leaf := Leaf{
			Parent:    -1,
			Mins:      l.mins,
			Maxs:      l.maxs,
			Cluster:   -1,
			Area:      OutdoorArea,
			AudioArea: -1,
			VisOffset: -1,
		}
		if l.cluster >= 0 && l.cluster < m.clusters {
			leaf.Cluster = l.cluster
			if int(l.cluster) < len(m.visOffsets) {
				leaf.VisOffset = m.visOffsets[l.cluster]
			}
			if !solid[i] {
				leaf.Area = l.cluster
				a := &d.Areas[l.cluster]
				if bounded[l.cluster] {
					a.Mins, a.Maxs = vec.Min(a.Mins, l.mins), vec.Max(a.Maxs, l.maxs)
				} else {
					a.Mins, a.Maxs = l.mins, l.maxs
					bounded[l.cluster] = true
				}
			}
		}
		d.Leafs = append(d.Leafs, leaf)
	}
	linkParents(d)

	// faces are convex polygons, triangulate them as fans
	faceSurf := make([]int32, len(m.faces))
	for fi, w := range m.faces {
		faceSurf[fi] = -1
		if w == nil {
			continue
		}
		if s, ok := addPolygon(d, w, queryGroup, visGroup); ok {
			faceSurf[fi] = s
		}
	}

	// a surface is listed once per area, in leaf order
	listed := make([]bool, len(d.Surfaces))
	seen := make(map[[2]int32]bool)
	byArea := make([][]int32, len(d.Areas))
	for i, l := range d.Leafs {
		if l.Area == OutdoorArea {
			continue
		}
		src := m.leafs[i]
		for j := 0; j < src.numFaces; j++ {
			k := src.firstFace + j
			if k < 0 || k >= len(m.leafFaces) {
				return nil, errors.Errorf("leaf %d: leaf face %d out of range", i, k)
			}
			fi := int(m.leafFaces[k])
			if fi >= len(faceSurf) {
				return nil, errors.Errorf("leaf %d: face %d out of range", i, fi)
			}
			s := faceSurf[fi]
			if s < 0 || seen[[2]int32{l.Area, s}] {
				continue
			}
			seen[[2]int32{l.Area, s}] = true
			listed[s] = true
			byArea[l.Area] = append(byArea[l.Area], s)
		}
	}
	for a, refs := range byArea {
		d.Areas[a].FirstSurface = int32(len(d.SurfaceRefs))
		d.Areas[a].NumSurfaces = int32(len(refs))
		d.SurfaceRefs = append(d.SurfaceRefs, refs...)
	}
	d.Outdoor.FirstSurface = int32(len(d.SurfaceRefs))
	for s, ok := range listed {
		if !ok {
			d.SurfaceRefs = append(d.SurfaceRefs, int32(s))
		}
	}
	d.Outdoor.NumSurfaces = int32(len(d.SurfaceRefs)) - d.Outdoor.FirstSurface
	return d, nil
}

// addPolygon appends a convex polygon as a triangle fan surface and returns
// its index. Degenerate polygons are skipped.
func addPolygon(d *Desc, winding []vec.Vec3, queryGroup, visGroup uint32) (int32, bool) {
	p, ok := geom.PolygonPlane(winding)
	if !ok {
		return -1, false
	}
	base := uint32(len(d.Vertices))
	for _, v := range winding {
		d.Vertices = append(d.Vertices, Vertex{Pos: v, Normal: p.Normal})
	}
	s := Surface{
		FirstIndex:   int32(len(d.Indices)),
		Material:     -1,
		LightmapSlot: -1,
		QueryGroup:   queryGroup,
		VisGroup:     visGroup,
	}
	for i := 2; i < len(winding); i++ {
		d.Indices = append(d.Indices, base, base+uint32(i-1), base+uint32(i))
	}
	s.NumIndices = int32(len(d.Indices)) - s.FirstIndex
	d.Surfaces = append(d.Surfaces, s)
	return int32(len(d.Surfaces) - 1), true
}

// linkParents fills the Parent fields from the child references.
func linkParents(d *Desc) {
	for i := range d.Nodes {
		for _, c := range d.Nodes[i].Children {
			switch {
			case c > 0 && int(c) < len(d.Nodes):
				d.Nodes[c].Parent = int32(i)
			case c < 0 && int(-1-c) < len(d.Leafs):
				d.Leafs[-1-c].Parent = int32(i)
			}
		}
	}
}
