// SPDX-License-Identifier: GPL-2.0-or-later

package level

import (
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"govis/geom"
	"govis/math/vec"
)

// ImportGLTF reads the triangle meshes of a glTF document as brush geometry.
// Every mesh primitive becomes one surface of the outdoor area; the level has
// no tree, areas or portals. Surfaces get the given query and visibility
// groups.
func ImportGLTF(r io.Reader, name string, queryGroup, visGroup uint32) (*Desc, error) {
	doc := gltf.NewDocument()
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "import gltf %s", name)
	}
	d := &Desc{Name: name}
	for _, m := range doc.Materials {
		d.Materials = append(d.Materials, Material{Name: m.Name})
	}
	for mi, mesh := range doc.Meshes {
		for pi, p := range mesh.Primitives {
			if p.Mode != gltf.PrimitiveTriangles {
				continue
			}
			if err := importPrimitive(d, doc, p, queryGroup, visGroup); err != nil {
				return nil, errors.Wrapf(err, "import gltf %s: mesh %d primitive %d", name, mi, pi)
			}
		}
	}
	d.Outdoor.NumSurfaces = int32(len(d.SurfaceRefs))
	if len(d.Vertices) > 0 {
		pts := make([]vec.Vec3, len(d.Vertices))
		for i, v := range d.Vertices {
			pts[i] = v.Pos
		}
		d.Outdoor.Mins, d.Outdoor.Maxs = geom.Bounds(pts)
	}
	return d, nil
}

func importPrimitive(d *Desc, doc *gltf.Document, p *gltf.Primitive, queryGroup, visGroup uint32) error {
	posAcc, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return errors.New("no positions")
	}
	pos, err := modeler.ReadPosition(doc, doc.Accessors[posAcc], nil)
	if err != nil {
		return errors.Wrap(err, "positions")
	}
	base := uint32(len(d.Vertices))
	for _, v := range pos {
		d.Vertices = append(d.Vertices, Vertex{Pos: vec.FromA(v)})
	}
	verts := d.Vertices[base:]
	if acc, ok := p.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[acc], nil)
		if err != nil {
			return errors.Wrap(err, "normals")
		}
		for i := range normals {
			if i < len(verts) {
				verts[i].Normal = vec.FromA(normals[i])
			}
		}
	}
	if acc, ok := p.Attributes[gltf.TEXCOORD_0]; ok {
		uv, err := modeler.ReadTextureCoord(doc, doc.Accessors[acc], nil)
		if err != nil {
			return errors.Wrap(err, "texture coordinates")
		}
		for i := range uv {
			if i < len(verts) {
				verts[i].UV = uv[i]
			}
		}
	}
	if acc, ok := p.Attributes[gltf.TEXCOORD_1]; ok {
		uv, err := modeler.ReadTextureCoord(doc, doc.Accessors[acc], nil)
		if err != nil {
			return errors.Wrap(err, "lightmap coordinates")
		}
		for i := range uv {
			if i < len(verts) {
				verts[i].LightmapUV = uv[i]
			}
		}
	}

	var indices []uint32
	if p.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
		if err != nil {
			return errors.Wrap(err, "indices")
		}
	} else {
		indices = make([]uint32, len(pos))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	indices = indices[:len(indices)/3*3]
	s := Surface{
		FirstIndex:   int32(len(d.Indices)),
		NumIndices:   int32(len(indices)),
		Material:     -1,
		LightmapSlot: -1,
		QueryGroup:   queryGroup,
		VisGroup:     visGroup,
	}
	if p.Material != nil {
		s.Material = int32(*p.Material)
	}
	if m := p.Material; m != nil && *m < len(doc.Materials) && doc.Materials[*m].DoubleSided {
		s.Flags |= SurfaceTwoSided
	}
	for _, i := range indices {
		d.Indices = append(d.Indices, base+i)
	}
	d.SurfaceRefs = append(d.SurfaceRefs, int32(len(d.Surfaces)))
	d.Surfaces = append(d.Surfaces, s)
	return nil
}
