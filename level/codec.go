// SPDX-License-Identifier: GPL-2.0-or-later

package level

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"govis/math/vec"
)

// Version of the encoding written by Marshal.
const Version = 1

// Field numbers, see level.proto.
const (
	fName         protowire.Number = 1
	fPlane        protowire.Number = 2
	fNode         protowire.Number = 3
	fLeaf         protowire.Number = 4
	fArea         protowire.Number = 5
	fPortal       protowire.Number = 6
	fHullVertices protowire.Number = 7
	fPVS          protowire.Number = 8
	fVertex       protowire.Number = 9
	fIndices      protowire.Number = 10
	fMaterial     protowire.Number = 11
	fSurface      protowire.Number = 12
	fSurfaceRefs  protowire.Number = 13
	fOutdoor      protowire.Number = 14
	fVersion      protowire.Number = 15
)

func appendSint(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
}

func appendUint(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendFloats(b []byte, num protowire.Number, v []float32) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(v)))
	for _, f := range v {
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	return b
}

func appendVec(b []byte, num protowire.Number, v vec.Vec3) []byte {
	return appendFloats(b, num, v[:])
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendArea(m []byte, a *Area) []byte {
	m = appendVec(m, 1, a.Mins)
	m = appendVec(m, 2, a.Maxs)
	m = appendSint(m, 3, a.FirstSurface)
	return appendSint(m, 4, a.NumSurfaces)
}

func decodeArea(f *field, a *Area) error {
	return decodeMessage(f, func(f *field) error {
		var err error
		switch f.num {
		case 1:
			a.Mins, err = f.vec()
		case 2:
			a.Maxs, err = f.vec()
		case 3:
			a.FirstSurface = f.sint()
		case 4:
			a.NumSurfaces = f.sint()
		}
		return err
	})
}

// Marshal encodes the level in the protobuf wire format described by
// level.proto.
func Marshal(d *Desc) []byte {
	var b, m []byte
	b = appendUint(b, fVersion, Version)
	if d.Name != "" {
		b = protowire.AppendTag(b, fName, protowire.BytesType)
		b = protowire.AppendString(b, d.Name)
	}
	for _, p := range d.Planes {
		m = appendVec(m[:0], 1, p.Normal)
		m = appendFloat(m, 2, p.Dist)
		b = appendMessage(b, fPlane, m)
	}
	for _, n := range d.Nodes {
		m = appendSint(m[:0], 1, n.Parent)
		m = appendVec(m, 2, n.Mins)
		m = appendVec(m, 3, n.Maxs)
		m = appendSint(m, 4, n.Plane)
		m = appendSint(m, 5, n.Children[0])
		m = appendSint(m, 6, n.Children[1])
		b = appendMessage(b, fNode, m)
	}
	for _, l := range d.Leafs {
		m = appendSint(m[:0], 1, l.Parent)
		m = appendVec(m, 2, l.Mins)
		m = appendVec(m, 3, l.Maxs)
		m = appendSint(m, 4, l.Cluster)
		m = appendSint(m, 5, l.Area)
		m = appendSint(m, 6, l.AudioArea)
		m = appendSint(m, 7, l.VisOffset)
		b = appendMessage(b, fLeaf, m)
	}
	for _, a := range d.Areas {
		b = appendMessage(b, fArea, appendArea(m[:0], &a))
	}
	b = appendMessage(b, fOutdoor, appendArea(m[:0], &d.Outdoor))
	for _, p := range d.Portals {
		m = appendSint(m[:0], 1, p.FirstVertex)
		m = appendSint(m, 2, p.NumVertices)
		m = appendSint(m, 3, p.Areas[0])
		m = appendSint(m, 4, p.Areas[1])
		b = appendMessage(b, fPortal, m)
	}
	if len(d.HullVertices) > 0 {
		f := make([]float32, 0, 3*len(d.HullVertices))
		for _, v := range d.HullVertices {
			f = append(f, v[:]...)
		}
		b = appendFloats(b, fHullVertices, f)
	}
	if d.PVS != nil {
		m = m[:0]
		if len(d.PVS.Data) > 0 {
			m = protowire.AppendTag(m, 1, protowire.BytesType)
			m = protowire.AppendBytes(m, d.PVS.Data)
		}
		m = appendSint(m, 2, d.PVS.ClusterCount)
		if d.PVS.Compressed {
			m = appendUint(m, 3, 1)
		}
		b = appendMessage(b, fPVS, m)
	}
	for _, v := range d.Vertices {
		m = appendVec(m[:0], 1, v.Pos)
		m = appendVec(m, 2, v.Normal)
		m = appendFloats(m, 3, v.UV[:])
		m = appendFloats(m, 4, v.LightmapUV[:])
		b = appendMessage(b, fVertex, m)
	}
	if len(d.Indices) > 0 {
		m = m[:0]
		for _, i := range d.Indices {
			m = protowire.AppendVarint(m, uint64(i))
		}
		b = appendMessage(b, fIndices, m)
	}
	for _, mat := range d.Materials {
		m = m[:0]
		if mat.Name != "" {
			m = protowire.AppendTag(m, 1, protowire.BytesType)
			m = protowire.AppendString(m, mat.Name)
		}
		b = appendMessage(b, fMaterial, m)
	}
	for _, s := range d.Surfaces {
		m = appendSint(m[:0], 1, s.FirstIndex)
		m = appendSint(m, 2, s.NumIndices)
		m = appendSint(m, 3, s.Material)
		m = appendSint(m, 4, s.LightmapSlot)
		m = appendUint(m, 5, s.QueryGroup)
		m = appendUint(m, 6, s.VisGroup)
		m = appendUint(m, 7, s.Flags)
		b = appendMessage(b, fSurface, m)
	}
	if len(d.SurfaceRefs) > 0 {
		m = m[:0]
		for _, r := range d.SurfaceRefs {
			m = protowire.AppendVarint(m, protowire.EncodeZigZag(int64(r)))
		}
		b = appendMessage(b, fSurfaceRefs, m)
	}
	return b
}

// field is one decoded field of a message.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	fixed  uint32
	bytes  []byte
}

func (f *field) sint() int32 {
	return int32(protowire.DecodeZigZag(f.varint))
}

func (f *field) float() float32 {
	return math.Float32frombits(f.fixed)
}

func (f *field) floats(dst []float32) error {
	if len(f.bytes)%4 != 0 {
		return errors.Errorf("field %d: packed floats of %d bytes", f.num, len(f.bytes))
	}
	if len(f.bytes) != 4*len(dst) && dst != nil {
		return errors.Errorf("field %d: want %d floats, got %d", f.num, len(dst), len(f.bytes)/4)
	}
	b := f.bytes
	for i := range dst {
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		dst[i] = math.Float32frombits(v)
		b = b[n:]
	}
	return nil
}

func (f *field) vec() (vec.Vec3, error) {
	var v vec.Vec3
	err := f.floats(v[:])
	return v, err
}

// eachField calls fn for every field in b.
func eachField(b []byte, fn func(f *field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed, n = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(&f); err != nil {
			return err
		}
	}
	return nil
}

func wantType(f *field, t protowire.Type) error {
	if f.typ != t {
		return errors.Errorf("field %d: wire type %d, want %d", f.num, f.typ, t)
	}
	return nil
}

func decodeMessage(f *field, fn func(f *field) error) error {
	if err := wantType(f, protowire.BytesType); err != nil {
		return err
	}
	return eachField(f.bytes, fn)
}

// Unmarshal decodes a level written by Marshal.
func Unmarshal(b []byte) (*Desc, error) {
	d := &Desc{}
	version := uint64(0)
	var n int
	err := eachField(b, func(f *field) error {
		var err error
		switch f.num {
		case fVersion:
			version = f.varint
		case fName:
			d.Name = string(f.bytes)
		case fPlane:
			var p Plane
			err = decodeMessage(f, func(f *field) error {
				var err error
				switch f.num {
				case 1:
					p.Normal, err = f.vec()
				case 2:
					p.Dist = f.float()
				}
				return err
			})
			d.Planes = append(d.Planes, p)
		case fNode:
			var nd Node
			err = decodeMessage(f, func(f *field) error {
				var err error
				switch f.num {
				case 1:
					nd.Parent = f.sint()
				case 2:
					nd.Mins, err = f.vec()
				case 3:
					nd.Maxs, err = f.vec()
				case 4:
					nd.Plane = f.sint()
				case 5:
					nd.Children[0] = f.sint()
				case 6:
					nd.Children[1] = f.sint()
				}
				return err
			})
			d.Nodes = append(d.Nodes, nd)
		case fLeaf:
			var l Leaf
			err = decodeMessage(f, func(f *field) error {
				var err error
				switch f.num {
				case 1:
					l.Parent = f.sint()
				case 2:
					l.Mins, err = f.vec()
				case 3:
					l.Maxs, err = f.vec()
				case 4:
					l.Cluster = f.sint()
				case 5:
					l.Area = f.sint()
				case 6:
					l.AudioArea = f.sint()
				case 7:
					l.VisOffset = f.sint()
				}
				return err
			})
			d.Leafs = append(d.Leafs, l)
		case fArea:
			var a Area
			err = decodeArea(f, &a)
			d.Areas = append(d.Areas, a)
		case fOutdoor:
			err = decodeArea(f, &d.Outdoor)
		case fPortal:
			var p Portal
			err = decodeMessage(f, func(f *field) error {
				switch f.num {
				case 1:
					p.FirstVertex = f.sint()
				case 2:
					p.NumVertices = f.sint()
				case 3:
					p.Areas[0] = f.sint()
				case 4:
					p.Areas[1] = f.sint()
				}
				return nil
			})
			d.Portals = append(d.Portals, p)
		case fHullVertices:
			if err = wantType(f, protowire.BytesType); err != nil {
				break
			}
			if len(f.bytes)%12 != 0 {
				err = errors.Errorf("hull vertices of %d bytes", len(f.bytes))
				break
			}
			fl := make([]float32, len(f.bytes)/4)
			if err = f.floats(fl); err != nil {
				break
			}
			for i := 0; i < len(fl); i += 3 {
				d.HullVertices = append(d.HullVertices, vec.Vec3{fl[i], fl[i+1], fl[i+2]})
			}
		case fPVS:
			p := &PVS{}
			err = decodeMessage(f, func(f *field) error {
				switch f.num {
				case 1:
					p.Data = append([]byte(nil), f.bytes...)
				case 2:
					p.ClusterCount = f.sint()
				case 3:
					p.Compressed = protowire.DecodeBool(f.varint)
				}
				return nil
			})
			d.PVS = p
		case fVertex:
			var v Vertex
			err = decodeMessage(f, func(f *field) error {
				var err error
				switch f.num {
				case 1:
					v.Pos, err = f.vec()
				case 2:
					v.Normal, err = f.vec()
				case 3:
					err = f.floats(v.UV[:])
				case 4:
					err = f.floats(v.LightmapUV[:])
				}
				return err
			})
			d.Vertices = append(d.Vertices, v)
		case fIndices:
			if err = wantType(f, protowire.BytesType); err != nil {
				break
			}
			for in := f.bytes; len(in) > 0; in = in[n:] {
				var v uint64
				v, n = protowire.ConsumeVarint(in)
				if n < 0 {
					return errors.Wrap(protowire.ParseError(n), "indices")
				}
				d.Indices = append(d.Indices, uint32(v))
			}
		case fMaterial:
			var m Material
			err = decodeMessage(f, func(f *field) error {
				if f.num == 1 {
					m.Name = string(f.bytes)
				}
				return nil
			})
			d.Materials = append(d.Materials, m)
		case fSurface:
			var s Surface
			err = decodeMessage(f, func(f *field) error {
				switch f.num {
				case 1:
					s.FirstIndex = f.sint()
				case 2:
					s.NumIndices = f.sint()
				case 3:
					s.Material = f.sint()
				case 4:
					s.LightmapSlot = f.sint()
				case 5:
					s.QueryGroup = uint32(f.varint)
				case 6:
					s.VisGroup = uint32(f.varint)
				case 7:
					s.Flags = uint32(f.varint)
				}
				return nil
			})
			d.Surfaces = append(d.Surfaces, s)
		case fSurfaceRefs:
			if err = wantType(f, protowire.BytesType); err != nil {
				break
			}
			for in := f.bytes; len(in) > 0; in = in[n:] {
				var v uint64
				v, n = protowire.ConsumeVarint(in)
				if n < 0 {
					return errors.Wrap(protowire.ParseError(n), "surface refs")
				}
				d.SurfaceRefs = append(d.SurfaceRefs, int32(protowire.DecodeZigZag(v)))
			}
		}
		return errors.Wrapf(err, "field %d", f.num)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode level")
	}
	if version > Version {
		return nil, errors.Errorf("decode level: version %d not supported", version)
	}
	return d, nil
}

// Load reads a level file written by Save.
func Load(name string) (*Desc, error) {
	in, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load level %s", name)
	}
	d, err := Unmarshal(in)
	if err != nil {
		return nil, errors.Wrapf(err, "load level %s", name)
	}
	return d, nil
}

// Save writes the level to a file.
func Save(name string, d *Desc) error {
	if err := os.WriteFile(name, Marshal(d), 0660); err != nil {
		return errors.Wrapf(err, "save level %s", name)
	}
	return nil
}
