// SPDX-License-Identifier: GPL-2.0-or-later

package world

import (
	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"govis/geom"
	"govis/math/vec"
)

var ErrUnknownPrimitive = errors.New("unknown primitive")

type PrimitiveID int32

const NoPrimitive PrimitiveID = -1

type Shape uint8

const (
	ShapeBox Shape = iota
	ShapeSphere
	// ShapeRaycaster is culled by its box, raycasts are answered by the
	// primitive's Raycaster.
	ShapeRaycaster
)

func (s Shape) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeRaycaster:
		return "raycaster"
	}
	return "unknown"
}

// Raycaster answers raycasts for primitives with custom geometry.
type Raycaster interface {
	// Raycast returns the distance along r of the first hit not farther than
	// maxDist and the surface normal there.
	Raycast(r *geom.Ray, maxDist float32) (dist float32, normal vec.Vec3, ok bool)
}

// Mesh is optional triangle geometry in world space. Raycasts against a
// primitive with a mesh test its triangles instead of the bounds.
type Mesh struct {
	Vertices []vec.Vec3
	Indices  []uint32
	TwoSided bool
}

// PrimitiveDef describes a movable object. Owner is the scene graph entity
// the primitive belongs to, the registry never dereferences it.
type PrimitiveDef struct {
	Owner uuid.UUID
	Shape Shape
	// Box and raycaster bounds
	Mins, Maxs vec.Vec3
	// Sphere
	Center vec.Vec3
	Radius float32
	// Plane is the optional face plane of planar primitives. Unless TwoSided
	// is set the primitive is invisible from behind it.
	Plane      *geom.Plane
	TwoSided   bool
	QueryGroup uint32
	VisGroup   uint32
	Mesh       *Mesh
	Raycaster  Raycaster
}

// Bounds returns the box enclosing the primitive.
func (d *PrimitiveDef) Bounds() (mins, maxs vec.Vec3) {
	if d.Shape == ShapeSphere {
		r := vec.Vec3{d.Radius, d.Radius, d.Radius}
		return vec.Sub(d.Center, r), vec.Add(d.Center, r)
	}
	return d.Mins, d.Maxs
}

type primitive struct {
	def       PrimitiveDef
	alive     bool
	dirty     bool
	firstLink int32 // head of the links of this primitive
}

// primLink puts a primitive into the primitive list of one area.
type primLink struct {
	prim       PrimitiveID
	level      int32
	area       int32
	prevInArea int32
	nextInArea int32
	nextInPrim int32
}

type registry struct {
	prims     []primitive
	freePrims []PrimitiveID
	links     []primLink
	freeLinks []int32
	// areaHeads[level][area] is the first link in the area
	areaHeads [][]int32
	dirty     deque.Deque[PrimitiveID]
	scratch   []int
}

func (w *World) primitive(id PrimitiveID) (*primitive, error) {
	if id < 0 || int(id) >= len(w.reg.prims) || !w.reg.prims[id].alive {
		return nil, errors.Wrapf(ErrUnknownPrimitive, "primitive %d", id)
	}
	return &w.reg.prims[id], nil
}

// AddPrimitive registers a primitive and links it into every area it
// overlaps.
func (w *World) AddPrimitive(def PrimitiveDef) PrimitiveID {
	r := &w.reg
	var id PrimitiveID
	if n := len(r.freePrims); n > 0 {
		id = r.freePrims[n-1]
		r.freePrims = r.freePrims[:n-1]
	} else {
		id = PrimitiveID(len(r.prims))
		r.prims = append(r.prims, primitive{})
	}
	r.prims[id] = primitive{def: def, alive: true, firstLink: none}
	w.linkPrimitive(id)
	return id
}

// RemovePrimitive unlinks the primitive from all areas and frees its id.
func (w *World) RemovePrimitive(id PrimitiveID) error {
	p, err := w.primitive(id)
	if err != nil {
		return err
	}
	w.unlinkPrimitive(id)
	*p = primitive{firstLink: none}
	w.reg.freePrims = append(w.reg.freePrims, id)
	return nil
}

// Primitive returns the definition of a registered primitive. Changes to its
// bounds take effect after MarkPrimitive and UpdatePrimitiveLinks.
func (w *World) Primitive(id PrimitiveID) (*PrimitiveDef, bool) {
	p, err := w.primitive(id)
	if err != nil {
		return nil, false
	}
	return &p.def, true
}

// MarkPrimitive queues a moved primitive for UpdatePrimitiveLinks.
func (w *World) MarkPrimitive(id PrimitiveID) error {
	p, err := w.primitive(id)
	if err != nil {
		return err
	}
	if !p.dirty {
		p.dirty = true
		w.reg.dirty.PushBack(id)
	}
	return nil
}

// UpdatePrimitiveLinks relinks every primitive queued with MarkPrimitive and
// returns how many were relinked.
func (w *World) UpdatePrimitiveLinks() int {
	n := 0
	for w.reg.dirty.Len() > 0 {
		id := w.reg.dirty.PopFront()
		p := &w.reg.prims[id]
		if !p.alive || !p.dirty {
			// removed after being marked
			continue
		}
		p.dirty = false
		w.unlinkPrimitive(id)
		w.linkPrimitive(id)
		n++
	}
	return n
}

func (w *World) linkPrimitive(id PrimitiveID) {
	r := &w.reg
	mins, maxs := r.prims[id].def.Bounds()
	for li, l := range w.levels {
		if l.Tree != nil {
			r.scratch = l.Tree.TouchedLeafs(mins, maxs, r.scratch[:0])
			for _, leaf := range r.scratch {
				w.addLink(id, int32(li), l.Tree.Leafs[leaf].Area)
			}
			continue
		}
		linked := false
		for a := 1; a < len(l.Areas); a++ {
			if geom.BoxesOverlap(mins, maxs, l.Areas[a].Mins, l.Areas[a].Maxs) {
				w.addLink(id, int32(li), int32(a))
				linked = true
			}
		}
		if !linked {
			w.addLink(id, int32(li), OutdoorArea)
		}
	}
}

// addLink links the primitive into an area unless it is already linked there.
func (w *World) addLink(id PrimitiveID, level, area int32) {
	r := &w.reg
	for l := r.prims[id].firstLink; l != none; l = r.links[l].nextInPrim {
		if r.links[l].level == level && r.links[l].area == area {
			return
		}
	}
	var idx int32
	if n := len(r.freeLinks); n > 0 {
		idx = r.freeLinks[n-1]
		r.freeLinks = r.freeLinks[:n-1]
	} else {
		idx = int32(len(r.links))
		r.links = append(r.links, primLink{})
	}
	head := &r.areaHeads[level][area]
	r.links[idx] = primLink{
		prim:       id,
		level:      level,
		area:       area,
		prevInArea: none,
		nextInArea: *head,
		nextInPrim: r.prims[id].firstLink,
	}
	if *head != none {
		r.links[*head].prevInArea = idx
	}
	*head = idx
	r.prims[id].firstLink = idx
}

func (w *World) unlinkPrimitive(id PrimitiveID) {
	r := &w.reg
	p := &r.prims[id]
	for l := p.firstLink; l != none; {
		lk := &r.links[l]
		if lk.prevInArea != none {
			r.links[lk.prevInArea].nextInArea = lk.nextInArea
		} else {
			r.areaHeads[lk.level][lk.area] = lk.nextInArea
		}
		if lk.nextInArea != none {
			r.links[lk.nextInArea].prevInArea = lk.prevInArea
		}
		next := lk.nextInPrim
		*lk = primLink{prim: NoPrimitive}
		r.freeLinks = append(r.freeLinks, l)
		l = next
	}
	p.firstLink = none
}

// PrimitiveAreas appends the level and area pairs the primitive is linked
// into.
func (w *World) PrimitiveAreas(id PrimitiveID, out [][2]int32) ([][2]int32, error) {
	p, err := w.primitive(id)
	if err != nil {
		return out, err
	}
	for l := p.firstLink; l != none; l = w.reg.links[l].nextInPrim {
		out = append(out, [2]int32{w.reg.links[l].level, w.reg.links[l].area})
	}
	return out, nil
}

// AreaPrimitives appends the primitives linked into an area.
func (w *World) AreaPrimitives(level, area int, out []PrimitiveID) []PrimitiveID {
	for l := w.reg.areaHeads[level][area]; l != none; l = w.reg.links[l].nextInArea {
		out = append(out, w.reg.links[l].prim)
	}
	return out
}

// NumPrimitives returns the number of registered primitives.
func (w *World) NumPrimitives() int {
	return len(w.reg.prims) - len(w.reg.freePrims)
}
