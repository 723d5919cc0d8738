// SPDX-License-Identifier: GPL-2.0-or-later

package world

import (
	"sort"

	"github.com/chewxy/math32"

	"govis/bsp"
	"govis/conlog"
	"govis/cvars"
	"govis/geom"
	"govis/level"
	"govis/math/vec"
)

// solidEpsilon is how far behind the start of solid space a hit still counts,
// surfaces lie exactly on the border.
const solidEpsilon = 1.0 / 32

// portalEpsilon is how far a ray may start behind a portal and still pass it.
const portalEpsilon = 1.0 / 8

// RayFilter selects what a raycast tests. Masks work like the query masks.
type RayFilter struct {
	QueryMask      uint32
	VisMask        uint32
	SkipSurfaces   bool
	SkipPrimitives bool
}

// Hit is a ray hitting a triangle, a custom primitive or the bounds of a
// primitive without triangles. Exactly one of Surface and Primitive is set.
type Hit struct {
	Distance  float32
	Pos       vec.Vec3
	Normal    vec.Vec3 // facing the ray start
	Level     int32
	Surface   int32 // -1 for primitives
	Primitive PrimitiveID
	// Triangle is the position of the first index of the triangle in the
	// level or mesh index list, -1 if no triangle was hit.
	Triangle     int32
	U, V         float32 // barycentric coordinates towards the second and third vertex
	Material     int32
	LightmapSlot int32
	UV           [2]float32
	LightmapUV   [2]float32
}

// ObjectHit groups the hits of one surface or primitive.
type ObjectHit struct {
	Level     int32
	Surface   int32
	Primitive PrimitiveID
	Closest   int // into RaycastResult.Hits
}

// RaycastResult receives every hit of RaycastTriangles.
type RaycastResult struct {
	Hits    []Hit
	Objects []ObjectHit
}

func (r *RaycastResult) Reset() {
	r.Hits = r.Hits[:0]
	r.Objects = r.Objects[:0]
}

// Sort orders the hits and the objects by distance.
func (r *RaycastResult) Sort() {
	order := make([]int, len(r.Hits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return r.Hits[order[i]].Distance < r.Hits[order[j]].Distance
	})
	hits := make([]Hit, len(r.Hits))
	moved := make([]int, len(r.Hits))
	for i, o := range order {
		hits[i] = r.Hits[o]
		moved[o] = i
	}
	copy(r.Hits, hits)
	for i := range r.Objects {
		r.Objects[i].Closest = moved[r.Objects[i].Closest]
	}
	sort.SliceStable(r.Objects, func(i, j int) bool {
		return r.Objects[i].Closest < r.Objects[j].Closest
	})
}

// Closest returns the nearest hit.
func (r *RaycastResult) Closest() (Hit, bool) {
	if len(r.Hits) == 0 {
		return Hit{}, false
	}
	best := 0
	for i := range r.Hits {
		if r.Hits[i].Distance < r.Hits[best].Distance {
			best = i
		}
	}
	return r.Hits[best], true
}

// BoundsHit is the interval in which a ray is inside the bounds of an object.
// DistanceMin is 0 for rays starting inside.
type BoundsHit struct {
	Level       int32
	Surface     int32
	Primitive   PrimitiveID
	DistanceMin float32
	DistanceMax float32
}

type rayMode int

const (
	rayClosest rayMode = iota
	rayAll
	rayBounds
	rayClosestBounds
)

type raycast struct {
	w     *World
	c     *Context
	ray   geom.Ray
	f     RayFilter
	mode  rayMode
	epoch uint32
	// closest is the largest distance still of interest
	closest float32
	limit   float32

	found  bool
	hit    Hit
	bounds BoundsHit
	result *RaycastResult
	out    []BoundsHit
	object int
	depth  int
	warned bool
	level  int32
	lv     *Level
	marks  *levelMarks
}

func (w *World) raycast(ctx *Context, start, end vec.Vec3, f RayFilter, mode rayMode) *raycast {
	rc := &ctx.rc
	*rc = raycast{
		w:      w,
		c:      ctx,
		f:      f,
		mode:   mode,
		result: rc.result,
		out:    rc.out,
	}
	ray, ok := geom.NewRay(start, end)
	if !ok {
		return rc
	}
	rc.ray = ray
	rc.epoch = ctx.begin(w)
	rc.closest = ray.Length
	rc.limit = math32.Inf(1)
	for i, lv := range w.levels {
		rc.level = int32(i)
		rc.lv = lv
		rc.marks = &ctx.levels[i]
		switch {
		case len(lv.Portals) > 0 && cvars.VisPortals.Bool():
			rc.portalArea(lv.FindArea(start))
		case lv.Tree != nil:
			rc.node(0, 0, ray.Length)
		default:
			for a := range lv.Areas {
				rc.area(int32(a))
			}
		}
	}
	return rc
}

// RaycastTriangles collects every hit on the segment from start to end into
// out. Hits are in traversal order, use out.Sort to order them.
func (w *World) RaycastTriangles(ctx *Context, start, end vec.Vec3, f RayFilter, out *RaycastResult) {
	out.Reset()
	ctx.rc.result = out
	rc := w.raycast(ctx, start, end, f, rayAll)
	if rc.limit < math32.Inf(1) {
		out.trim(rc.limit)
	}
	rc.result = nil
}

// RaycastClosest returns the hit nearest to start. The hit is never farther
// away than end.
func (w *World) RaycastClosest(ctx *Context, start, end vec.Vec3, f RayFilter) (Hit, bool) {
	rc := w.raycast(ctx, start, end, f, rayClosest)
	return rc.hit, rc.found
}

// RaycastBounds appends the bounds intervals of every surface and primitive
// the segment passes to out. Triangles are not tested.
func (w *World) RaycastBounds(ctx *Context, start, end vec.Vec3, f RayFilter, out []BoundsHit) []BoundsHit {
	first := len(out)
	ctx.rc.out = out
	rc := w.raycast(ctx, start, end, f, rayBounds)
	out = rc.out
	rc.out = nil
	if rc.limit < math32.Inf(1) {
		n := first
		for _, b := range out[first:] {
			if b.DistanceMin <= rc.limit {
				out[n] = b
				n++
			}
		}
		out = out[:n]
	}
	return out
}

// RaycastClosestBounds returns the bounds interval with the nearest entry.
func (w *World) RaycastClosestBounds(ctx *Context, start, end vec.Vec3, f RayFilter) (BoundsHit, bool) {
	rc := w.raycast(ctx, start, end, f, rayClosestBounds)
	return rc.bounds, rc.found
}

// trim drops hits farther than limit.
func (r *RaycastResult) trim(limit float32) {
	moved := make([]int, len(r.Hits))
	n := 0
	for i, h := range r.Hits {
		moved[i] = -1
		if h.Distance <= limit {
			r.Hits[n] = h
			moved[i] = n
			n++
		}
	}
	r.Hits = r.Hits[:n]
	// the closest hit of an object survives whenever any of its hits does
	n = 0
	for _, o := range r.Objects {
		if c := moved[o.Closest]; c >= 0 {
			o.Closest = c
			r.Objects[n] = o
			n++
		}
	}
	r.Objects = r.Objects[:n]
}

func (rc *raycast) masks(queryGroup, visGroup uint32) bool {
	return queryGroup&rc.f.QueryMask != 0 && visGroup&rc.f.VisMask != 0
}

// block stops the ray at distance t, it entered solid space there.
func (rc *raycast) block(t float32) {
	rc.limit = min(rc.limit, t+solidEpsilon)
	rc.closest = min(rc.closest, rc.limit)
	if rc.found {
		switch rc.mode {
		case rayClosest:
			rc.found = rc.hit.Distance <= rc.limit
		case rayClosestBounds:
			rc.found = rc.bounds.DistanceMin <= rc.limit
		}
	}
}

// node splits the part [t0, t1] of the ray at the node plane and walks the
// children front to back. It reports if the ray got blocked.
func (rc *raycast) node(i int32, t0, t1 float32) bool {
	t := rc.lv.Tree
	n := &t.Nodes[i]
	p := &t.Planes[n.Plane]
	ds := p.Distance(rc.ray.Start)
	dd := vec.Dot(p.Normal, rc.ray.Dir)
	d0 := ds + dd*t0
	d1 := ds + dd*t1
	switch {
	case d0 >= 0 && d1 >= 0:
		return rc.child(n.Children[0], t0, t1)
	case d0 < 0 && d1 < 0:
		return rc.child(n.Children[1], t0, t1)
	}
	tm := min(max(-ds/dd, t0), t1)
	side := 0
	if d0 < 0 {
		side = 1
	}
	if rc.child(n.Children[side], t0, tm) {
		return true
	}
	if rc.closest <= tm {
		// everything behind the split is farther than what we have
		return false
	}
	return rc.child(n.Children[side^1], tm, t1)
}

func (rc *raycast) child(c int32, t0, t1 float32) bool {
	switch {
	case c == bsp.Solid:
		rc.block(t0)
		return true
	case t0 > rc.closest:
		return false
	case c > 0:
		return rc.node(c, t0, t1)
	}
	area := rc.lv.Tree.Leafs[bsp.LeafIndex(c)].Area
	if rc.marks.areas[area] != rc.epoch {
		rc.area(area)
	}
	return false
}

// portalArea tests the contents of an area and follows the ray through the
// open portals it passes.
func (rc *raycast) portalArea(area int32) {
	m := rc.marks
	if m.areas[area] == rc.epoch {
		return
	}
	rc.area(area)
	if rc.depth+1 >= MaxPortalStack {
		if !rc.warned {
			conlog.Warnf("raycast portal depth overflow in level %q", rc.lv.Name)
			rc.warned = true
		}
		return
	}
	for li := rc.lv.Areas[area].FirstPortal; li != none; li = rc.lv.Links[li].Next {
		link := &rc.lv.Links[li]
		if rc.lv.Portals[link.Portal].Blocked || m.portals[link.Portal] == rc.epoch || m.areas[link.Target] == rc.epoch {
			continue
		}
		// the plane faces into the area, leaving it means going against it
		den := vec.Dot(link.Plane.Normal, rc.ray.Dir)
		if den >= 0 {
			continue
		}
		t := link.Plane.Distance(rc.ray.Start) / -den
		if t < -portalEpsilon || t > rc.closest {
			continue
		}
		t = max(t, 0)
		if !geom.PointInConvexPolygon(link.Hull, link.Plane.Normal, rc.ray.At(t)) {
			continue
		}
		m.portals[link.Portal] = rc.epoch
		rc.depth++
		rc.portalArea(link.Target)
		rc.depth--
	}
}

func (rc *raycast) area(area int32) {
	rc.marks.areas[area] = rc.epoch
	a := &rc.lv.Areas[area]
	if !rc.f.SkipSurfaces {
		for i := int32(0); i < a.NumSurfaces; i++ {
			rc.surface(rc.lv.areaSurface(a, i))
		}
	}
	if !rc.f.SkipPrimitives {
		reg := &rc.w.reg
		for l := reg.areaHeads[rc.level][area]; l != none; l = reg.links[l].nextInArea {
			rc.primitive(reg.links[l].prim)
		}
	}
}

func (rc *raycast) beginObject() {
	rc.object = -1
}

// record takes a hit on the current object.
func (rc *raycast) record(h *Hit) {
	if h.Distance > rc.closest {
		return
	}
	switch rc.mode {
	case rayClosest:
		if !rc.found || h.Distance < rc.hit.Distance {
			rc.hit = *h
			rc.found = true
			rc.closest = h.Distance
		}
	case rayAll:
		r := rc.result
		r.Hits = append(r.Hits, *h)
		idx := len(r.Hits) - 1
		if rc.object < 0 {
			r.Objects = append(r.Objects, ObjectHit{
				Level:     h.Level,
				Surface:   h.Surface,
				Primitive: h.Primitive,
				Closest:   idx,
			})
			rc.object = len(r.Objects) - 1
		} else if o := &r.Objects[rc.object]; h.Distance < r.Hits[o.Closest].Distance {
			o.Closest = idx
		}
	}
}

func (rc *raycast) recordBounds(b BoundsHit) {
	b.DistanceMin = max(b.DistanceMin, 0)
	if b.DistanceMin > rc.closest {
		return
	}
	switch rc.mode {
	case rayBounds:
		rc.out = append(rc.out, b)
	case rayClosestBounds:
		if !rc.found || b.DistanceMin < rc.bounds.DistanceMin {
			rc.bounds = b
			rc.found = true
			rc.closest = b.DistanceMin
		}
	}
}

func (rc *raycast) boundsMode() bool {
	return rc.mode == rayBounds || rc.mode == rayClosestBounds
}

func (rc *raycast) surface(si int32) {
	m := rc.marks
	if m.surfPass[si] == rc.epoch {
		return
	}
	m.surfPass[si] = rc.epoch
	s := &rc.lv.Surfaces[si]
	if s.NumIndices == 0 || !rc.masks(s.QueryGroup, s.VisGroup) {
		return
	}
	pad := vec.Vec3{geom.Epsilon, geom.Epsilon, geom.Epsilon}
	tmin, tmax, ok := rc.ray.IntersectBox(vec.Sub(s.Mins, pad), vec.Add(s.Maxs, pad), math32.Inf(1))
	if !ok || tmin > rc.closest {
		return
	}
	if rc.boundsMode() {
		rc.recordBounds(BoundsHit{
			Level:       rc.level,
			Surface:     si,
			Primitive:   NoPrimitive,
			DistanceMin: tmin,
			DistanceMax: tmax,
		})
		return
	}
	rc.beginObject()
	end := s.FirstIndex + s.NumIndices
	if s.Planar {
		t, ok := rc.ray.IntersectPlane(&s.Plane, !s.TwoSided)
		if !ok || t > rc.closest {
			return
		}
		p := rc.ray.At(t)
		for tri := s.FirstIndex; tri < end; tri += 3 {
			a, b, c := rc.lv.triangle(tri)
			if u, v, ok := geom.Barycentric(p, a.Pos, b.Pos, c.Pos); ok {
				rc.surfaceHit(si, s, tri, t, u, v)
				return
			}
		}
		return
	}
	for tri := s.FirstIndex; tri < end; tri += 3 {
		a, b, c := rc.lv.triangle(tri)
		if t, u, v, ok := rc.ray.IntersectTriangle(a.Pos, b.Pos, c.Pos, s.TwoSided); ok && t <= rc.closest {
			rc.surfaceHit(si, s, tri, t, u, v)
		}
	}
}

func lerp2(a, b, c [2]float32, u, v float32) [2]float32 {
	w := 1 - u - v
	return [2]float32{
		w*a[0] + u*b[0] + v*c[0],
		w*a[1] + u*b[1] + v*c[1],
	}
}

func (rc *raycast) facing(n vec.Vec3) vec.Vec3 {
	if vec.Dot(n, rc.ray.Dir) > 0 {
		return n.Neg()
	}
	return n
}

func (rc *raycast) surfaceHit(si int32, s *Surface, tri int32, t, u, v float32) {
	a, b, c := rc.lv.triangle(tri)
	h := Hit{
		Distance:     t,
		Pos:          rc.ray.At(t),
		Level:        rc.level,
		Surface:      si,
		Primitive:    NoPrimitive,
		Triangle:     tri,
		U:            u,
		V:            v,
		Material:     s.Material,
		LightmapSlot: s.LightmapSlot,
		UV:           lerp2(a.UV, b.UV, c.UV, u, v),
		LightmapUV:   lerp2(a.LightmapUV, b.LightmapUV, c.LightmapUV, u, v),
	}
	if s.Planar {
		h.Normal = rc.facing(s.Plane.Normal)
	} else {
		h.Normal = rc.facing(triangleNormal(a, b, c))
	}
	rc.record(&h)
}

func triangleNormal(a, b, c *level.Vertex) vec.Vec3 {
	return vec.Cross(vec.Sub(b.Pos, a.Pos), vec.Sub(c.Pos, a.Pos)).Normalize()
}

func (rc *raycast) primitive(id PrimitiveID) {
	c := rc.c
	if c.primPass[id] == rc.epoch {
		return
	}
	c.primPass[id] = rc.epoch
	d := &rc.w.reg.prims[id].def
	if !rc.masks(d.QueryGroup, d.VisGroup) {
		return
	}
	var tmin, tmax float32
	var ok bool
	if d.Shape == ShapeSphere {
		tmin, tmax, ok = rc.ray.IntersectSphere(d.Center, d.Radius)
		ok = ok && tmax >= 0
	} else {
		tmin, tmax, ok = rc.ray.IntersectBox(d.Mins, d.Maxs, math32.Inf(1))
	}
	if !ok || tmin > rc.closest {
		return
	}
	tmin = max(tmin, 0)
	if rc.boundsMode() {
		rc.recordBounds(BoundsHit{
			Level:       rc.level,
			Surface:     -1,
			Primitive:   id,
			DistanceMin: tmin,
			DistanceMax: tmax,
		})
		return
	}
	rc.beginObject()
	h := Hit{
		Level:        rc.level,
		Surface:      -1,
		Primitive:    id,
		Triangle:     -1,
		Material:     -1,
		LightmapSlot: -1,
	}
	switch {
	case d.Shape == ShapeRaycaster && d.Raycaster != nil:
		t, n, ok := d.Raycaster.Raycast(&rc.ray, rc.closest)
		if !ok {
			return
		}
		h.Distance = t
		h.Pos = rc.ray.At(t)
		h.Normal = n
		rc.record(&h)
	case d.Mesh != nil:
		rc.mesh(d.Mesh, &h)
	default:
		h.Distance = tmin
		h.Pos = rc.ray.At(tmin)
		switch {
		case tmin == 0:
			h.Normal = rc.ray.Dir.Neg()
		case d.Shape == ShapeSphere:
			h.Normal = vec.Sub(h.Pos, d.Center).Normalize()
		default:
			h.Normal = boxNormal(h.Pos, d.Mins, d.Maxs)
		}
		rc.record(&h)
	}
}

func (rc *raycast) mesh(m *Mesh, h *Hit) {
	for tri := 0; tri+2 < len(m.Indices); tri += 3 {
		a, b, c := m.Vertices[m.Indices[tri]], m.Vertices[m.Indices[tri+1]], m.Vertices[m.Indices[tri+2]]
		t, u, v, ok := rc.ray.IntersectTriangle(a, b, c, m.TwoSided)
		if !ok || t > rc.closest {
			continue
		}
		h.Distance = t
		h.Pos = rc.ray.At(t)
		h.Normal = rc.facing(vec.Cross(vec.Sub(b, a), vec.Sub(c, a)).Normalize())
		h.Triangle = int32(tri)
		h.U, h.V = u, v
		rc.record(h)
	}
}

// boxNormal returns the normal of the box face nearest to p.
func boxNormal(p, mins, maxs vec.Vec3) vec.Vec3 {
	var n vec.Vec3
	best := math32.Inf(1)
	for i := 0; i < 3; i++ {
		if d := math32.Abs(p[i] - mins[i]); d < best {
			best = d
			n = vec.Vec3{}
			n[i] = -1
		}
		if d := math32.Abs(p[i] - maxs[i]); d < best {
			best = d
			n = vec.Vec3{}
			n[i] = 1
		}
	}
	return n
}
