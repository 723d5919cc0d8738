// SPDX-License-Identifier: GPL-2.0-or-later

package world

import (
	"github.com/chewxy/math32"

	"govis/bsp"
	"govis/conlog"
	"govis/cull"
	"govis/cvars"
	"govis/geom"
	"govis/math"
	"govis/math/vec"
)

// AllGroups matches every query and visibility group.
const AllGroups = ^uint32(0)

// Query describes a view. Planes face inwards and are given in the order of
// the cull plane constants, at most cull.MaxPlanes of them. Right and Up must
// be unit length and orthogonal. An object is only returned if its query
// group shares a bit with QueryMask and its visibility group shares a bit
// with VisMask.
type Query struct {
	Planes    []geom.Plane
	Origin    vec.Vec3
	Right     vec.Vec3
	Up        vec.Vec3
	VisMask   uint32
	QueryMask uint32
}

type QueryStats struct {
	Nodes    int // tree nodes entered
	Leafs    int
	Areas    int // areas whose contents were culled
	Portals  int // portals flowed through
	Batched  int // boxes culled in the batch
	Jobs     int // jobs submitted to the job system
	Warnings int
}

// Visible receives the result of a query. The slices are reused by every
// query.
type Visible struct {
	Primitives []PrimitiveID
	Surfaces   []SurfaceRef
	Stats      QueryStats
}

func (v *Visible) Reset() {
	v.Primitives = v.Primitives[:0]
	v.Surfaces = v.Surfaces[:0]
	v.Stats = QueryStats{}
}

type query struct {
	w     *World
	c     *Context
	q     *Query
	out   *Visible
	epoch uint32
	mode  int

	forward  vec.Vec3
	near     float32
	maxDepth int
	warned   bool

	level    int32
	lv       *Level
	marks    *levelMarks
	visEpoch uint32 // of the pvs marks of the current level
	stamp    uint32 // of the plane set of the tree traversal
}

// QueryVisiblePrimitives collects the surfaces and primitives of all levels
// that are potentially visible from q into out and returns the query epoch.
// Levels with portals are flowed through from the area containing the
// origin, levels with a tree are traversed using the pvs, anything else has
// all its areas culled against the view.
func (w *World) QueryVisiblePrimitives(ctx *Context, q *Query, out *Visible) uint32 {
	out.Reset()
	qs := query{
		w:        w,
		c:        ctx,
		q:        q,
		out:      out,
		epoch:    ctx.begin(w),
		mode:     math.Clamp(cvars.CullSimple, cvars.VisCullMode.Int(), cvars.CullParallel),
		maxDepth: math.Clamp(1, cvars.VisMaxPortalDepth.Int(), MaxPortalStack),
	}
	ctx.batch.Reset()

	root := &ctx.stack[0]
	root.n = copy(root.planes[:], q.Planes)
	root.hasFar = root.n > cull.Far
	if root.hasFar {
		root.far = root.planes[cull.Far]
	}
	inf := math32.Inf(1)
	root.scissor = scissor{-inf, -inf, inf, inf}
	root.portal = none

	qs.forward = vec.Cross(q.Up, q.Right)
	qs.near = geom.Epsilon
	if root.n > cull.Near {
		qs.forward = root.planes[cull.Near].Normal
		qs.near = max(qs.near, -root.planes[cull.Near].Distance(q.Origin))
	}

	for i, lv := range w.levels {
		qs.level = int32(i)
		qs.lv = lv
		qs.marks = &ctx.levels[i]
		switch {
		case len(lv.Portals) > 0 && cvars.VisPortals.Bool():
			qs.flow(lv.FindArea(q.Origin), 0)
		case lv.Tree != nil:
			qs.traverse()
		default:
			stamp := ctx.nextStamp()
			for a := range lv.Areas {
				qs.visitArea(int32(a), root, stamp)
			}
		}
	}

	if n := ctx.batch.Len(); n > 0 {
		var js cull.JobSystem
		if qs.mode == cvars.CullParallel {
			js = ctx.js
		}
		out.Stats.Batched = n
		out.Stats.Jobs = ctx.batch.Run(js, cvars.VisMinObjectsPerThread.Int())
		for i := 0; i < n; i++ {
			if id, culled := ctx.batch.Result(i); !culled {
				qs.pass(PrimitiveID(id))
			}
		}
	}
	return qs.epoch
}

func (q *query) masks(queryGroup, visGroup uint32) bool {
	return queryGroup&q.q.QueryMask != 0 && visGroup&q.q.VisMask != 0
}

func (q *query) pass(id PrimitiveID) {
	if q.c.primPass[id] == q.epoch {
		return
	}
	q.c.primPass[id] = q.epoch
	q.out.Primitives = append(q.out.Primitives, id)
}

// visitArea culls the surfaces and primitives of an area.
func (q *query) visitArea(area int32, f *stackFrame, stamp uint32) {
	q.marks.areas[area] = q.epoch
	q.out.Stats.Areas++
	planes := f.active()
	a := &q.lv.Areas[area]
	for i := int32(0); i < a.NumSurfaces; i++ {
		q.cullSurface(q.lv.areaSurface(a, i), planes, stamp)
	}
	reg := &q.w.reg
	for l := reg.areaHeads[q.level][area]; l != none; l = reg.links[l].nextInArea {
		q.cullPrimitive(reg.links[l].prim, planes, stamp)
	}
}

func (q *query) cullSurface(si int32, planes []geom.Plane, stamp uint32) {
	m := q.marks
	if m.surfPass[si] == q.epoch || m.surfMark[si] == stamp {
		return
	}
	m.surfMark[si] = stamp
	s := &q.lv.Surfaces[si]
	if !q.masks(s.QueryGroup, s.VisGroup) {
		return
	}
	if s.Planar && !s.TwoSided && s.Plane.Distance(q.q.Origin) < 0 {
		return
	}
	if cull.CullBoxSingle(planes, s.Mins, s.Maxs) {
		return
	}
	m.surfPass[si] = q.epoch
	q.out.Surfaces = append(q.out.Surfaces, SurfaceRef{Level: q.level, Surface: si})
}

func (q *query) cullPrimitive(id PrimitiveID, planes []geom.Plane, stamp uint32) {
	c := q.c
	if c.primPass[id] == q.epoch || c.primMark[id] == stamp {
		return
	}
	c.primMark[id] = stamp
	d := &q.w.reg.prims[id].def
	if !q.masks(d.QueryGroup, d.VisGroup) {
		return
	}
	if d.Plane != nil && !d.TwoSided && d.Plane.Distance(q.q.Origin) < 0 {
		return
	}
	if d.Shape == ShapeSphere {
		if !cull.CullSphere(planes, d.Center, d.Radius) {
			q.pass(id)
		}
		return
	}
	mins, maxs := d.Bounds()
	if q.mode == cvars.CullSimple {
		if !cull.CullBoxSingle(planes, mins, maxs) {
			q.pass(id)
		}
		return
	}
	c.batch.SetPlanes(planes)
	c.batch.Add(int32(id), mins, maxs)
}

// traverse walks the tree of the current level front to back, skipping
// everything outside the pvs of the view leaf or outside the view.
func (q *query) traverse() {
	t := q.lv.Tree
	viewLeaf := t.FindLeaf(q.q.Origin)
	q.visEpoch = t.MarkLeafs(&q.marks.view, viewLeaf, cvars.RNoVis.Bool())
	q.stamp = q.c.nextStamp()
	q.node(0, cull.AllBits(q.c.stack[0].n))
}

func (q *query) node(i int32, bits uint32) {
	t := q.lv.Tree
	if q.marks.view.Nodes[i] != q.visEpoch {
		return
	}
	n := &t.Nodes[i]
	if bits != 0 {
		var culled bool
		if culled, bits = cull.BoxCullBits(q.c.stack[0].active(), bits, n.Mins, n.Maxs); culled {
			return
		}
	}
	q.out.Stats.Nodes++
	side := 0
	if t.Planes[n.Plane].Distance(q.q.Origin) < 0 {
		side = 1
	}
	q.child(n.Children[side], bits)
	q.child(n.Children[side^1], bits)
}

func (q *query) child(c int32, bits uint32) {
	switch {
	case c > 0:
		q.node(c, bits)
	case c < 0:
		q.leaf(bsp.LeafIndex(c), bits)
	}
}

func (q *query) leaf(i int, bits uint32) {
	if q.marks.view.Leafs[i] != q.visEpoch {
		return
	}
	l := &q.lv.Tree.Leafs[i]
	if bits != 0 {
		if culled, _ := cull.BoxCullBits(q.c.stack[0].active(), bits, l.Mins, l.Maxs); culled {
			return
		}
	}
	q.out.Stats.Leafs++
	if q.marks.areas[l.Area] != q.epoch {
		q.visitArea(l.Area, &q.c.stack[0], q.stamp)
	}
}

// flow culls the contents of an area with the frustum at stack depth and
// recurses into every area visible through its portals.
func (q *query) flow(area int32, depth int) {
	m := q.marks
	if m.areas[area] == q.epoch {
		return
	}
	f := &q.c.stack[depth]
	q.visitArea(area, f, q.c.nextStamp())
	for li := q.lv.Areas[area].FirstPortal; li != none; li = q.lv.Links[li].Next {
		link := &q.lv.Links[li]
		if q.lv.Portals[link.Portal].Blocked || m.portals[link.Portal] == q.epoch || m.areas[link.Target] == q.epoch {
			continue
		}
		if depth+1 >= q.maxDepth {
			if !q.warned {
				conlog.Warnf("portal stack overflow in level %q (depth %d)", q.lv.Name, q.maxDepth)
				q.warned = true
				q.out.Stats.Warnings++
			}
			continue
		}
		if !q.calcPortalStack(link, f, &q.c.stack[depth+1]) {
			continue
		}
		m.portals[link.Portal] = q.epoch
		q.out.Stats.Portals++
		q.flow(link.Target, depth+1)
	}
}

// calcPortalStack narrows the parent frustum to the part of the view that
// looks through the portal link. It reports false if the portal is not
// visible.
func (q *query) calcPortalStack(link *PortalLink, parent, out *stackFrame) bool {
	origin := q.q.Origin
	d := link.Plane.Distance(origin)
	if d < -q.near {
		// behind the portal
		return false
	}
	if d < q.near {
		// standing in the portal, clipping would degenerate
		*out = *parent
		out.portal = link.Portal
		return true
	}

	in, tmp := &q.c.clip[0], &q.c.clip[1]
	in.Set(link.Hull)
	for i := range parent.active() {
		geom.ClipPolygonFast(in, &parent.planes[i], tmp)
		in, tmp = tmp, in
		if in.N < 3 {
			return false
		}
	}
	pts := in.Slice()

	sc, projected := q.project(pts)
	if projected {
		sc = sc.intersect(parent.scissor)
	} else {
		sc = parent.scissor
	}
	if sc.empty() {
		return false
	}

	out.scissor = sc
	out.portal = link.Portal
	out.n = 0
	switch {
	case len(pts) <= 4:
		center := geom.Centroid(pts)
		for i, a := range pts {
			if p, ok := q.sidePlane(a, pts[(i+1)%len(pts)], center); ok {
				out.planes[out.n] = p
				out.n++
			}
		}
	case projected:
		corners := [4]vec.Vec3{
			q.tangentPoint(sc.minX, sc.minY),
			q.tangentPoint(sc.maxX, sc.minY),
			q.tangentPoint(sc.maxX, sc.maxY),
			q.tangentPoint(sc.minX, sc.maxY),
		}
		center := q.tangentPoint((sc.minX+sc.maxX)/2, (sc.minY+sc.maxY)/2)
		for i, a := range corners {
			if p, ok := q.sidePlane(a, corners[(i+1)%4], center); ok {
				out.planes[out.n] = p
				out.n++
			}
		}
	default:
		// no usable projection, keep looking through the parent frustum
		*out = *parent
		out.portal = link.Portal
		return true
	}
	out.hasFar = parent.hasFar
	if out.hasFar {
		out.far = parent.far
		out.planes[out.n] = parent.far
		out.n++
	}
	return true
}

// project returns the bounds of the points on the view plane at distance 1.
func (q *query) project(pts []vec.Vec3) (scissor, bool) {
	inf := math32.Inf(1)
	sc := scissor{inf, inf, -inf, -inf}
	for _, p := range pts {
		rel := vec.Sub(p, q.q.Origin)
		z := vec.Dot(rel, q.forward)
		if z < geom.Epsilon {
			return sc, false
		}
		x := vec.Dot(rel, q.q.Right) / z
		y := vec.Dot(rel, q.q.Up) / z
		sc.minX = min(sc.minX, x)
		sc.maxX = max(sc.maxX, x)
		sc.minY = min(sc.minY, y)
		sc.maxY = max(sc.maxY, y)
	}
	return sc, true
}

func (q *query) tangentPoint(x, y float32) vec.Vec3 {
	p := vec.Add(q.q.Origin, q.forward)
	p = vec.MulAdd(p, x, q.q.Right)
	return vec.MulAdd(p, y, q.q.Up)
}

// sidePlane returns the plane through the origin, a and b facing inside.
func (q *query) sidePlane(a, b, inside vec.Vec3) (geom.Plane, bool) {
	o := q.q.Origin
	n := vec.Cross(vec.Sub(a, o), vec.Sub(b, o))
	l := n.Length()
	if l < 1e-6 {
		return geom.Plane{}, false
	}
	n = vec.Scale(1/l, n)
	p := geom.NewPlane(n, vec.Dot(n, o))
	if p.Distance(inside) < 0 {
		p = p.Flip()
	}
	return p, true
}
