// SPDX-License-Identifier: GPL-2.0-or-later

package geom

import (
	"github.com/chewxy/math32"

	"govis/conlog"
	"govis/math/vec"
)

// MaxWindingPoints is the fixed point budget of every winding and clip buffer.
const MaxWindingPoints = 128

const clipEpsilon = 0.01

// Winding is a fixed size convex polygon.
type Winding struct {
	Points [MaxWindingPoints]vec.Vec3
	N      int
}

func (w *Winding) Slice() []vec.Vec3 {
	return w.Points[:w.N]
}

// Set copies pts into the winding. Points beyond MaxWindingPoints are dropped.
func (w *Winding) Set(pts []vec.Vec3) {
	if len(pts) > MaxWindingPoints {
		conlog.Warnf("winding with %d points truncated to %d", len(pts), MaxWindingPoints)
		pts = pts[:MaxWindingPoints]
	}
	w.N = copy(w.Points[:], pts)
}

// ClipPolygonFast keeps the part of in that is in front of the plane and writes
// it into out. out must not alias in. If the result would exceed
// MaxWindingPoints the clip fails with an empty result.
func ClipPolygonFast(in *Winding, p *Plane, out *Winding) {
	out.N = 0
	n := in.N
	if n == 0 {
		return
	}
	var dists [MaxWindingPoints + 1]float32
	var sides [MaxWindingPoints + 1]int
	front, back := 0, 0
	for i := 0; i < n; i++ {
		d := p.Distance(in.Points[i])
		dists[i] = d
		switch {
		case d > clipEpsilon:
			sides[i] = SideFront
			front++
		case d < -clipEpsilon:
			sides[i] = SideBack
			back++
		default:
			sides[i] = SideOn
		}
	}
	if back == 0 {
		*out = *in
		return
	}
	if front == 0 {
		return
	}
	dists[n] = dists[0]
	sides[n] = sides[0]

	emit := func(pt vec.Vec3) bool {
		if out.N >= MaxWindingPoints {
			return false
		}
		out.Points[out.N] = pt
		out.N++
		return true
	}
	for i := 0; i < n; i++ {
		p1 := in.Points[i]
		if sides[i] == SideOn {
			if !emit(p1) {
				goto overflow
			}
			continue
		}
		if sides[i] == SideFront {
			if !emit(p1) {
				goto overflow
			}
		}
		if sides[i+1] == SideOn || sides[i+1] == sides[i] {
			continue
		}
		{
			p2 := in.Points[(i+1)%n]
			f := dists[i] / (dists[i] - dists[i+1])
			if !emit(vec.Lerp(p1, p2, f)) {
				goto overflow
			}
		}
	}
	return
overflow:
	conlog.Warnf("ClipPolygonFast: more than %d points", MaxWindingPoints)
	out.N = 0
}

// PolygonPlane computes the plane of a polygon with Newell's method. The
// normal follows the winding order.
func PolygonPlane(pts []vec.Vec3) (Plane, bool) {
	if len(pts) < 3 {
		return Plane{}, false
	}
	var n, center vec.Vec3
	for i, cur := range pts {
		next := pts[(i+1)%len(pts)]
		n[0] += (cur[1] - next[1]) * (cur[2] + next[2])
		n[1] += (cur[2] - next[2]) * (cur[0] + next[0])
		n[2] += (cur[0] - next[0]) * (cur[1] + next[1])
		center = vec.Add(center, cur)
	}
	l := n.Length()
	if l < 1e-9 {
		return Plane{}, false
	}
	n = vec.Scale(1/l, n)
	center = vec.Scale(1/float32(len(pts)), center)
	return NewPlane(n, vec.DoublePrecDot(n, center)), true
}

// PointInConvexPolygon reports if p, assumed to lie on the polygon plane with
// the given normal, is inside the convex polygon. Either winding order works.
func PointInConvexPolygon(pts []vec.Vec3, normal, p vec.Vec3) bool {
	if len(pts) < 3 {
		return false
	}
	const eps = 1e-4
	pos, neg := false, false
	for i, a := range pts {
		b := pts[(i+1)%len(pts)]
		edge := vec.Sub(b, a)
		el := edge.Length()
		if el == 0 {
			continue
		}
		s := vec.Dot(vec.Cross(edge, vec.Sub(p, a)), normal) / el
		if s > eps {
			pos = true
		} else if s < -eps {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

// Centroid returns the average of the points.
func Centroid(pts []vec.Vec3) vec.Vec3 {
	var c vec.Vec3
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = vec.Add(c, p)
	}
	return vec.Scale(1/float32(len(pts)), c)
}

// Bounds returns the bounding box of the points.
func Bounds(pts []vec.Vec3) (mins, maxs vec.Vec3) {
	mins = vec.Vec3{math32.Inf(1), math32.Inf(1), math32.Inf(1)}
	maxs = vec.Vec3{math32.Inf(-1), math32.Inf(-1), math32.Inf(-1)}
	for _, p := range pts {
		mins = vec.Min(mins, p)
		maxs = vec.Max(maxs, p)
	}
	return mins, maxs
}
