// SPDX-License-Identifier: GPL-2.0-or-later

package geom

import (
	"github.com/chewxy/math32"

	"govis/math/vec"
)

// Epsilon used by the ray tests to keep floating point happy.
const Epsilon = 1.0 / 1024

// Ray is a segment from Start to End. Distances reported by the intersection
// functions are measured along Dir from Start, so they lie in [0, Length].
type Ray struct {
	Start  vec.Vec3
	End    vec.Vec3
	Dir    vec.Vec3 // unit direction
	InvDir vec.Vec3
	Length float32
}

// NewRay builds a ray. ok is false for zero length rays, which never hit.
func NewRay(start, end vec.Vec3) (Ray, bool) {
	d := vec.Sub(end, start)
	l := d.Length()
	if l <= 0 || math32.IsNaN(l) || math32.IsInf(l, 0) {
		return Ray{Start: start, End: end}, false
	}
	d = vec.Vec3{d[0] / l, d[1] / l, d[2] / l}
	r := Ray{
		Start:  start,
		End:    end,
		Dir:    d,
		Length: l,
	}
	for i := 0; i < 3; i++ {
		if d[i] != 0 {
			r.InvDir[i] = 1 / d[i]
		} else {
			r.InvDir[i] = math32.Inf(1)
		}
	}
	return r, true
}

// At returns the point at distance t along the ray.
func (r *Ray) At(t float32) vec.Vec3 {
	return vec.MulAdd(r.Start, t, r.Dir)
}

// Box returns the bounding box of the segment.
func (r *Ray) Box() (mins, maxs vec.Vec3) {
	return vec.MinMax(r.Start, r.End)
}

// IntersectBox returns the entry and exit distance of the ray and the box
// clipped to [0, maxDist]. A ray starting inside the box has tmin 0.
func (r *Ray) IntersectBox(mins, maxs vec.Vec3, maxDist float32) (tmin, tmax float32, ok bool) {
	tmin, tmax = 0, maxDist
	for i := 0; i < 3; i++ {
		if r.Dir[i] == 0 {
			if r.Start[i] < mins[i] || r.Start[i] > maxs[i] {
				return 0, 0, false
			}
			continue
		}
		t1 := (mins[i] - r.Start[i]) * r.InvDir[i]
		t2 := (maxs[i] - r.Start[i]) * r.InvDir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}

// IntersectSphere returns entry and exit distance of the ray with the sphere.
// The interval is not clipped, tmin may be negative if the ray starts inside.
func (r *Ray) IntersectSphere(center vec.Vec3, radius float32) (tmin, tmax float32, ok bool) {
	m := vec.Sub(r.Start, center)
	b := vec.Dot(m, r.Dir)
	c := vec.Dot(m, m) - radius*radius
	if c > 0 && b > 0 {
		// outside and pointing away
		return 0, 0, false
	}
	discr := b*b - c
	if discr < 0 {
		return 0, 0, false
	}
	s := math32.Sqrt(discr)
	return -b - s, -b + s, true
}

// IntersectPlane returns the distance at which the ray crosses the plane.
// frontOnly rejects rays that start behind the plane.
func (r *Ray) IntersectPlane(p *Plane, frontOnly bool) (float32, bool) {
	d1 := p.Distance(r.Start)
	d2 := p.Distance(r.End)
	if frontOnly && d1 < 0 {
		return 0, false
	}
	if (d1 >= 0 && d2 >= 0) || (d1 < 0 && d2 < 0) {
		return 0, false
	}
	den := d1 - d2
	if den == 0 {
		return 0, false
	}
	return d1 / den * r.Length, true
}

// IntersectTriangle is the Möller-Trumbore test. It returns the distance and
// the barycentric coordinates of the hit relative to b and c.
func (r *Ray) IntersectTriangle(a, b, c vec.Vec3, twoSided bool) (t, u, v float32, ok bool) {
	const eps = 1e-7
	e1 := vec.Sub(b, a)
	e2 := vec.Sub(c, a)
	p := vec.Cross(r.Dir, e2)
	det := vec.Dot(e1, p)
	if twoSided {
		if det > -eps && det < eps {
			return 0, 0, 0, false
		}
	} else if det < eps {
		return 0, 0, 0, false
	}
	inv := 1 / det
	s := vec.Sub(r.Start, a)
	u = vec.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := vec.Cross(s, e1)
	v = vec.Dot(r.Dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = vec.Dot(e2, q) * inv
	if t < 0 || t > r.Length {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// Barycentric returns u, v of p relative to the triangle a, b, c such that
// p = a + u*(b-a) + v*(c-a). ok is false if p is outside (with eps slack).
func Barycentric(p, a, b, c vec.Vec3) (u, v float32, ok bool) {
	const eps = -1e-5
	v0 := vec.Sub(b, a)
	v1 := vec.Sub(c, a)
	v2 := vec.Sub(p, a)
	d00 := vec.Dot(v0, v0)
	d01 := vec.Dot(v0, v1)
	d11 := vec.Dot(v1, v1)
	d20 := vec.Dot(v2, v0)
	d21 := vec.Dot(v2, v1)
	den := d00*d11 - d01*d01
	if den == 0 {
		return 0, 0, false
	}
	u = (d11*d20 - d01*d21) / den
	v = (d00*d21 - d01*d20) / den
	if u < eps || v < eps || u+v > 1-eps {
		return u, v, false
	}
	return u, v, true
}

// BoxesOverlap reports if two boxes intersect or touch.
func BoxesOverlap(amins, amaxs, bmins, bmaxs vec.Vec3) bool {
	return amins[0] <= bmaxs[0] && amaxs[0] >= bmins[0] &&
		amins[1] <= bmaxs[1] && amaxs[1] >= bmins[1] &&
		amins[2] <= bmaxs[2] && amaxs[2] >= bmins[2]
}

// BoxContains reports if p lies inside the box, borders included.
func BoxContains(mins, maxs, p vec.Vec3) bool {
	return p[0] >= mins[0] && p[0] <= maxs[0] &&
		p[1] >= mins[1] && p[1] <= maxs[1] &&
		p[2] >= mins[2] && p[2] <= maxs[2]
}
