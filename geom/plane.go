// SPDX-License-Identifier: GPL-2.0-or-later

package geom

import (
	"github.com/chewxy/math32"

	"govis/math/vec"
)

// Plane types. PlaneX, PlaneY and PlaneZ are planes whose normal is the
// positive unit axis, their distance is a single component lookup.
const (
	PlaneX       = 0
	PlaneY       = 1
	PlaneZ       = 2
	PlaneAnyAxis = 3
)

// BoxOnPlaneSide results
const (
	SideFront = 1
	SideBack  = 2
	SideOn    = SideFront | SideBack
)

type Plane struct {
	Normal   vec.Vec3
	Dist     float32
	Type     byte
	SignBits byte
}

// NewPlane returns a plane n.x == d with the fast path type and the sign bits
// set.
func NewPlane(n vec.Vec3, d float32) Plane {
	p := Plane{Normal: n, Dist: d}
	p.Update()
	return p
}

// PlaneFromPoints returns the plane through a, b and c with the normal
// following the right hand rule. ok is false for degenerate triangles.
func PlaneFromPoints(a, b, c vec.Vec3) (Plane, bool) {
	n := vec.Cross(vec.Sub(b, a), vec.Sub(c, a))
	l := n.Length()
	if l < 1e-12 {
		return Plane{}, false
	}
	n = vec.Scale(1/l, n)
	return NewPlane(n, vec.Dot(n, a)), true
}

// Update recalculates Type and SignBits after Normal changed.
func (p *Plane) Update() {
	p.Type = PlaneAnyAxis
	for i := 0; i < 3; i++ {
		if p.Normal[i] == 1 {
			p.Type = byte(i)
		}
	}
	p.SignBits = 0
	for i := 0; i < 3; i++ {
		if p.Normal[i] < 0 {
			p.SignBits |= 1 << i
		}
	}
}

// Distance returns the signed distance of pt to the plane.
func (p *Plane) Distance(pt vec.Vec3) float32 {
	if p.Type < PlaneAnyAxis {
		return pt[p.Type] - p.Dist
	}
	return vec.Dot(p.Normal, pt) - p.Dist
}

// Flip returns the plane facing the other way.
func (p Plane) Flip() Plane {
	return NewPlane(p.Normal.Neg(), -p.Dist)
}

// Equal reports if both planes describe the same half space within eps.
func (p *Plane) Equal(o *Plane, eps float32) bool {
	return math32.Abs(p.Dist-o.Dist) <= eps &&
		math32.Abs(p.Normal[0]-o.Normal[0]) <= eps &&
		math32.Abs(p.Normal[1]-o.Normal[1]) <= eps &&
		math32.Abs(p.Normal[2]-o.Normal[2]) <= eps
}

// BoxOnPlaneSide returns SideFront, SideBack or SideOn for the box.
func (p *Plane) BoxOnPlaneSide(mins, maxs vec.Vec3) int {
	if p.Type < PlaneAnyAxis {
		if p.Dist <= mins[p.Type] {
			return SideFront
		}
		if p.Dist >= maxs[p.Type] {
			return SideBack
		}
		return SideOn
	}
	// d1 is the corner farthest along the normal, d2 the nearest one
	var c1, c2 vec.Vec3
	for i := 0; i < 3; i++ {
		if p.SignBits&(1<<i) != 0 {
			c1[i], c2[i] = mins[i], maxs[i]
		} else {
			c1[i], c2[i] = maxs[i], mins[i]
		}
	}
	d1 := vec.Dot(p.Normal, c1)
	d2 := vec.Dot(p.Normal, c2)
	sides := 0
	if d1 >= p.Dist {
		sides = SideFront
	}
	if d2 < p.Dist {
		sides |= SideBack
	}
	return sides
}
