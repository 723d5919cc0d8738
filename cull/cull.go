// SPDX-License-Identifier: GPL-2.0-or-later

// Package cull tests bounding volumes against sets of inward facing planes.
// A volume is culled if it lies completely behind at least one plane.
package cull

import (
	"govis/geom"
	"govis/math/vec"
)

// Box is an axis aligned bounding box.
type Box struct {
	Mins vec.Vec3
	Maxs vec.Vec3
}

func outward(n, lo, hi float32) float32 {
	a := float32(n * lo)
	b := float32(n * hi)
	if b > a {
		return b
	}
	return a
}

// CullBoxGeneric reports whether the box is completely behind one of the
// planes. It evaluates the corner farthest along each plane normal by taking
// the per axis maximum of both products. The batch path must return exactly
// the same result.
func CullBoxGeneric(planes []geom.Plane, mins, maxs vec.Vec3) bool {
	for i := range planes {
		p := &planes[i]
		x := outward(p.Normal[0], mins[0], maxs[0])
		y := outward(p.Normal[1], mins[1], maxs[1])
		z := outward(p.Normal[2], mins[2], maxs[2])
		s := float32(x + y)
		s = float32(s + z)
		if s-p.Dist <= 0 {
			return true
		}
	}
	return false
}

// CullBoxSingle is CullBoxGeneric selecting the corner by the plane sign bits.
func CullBoxSingle(planes []geom.Plane, mins, maxs vec.Vec3) bool {
	for i := range planes {
		p := &planes[i]
		var c vec.Vec3
		switch p.SignBits {
		case 0:
			c = vec.Vec3{maxs[0], maxs[1], maxs[2]}
		case 1:
			c = vec.Vec3{mins[0], maxs[1], maxs[2]}
		case 2:
			c = vec.Vec3{maxs[0], mins[1], maxs[2]}
		case 3:
			c = vec.Vec3{mins[0], mins[1], maxs[2]}
		case 4:
			c = vec.Vec3{maxs[0], maxs[1], mins[2]}
		case 5:
			c = vec.Vec3{mins[0], maxs[1], mins[2]}
		case 6:
			c = vec.Vec3{maxs[0], mins[1], mins[2]}
		default:
			c = vec.Vec3{mins[0], mins[1], mins[2]}
		}
		s := float32(float32(p.Normal[0]*c[0]) + float32(p.Normal[1]*c[1]))
		s = float32(s + float32(p.Normal[2]*c[2]))
		if s-p.Dist <= 0 {
			return true
		}
	}
	return false
}

// CullSphere reports whether the sphere is completely behind one of the planes.
func CullSphere(planes []geom.Plane, center vec.Vec3, radius float32) bool {
	for i := range planes {
		if planes[i].Distance(center) < -radius {
			return true
		}
	}
	return false
}

// CullPoint reports whether p is behind one of the planes.
func CullPoint(planes []geom.Plane, p vec.Vec3) bool {
	for i := range planes {
		if planes[i].Distance(p) < 0 {
			return true
		}
	}
	return false
}

// BoxCullBits tests the box against the planes whose bit is set in bits. It
// returns whether the box is culled and the bits of the planes the box is not
// completely in front of. Those are the only planes children of the box still
// need to be tested against.
func BoxCullBits(planes []geom.Plane, bits uint32, mins, maxs vec.Vec3) (bool, uint32) {
	for i := range planes {
		mask := uint32(1) << i
		if bits&mask == 0 {
			continue
		}
		switch planes[i].BoxOnPlaneSide(mins, maxs) {
		case geom.SideBack:
			return true, bits
		case geom.SideFront:
			bits &^= mask
		}
	}
	return false, bits
}

// AllBits returns the cull bits with every one of n planes active.
func AllBits(n int) uint32 {
	return uint32(1)<<n - 1
}
