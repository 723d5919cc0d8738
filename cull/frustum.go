// SPDX-License-Identifier: GPL-2.0-or-later

package cull

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"govis/geom"
	"govis/math"
	"govis/math/vec"
)

// Frustum plane order
const (
	Left = iota
	Right
	Bottom
	Top
	Near
	Far
	MaxPlanes
)

func normalizePlane(a, b, c, d float32) geom.Plane {
	n := vec.Vec3{a, b, c}
	l := n.Length()
	if l == 0 {
		return geom.NewPlane(n, -d)
	}
	return geom.NewPlane(vec.Scale(1/l, n), -d/l)
}

// FrustumFromMatrix extracts the six planes from a projection*view matrix.
// The matrix maps into OpenGL clip space.
func FrustumFromMatrix(clip mgl32.Mat4) [MaxPlanes]geom.Plane {
	r0, r1, r2, r3 := clip.Row(0), clip.Row(1), clip.Row(2), clip.Row(3)
	var f [MaxPlanes]geom.Plane
	plane := func(v mgl32.Vec4) geom.Plane {
		return normalizePlane(v[0], v[1], v[2], v[3])
	}
	f[Left] = plane(r3.Add(r0))
	f[Right] = plane(r3.Sub(r0))
	f[Bottom] = plane(r3.Add(r1))
	f[Top] = plane(r3.Sub(r1))
	f[Near] = plane(r3.Add(r2))
	f[Far] = plane(r3.Sub(r2))
	return f
}

func turnVector(org, forward, side vec.Vec3, angle float32) geom.Plane {
	scaleSide, scaleForward := math32.Sincos(math.Deg2Rad(angle))
	n := vec.Add(vec.Scale(scaleForward, forward), vec.Scale(scaleSide, side))
	return geom.NewPlane(n, vec.Dot(org, n))
}

// FrustumFromView builds the six planes of a view at org looking along
// forward. The field of view angles are in degrees.
func FrustumFromView(org, forward, right, up vec.Vec3, fovx, fovy, near, far float32) [MaxPlanes]geom.Plane {
	var f [MaxPlanes]geom.Plane
	f[Left] = turnVector(org, forward, right, 90-fovx/2)
	f[Right] = turnVector(org, forward, right, fovx/2-90)
	f[Bottom] = turnVector(org, forward, up, 90-fovy/2)
	f[Top] = turnVector(org, forward, up, fovy/2-90)
	f[Near] = geom.NewPlane(forward, vec.Dot(org, forward)+near)
	back := forward.Neg()
	f[Far] = geom.NewPlane(back, -(vec.Dot(org, forward) + far))
	return f
}

// Perspective returns projection*view for a camera at eye looking at center
// with Z up. fovy is in degrees.
func Perspective(eye, center vec.Vec3, fovy, aspect, near, far float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(fovy), aspect, near, far)
	view := mgl32.LookAtV(mgl32.Vec3(eye), mgl32.Vec3(center), mgl32.Vec3{0, 0, 1})
	return proj.Mul4(view)
}
