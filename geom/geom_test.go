// SPDX-License-Identifier: GPL-2.0-or-later

package geom

import (
	"testing"

	"github.com/chewxy/math32"

	"govis/math/vec"
)

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

func TestPlaneUpdate(t *testing.T) {
	tests := []struct {
		n        vec.Vec3
		typ      byte
		signBits byte
	}{
		{vec.Vec3{1, 0, 0}, PlaneX, 0},
		{vec.Vec3{0, 1, 0}, PlaneY, 0},
		{vec.Vec3{0, 0, 1}, PlaneZ, 0},
		{vec.Vec3{0, 0, -1}, PlaneAnyAxis, 4},
		{vec.Vec3{-0.6, 0.8, 0}, PlaneAnyAxis, 1},
	}
	for _, tc := range tests {
		p := NewPlane(tc.n, 0)
		if p.Type != tc.typ || p.SignBits != tc.signBits {
			t.Errorf("NewPlane(%v) type %d signbits %d, want %d %d", tc.n, p.Type, p.SignBits, tc.typ, tc.signBits)
		}
	}
}

func TestPlaneDistance(t *testing.T) {
	p := NewPlane(vec.Vec3{0, 0, 1}, 4)
	if got := p.Distance(vec.Vec3{9, 9, 10}); got != 6 {
		t.Errorf("Distance = %v, want 6", got)
	}
	q := NewPlane(vec.Vec3{0, 0, -1}, -4)
	if got := q.Distance(vec.Vec3{9, 9, 10}); got != -6 {
		t.Errorf("Distance = %v, want -6", got)
	}
	f := p.Flip()
	if !f.Equal(&q, 0) {
		t.Errorf("Flip = %v, want %v", f, q)
	}
}

func TestPlaneFromPoints(t *testing.T) {
	p, ok := PlaneFromPoints(vec.Vec3{0, 0, 2}, vec.Vec3{1, 0, 2}, vec.Vec3{0, 1, 2})
	if !ok {
		t.Fatalf("PlaneFromPoints failed")
	}
	if p.Normal != (vec.Vec3{0, 0, 1}) || p.Dist != 2 || p.Type != PlaneZ {
		t.Errorf("PlaneFromPoints = %v", p)
	}
	if _, ok := PlaneFromPoints(vec.Vec3{}, vec.Vec3{1, 0, 0}, vec.Vec3{2, 0, 0}); ok {
		t.Errorf("PlaneFromPoints accepted collinear points")
	}
}

func TestBoxOnPlaneSide(t *testing.T) {
	planes := []Plane{
		NewPlane(vec.Vec3{1, 0, 0}, 0),
		NewPlane(vec.Vec3{-1, 0, 0}, 0),
		NewPlane(vec.Vec3{0.6, 0.8, 0}, 0),
		NewPlane(vec.Vec3{-0.6, -0.8, 0}, 0),
	}
	for i := range planes {
		p := &planes[i]
		for _, tc := range []struct {
			mins, maxs vec.Vec3
		}{
			{vec.Vec3{1, 1, 1}, vec.Vec3{2, 2, 2}},
			{vec.Vec3{-2, -2, -2}, vec.Vec3{-1, -1, -1}},
			{vec.Vec3{-1, -1, -1}, vec.Vec3{1, 1, 1}},
		} {
			// compare with the brute force corner classification
			want := 0
			for c := 0; c < 8; c++ {
				var pt vec.Vec3
				for a := 0; a < 3; a++ {
					if c&(1<<a) != 0 {
						pt[a] = tc.maxs[a]
					} else {
						pt[a] = tc.mins[a]
					}
				}
				if p.Distance(pt) > 0 {
					want |= SideFront
				} else if p.Distance(pt) < 0 {
					want |= SideBack
				}
			}
			if got := p.BoxOnPlaneSide(tc.mins, tc.maxs); got != want {
				t.Errorf("plane %d BoxOnPlaneSide(%v,%v) = %d, want %d", i, tc.mins, tc.maxs, got, want)
			}
		}
	}
}

func TestRayBox(t *testing.T) {
	r, ok := NewRay(vec.Vec3{-5, 0.5, 0.5}, vec.Vec3{5, 0.5, 0.5})
	if !ok {
		t.Fatalf("NewRay failed")
	}
	tmin, tmax, ok := r.IntersectBox(vec.Vec3{0, 0, 0}, vec.Vec3{1, 1, 1}, r.Length)
	if !ok || !near(tmin, 5) || !near(tmax, 6) {
		t.Errorf("IntersectBox = %v %v %v, want 5 6 true", tmin, tmax, ok)
	}
	if _, _, ok := r.IntersectBox(vec.Vec3{0, 2, 0}, vec.Vec3{1, 3, 1}, r.Length); ok {
		t.Errorf("IntersectBox hit a box beside the ray")
	}
	if _, _, ok := r.IntersectBox(vec.Vec3{6, 0, 0}, vec.Vec3{7, 1, 1}, r.Length); ok {
		t.Errorf("IntersectBox hit a box behind the ray end")
	}
	in, _ := NewRay(vec.Vec3{0.5, 0.5, 0.5}, vec.Vec3{0.5, 0.5, 3})
	tmin, tmax, ok = in.IntersectBox(vec.Vec3{0, 0, 0}, vec.Vec3{1, 1, 1}, in.Length)
	if !ok || tmin != 0 || !near(tmax, 0.5) {
		t.Errorf("IntersectBox from inside = %v %v %v, want 0 0.5 true", tmin, tmax, ok)
	}
	if _, ok := NewRay(vec.Vec3{1, 1, 1}, vec.Vec3{1, 1, 1}); ok {
		t.Errorf("NewRay accepted a zero length ray")
	}
}

func TestRaySphere(t *testing.T) {
	r, _ := NewRay(vec.Vec3{0, 0, 0}, vec.Vec3{20, 0, 0})
	tmin, tmax, ok := r.IntersectSphere(vec.Vec3{10, 0, 0}, 2)
	if !ok || !near(tmin, 8) || !near(tmax, 12) {
		t.Errorf("IntersectSphere = %v %v %v, want 8 12 true", tmin, tmax, ok)
	}
	if _, _, ok := r.IntersectSphere(vec.Vec3{10, 5, 0}, 2); ok {
		t.Errorf("IntersectSphere hit a sphere beside the ray")
	}
	if _, _, ok := r.IntersectSphere(vec.Vec3{-10, 0, 0}, 2); ok {
		t.Errorf("IntersectSphere hit a sphere behind the ray")
	}
}

func TestRayTriangle(t *testing.T) {
	a := vec.Vec3{0, 0, 0}
	b := vec.Vec3{1, 0, 0}
	c := vec.Vec3{0, 1, 0}
	down, _ := NewRay(vec.Vec3{0.25, 0.25, 5}, vec.Vec3{0.25, 0.25, -5})
	// a, b, c is counter clockwise seen from above, the front side faces +z
	dist, u, v, ok := down.IntersectTriangle(a, b, c, false)
	if !ok || !near(dist, 5) || !near(u, 0.25) || !near(v, 0.25) {
		t.Errorf("IntersectTriangle = %v %v %v %v", dist, u, v, ok)
	}
	up, _ := NewRay(vec.Vec3{0.25, 0.25, -5}, vec.Vec3{0.25, 0.25, 5})
	if _, _, _, ok := up.IntersectTriangle(a, b, c, false); ok {
		t.Errorf("IntersectTriangle hit the back of a one sided triangle")
	}
	if _, _, _, ok := up.IntersectTriangle(a, b, c, true); !ok {
		t.Errorf("IntersectTriangle missed the back of a two sided triangle")
	}
	short, _ := NewRay(vec.Vec3{0.25, 0.25, 5}, vec.Vec3{0.25, 0.25, 1})
	if _, _, _, ok := short.IntersectTriangle(a, b, c, true); ok {
		t.Errorf("IntersectTriangle hit beyond the ray end")
	}
	u, v, ok = Barycentric(vec.Vec3{0.25, 0.5, 0}, a, b, c)
	if !ok || !near(u, 0.25) || !near(v, 0.5) {
		t.Errorf("Barycentric = %v %v %v", u, v, ok)
	}
}

func TestRayPlane(t *testing.T) {
	p := NewPlane(vec.Vec3{0, 0, 1}, 0)
	r, _ := NewRay(vec.Vec3{0, 0, 4}, vec.Vec3{0, 0, -4})
	if d, ok := r.IntersectPlane(&p, true); !ok || !near(d, 4) {
		t.Errorf("IntersectPlane = %v %v, want 4 true", d, ok)
	}
	back, _ := NewRay(vec.Vec3{0, 0, -4}, vec.Vec3{0, 0, 4})
	if _, ok := back.IntersectPlane(&p, true); ok {
		t.Errorf("IntersectPlane front only accepted a ray from behind")
	}
	if d, ok := back.IntersectPlane(&p, false); !ok || !near(d, 4) {
		t.Errorf("IntersectPlane = %v %v, want 4 true", d, ok)
	}
}

func square(size float32) []vec.Vec3 {
	return []vec.Vec3{
		{-size, -size, 0},
		{size, -size, 0},
		{size, size, 0},
		{-size, size, 0},
	}
}

func TestClipPolygonFast(t *testing.T) {
	var in, out Winding
	in.Set(square(1))
	p := NewPlane(vec.Vec3{1, 0, 0}, 0)
	ClipPolygonFast(&in, &p, &out)
	if out.N != 4 {
		t.Fatalf("ClipPolygonFast kept %d points, want 4", out.N)
	}
	for _, pt := range out.Slice() {
		if pt[0] < -clipEpsilon {
			t.Errorf("ClipPolygonFast kept %v behind the plane", pt)
		}
	}
	mins, maxs := Bounds(out.Slice())
	if !near(mins[0], 0) || !near(maxs[0], 1) || !near(mins[1], -1) || !near(maxs[1], 1) {
		t.Errorf("clipped bounds %v %v", mins, maxs)
	}

	all := NewPlane(vec.Vec3{1, 0, 0}, -5)
	ClipPolygonFast(&in, &all, &out)
	if out.N != 4 {
		t.Errorf("ClipPolygonFast in front kept %d points, want 4", out.N)
	}
	none := NewPlane(vec.Vec3{1, 0, 0}, 5)
	ClipPolygonFast(&in, &none, &out)
	if out.N != 0 {
		t.Errorf("ClipPolygonFast behind kept %d points, want 0", out.N)
	}
}

func TestClipPolygonOverflow(t *testing.T) {
	var in, out Winding
	pts := make([]vec.Vec3, MaxWindingPoints)
	for i := range pts {
		s, c := math32.Sincos(2 * math32.Pi * float32(i) / MaxWindingPoints)
		pts[i] = vec.Vec3{100 * c, 100 * s, 0}
	}
	in.Set(pts)
	// cutting off the first point replaces it by two
	p := NewPlane(vec.Vec3{-1, 0, 0}, -99.94)
	ClipPolygonFast(&in, &p, &out)
	if out.N != 0 {
		t.Errorf("ClipPolygonFast overflow kept %d points, want 0", out.N)
	}
}

func TestPolygonPlane(t *testing.T) {
	p, ok := PolygonPlane(square(2))
	if !ok || p.Normal != (vec.Vec3{0, 0, 1}) || p.Dist != 0 {
		t.Errorf("PolygonPlane = %v %v", p, ok)
	}
	if _, ok := PolygonPlane(square(2)[:2]); ok {
		t.Errorf("PolygonPlane accepted two points")
	}
}

func TestPointInConvexPolygon(t *testing.T) {
	sq := square(1)
	n := vec.Vec3{0, 0, 1}
	tests := []struct {
		p    vec.Vec3
		want bool
	}{
		{vec.Vec3{0, 0, 0}, true},
		{vec.Vec3{0.9, -0.9, 0}, true},
		{vec.Vec3{1.1, 0, 0}, false},
		{vec.Vec3{0, -2, 0}, false},
	}
	for _, tc := range tests {
		if got := PointInConvexPolygon(sq, n, tc.p); got != tc.want {
			t.Errorf("PointInConvexPolygon(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	// the other winding order gives the same answers
	rev := []vec.Vec3{sq[3], sq[2], sq[1], sq[0]}
	for _, tc := range tests {
		if got := PointInConvexPolygon(rev, n, tc.p); got != tc.want {
			t.Errorf("reversed PointInConvexPolygon(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestBoxes(t *testing.T) {
	a0, a1 := vec.Vec3{0, 0, 0}, vec.Vec3{1, 1, 1}
	if !BoxesOverlap(a0, a1, vec.Vec3{1, 1, 1}, vec.Vec3{2, 2, 2}) {
		t.Errorf("touching boxes do not overlap")
	}
	if BoxesOverlap(a0, a1, vec.Vec3{1.5, 0, 0}, vec.Vec3{2, 1, 1}) {
		t.Errorf("separate boxes overlap")
	}
	if !BoxContains(a0, a1, vec.Vec3{0.5, 1, 0}) || BoxContains(a0, a1, vec.Vec3{0.5, 1.5, 0}) {
		t.Errorf("BoxContains wrong")
	}
}
