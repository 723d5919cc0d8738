// SPDX-License-Identifier: GPL-2.0-or-later

package cull

import (
	"govis/geom"
)

// Lanes is the number of boxes tested together by the batch path.
const Lanes = 4

// box4 holds four boxes transposed into one array per axis.
type box4 struct {
	minX, minY, minZ [Lanes]float32
	maxX, maxY, maxZ [Lanes]float32
}

func (b *box4) load(boxes []Box) {
	for i := 0; i < Lanes; i++ {
		bx := &boxes[i]
		b.minX[i], b.minY[i], b.minZ[i] = bx.Mins[0], bx.Mins[1], bx.Mins[2]
		b.maxX[i], b.maxY[i], b.maxZ[i] = bx.Maxs[0], bx.Maxs[1], bx.Maxs[2]
	}
}

func maxLanes(n float32, lo, hi *[Lanes]float32) [Lanes]float32 {
	var r [Lanes]float32
	for i := 0; i < Lanes; i++ {
		a := float32(n * lo[i])
		b := float32(n * hi[i])
		if b > a {
			r[i] = b
		} else {
			r[i] = a
		}
	}
	return r
}

// cull4 returns a mask with bit i set if box i is culled by one of the
// planes.
func (b *box4) cull4(planes []geom.Plane) uint8 {
	var mask uint8
	for i := range planes {
		p := &planes[i]
		x := maxLanes(p.Normal[0], &b.minX, &b.maxX)
		y := maxLanes(p.Normal[1], &b.minY, &b.maxY)
		z := maxLanes(p.Normal[2], &b.minZ, &b.maxZ)
		for l := 0; l < Lanes; l++ {
			s := float32(x[l] + y[l])
			s = float32(s + z[l])
			if s-p.Dist <= 0 {
				mask |= 1 << l
			}
		}
		if mask == 1<<Lanes-1 {
			break
		}
	}
	return mask
}

// CullBoxes writes for each box whether it is culled into culled. Groups of
// four boxes go through the lane path, the rest through CullBoxGeneric.
func CullBoxes(planes []geom.Plane, boxes []Box, culled []bool) {
	var b box4
	n := len(boxes) &^ (Lanes - 1)
	for i := 0; i < n; i += Lanes {
		b.load(boxes[i : i+Lanes])
		m := b.cull4(planes)
		for l := 0; l < Lanes; l++ {
			culled[i+l] = m&(1<<l) != 0
		}
	}
	for i := n; i < len(boxes); i++ {
		culled[i] = CullBoxGeneric(planes, boxes[i].Mins, boxes[i].Maxs)
	}
}
