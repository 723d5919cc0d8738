// SPDX-License-Identifier: GPL-2.0-or-later

package world

// World is a set of levels sharing one primitive registry. Queries and
// raycasts only read the world, they may run concurrently with different
// contexts as long as nothing registers, moves or removes primitives or
// blocks portals at the same time.
type World struct {
	levels []*Level
	reg    registry
}

func NewWorld(levels ...*Level) *World {
	w := &World{levels: levels}
	w.reg.areaHeads = make([][]int32, len(levels))
	for i, l := range levels {
		heads := make([]int32, len(l.Areas))
		for j := range heads {
			heads[j] = none
		}
		w.reg.areaHeads[i] = heads
	}
	return w
}

func (w *World) Levels() []*Level {
	return w.levels
}

func (w *World) Level(i int) *Level {
	return w.levels[i]
}

// SurfaceRef names a surface of one of the world's levels.
type SurfaceRef struct {
	Level   int32
	Surface int32
}
