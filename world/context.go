// SPDX-License-Identifier: GPL-2.0-or-later

package world

import (
	"govis/bsp"
	"govis/cull"
	"govis/geom"
	"govis/jobs"
)

// MaxPortalStack is the deepest portal recursion a query can do.
const MaxPortalStack = 128

type scissor struct {
	minX, minY, maxX, maxY float32
}

func (s scissor) intersect(o scissor) scissor {
	return scissor{
		minX: max(s.minX, o.minX),
		minY: max(s.minY, o.minY),
		maxX: min(s.maxX, o.maxX),
		maxY: min(s.maxY, o.maxY),
	}
}

func (s scissor) empty() bool {
	return s.minX >= s.maxX || s.minY >= s.maxY
}

// stackFrame is the frustum seen through a chain of portals.
type stackFrame struct {
	planes  [cull.MaxPlanes]geom.Plane
	n       int
	far     geom.Plane
	hasFar  bool
	scissor scissor
	portal  int32
}

func (f *stackFrame) active() []geom.Plane {
	return f.planes[:f.n]
}

type levelMarks struct {
	view     bsp.ViewMarks
	areas    []uint32
	portals  []uint32
	surfMark []uint32 // stamp of the plane set the surface was tested with
	surfPass []uint32
}

// Context holds the state of one query or raycast at a time: the epoch
// counters, every per object mark, the clip scratch, the portal stack and the
// culling batch. Contexts are not safe for concurrent use, use one per
// goroutine.
type Context struct {
	js    cull.JobSystem
	world *World
	epoch uint32
	stamp uint32

	levels   []levelMarks
	primMark []uint32
	primPass []uint32

	stack [MaxPortalStack]stackFrame
	clip  [2]geom.Winding
	batch cull.Batch
	rc    raycast
}

// NewContext returns a context using js for parallel box culling. js may be
// nil, culling then stays on the calling goroutine. A pool is shared through
// a group of its own, so contexts on one pool wait only for their jobs.
func NewContext(js cull.JobSystem) *Context {
	if p, ok := js.(*jobs.Pool); ok && p != nil {
		js = p.Group()
	}
	return &Context{js: js}
}

// Epoch returns the epoch of the last query or raycast.
func (c *Context) Epoch() uint32 {
	return c.epoch
}

func (c *Context) reset(w *World) {
	c.world = w
	c.epoch = 0
	c.stamp = 0
	c.levels = make([]levelMarks, len(w.levels))
	for i, l := range w.levels {
		m := &c.levels[i]
		m.areas = make([]uint32, len(l.Areas))
		m.portals = make([]uint32, len(l.Portals))
		m.surfMark = make([]uint32, len(l.Surfaces))
		m.surfPass = make([]uint32, len(l.Surfaces))
	}
	c.primMark = nil
	c.primPass = nil
}

// begin starts a new query against w and returns its epoch.
func (c *Context) begin(w *World) uint32 {
	if c.world != w || len(c.levels) != len(w.levels) {
		c.reset(w)
	}
	if n := len(w.reg.prims); len(c.primMark) < n {
		c.primMark = append(c.primMark, make([]uint32, n-len(c.primMark))...)
		c.primPass = append(c.primPass, make([]uint32, n-len(c.primPass))...)
	}
	c.epoch++
	if c.epoch == 0 {
		for i := range c.levels {
			clear(c.levels[i].areas)
			clear(c.levels[i].portals)
			clear(c.levels[i].surfPass)
		}
		clear(c.primPass)
		c.epoch = 1
	}
	return c.epoch
}

// nextStamp returns a new mark for a plane set. Objects tested with the same
// plane set again are skipped.
func (c *Context) nextStamp() uint32 {
	c.stamp++
	if c.stamp == 0 {
		for i := range c.levels {
			clear(c.levels[i].surfMark)
		}
		clear(c.primMark)
		c.stamp = 1
	}
	return c.stamp
}
