// SPDX-License-Identifier: GPL-2.0-or-later

package cull

import (
	"sync"

	"govis/geom"
	"govis/math/vec"
)

// JobSystem runs submitted jobs on worker threads. Wait blocks until every job
// submitted before returns.
type JobSystem interface {
	Submit(job func())
	Wait()
}

type group struct {
	planes [MaxPlanes]geom.Plane
	n      int
	first  int
}

// Batch collects boxes for deferred culling. Every box is tested against the
// plane set that was active when it was added.
type Batch struct {
	groups []group
	boxes  []Box
	ids    []int32
	culled []bool
}

func (b *Batch) Reset() {
	b.groups = b.groups[:0]
	b.boxes = b.boxes[:0]
	b.ids = b.ids[:0]
	b.culled = b.culled[:0]
}

func (b *Batch) Len() int {
	return len(b.boxes)
}

func samePlanes(a []geom.Plane, b []geom.Plane) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetPlanes makes planes the active plane set for following Add calls. At
// most MaxPlanes planes are used.
func (b *Batch) SetPlanes(planes []geom.Plane) {
	if len(planes) > MaxPlanes {
		planes = planes[:MaxPlanes]
	}
	if n := len(b.groups); n > 0 {
		last := &b.groups[n-1]
		if samePlanes(last.planes[:last.n], planes) {
			return
		}
		if last.first == len(b.boxes) {
			// nothing added with the previous set
			last.n = copy(last.planes[:], planes)
			return
		}
	}
	g := group{first: len(b.boxes)}
	g.n = copy(g.planes[:], planes)
	b.groups = append(b.groups, g)
}

// Add queues a box with the caller's id.
func (b *Batch) Add(id int32, mins, maxs vec.Vec3) {
	if len(b.groups) == 0 {
		b.groups = append(b.groups, group{})
	}
	b.boxes = append(b.boxes, Box{Mins: mins, Maxs: maxs})
	b.ids = append(b.ids, id)
}

func (b *Batch) groupEnd(g int) int {
	if g+1 < len(b.groups) {
		return b.groups[g+1].first
	}
	return len(b.boxes)
}

func (b *Batch) cullRange(g, start, end int) {
	gr := &b.groups[g]
	CullBoxes(gr.planes[:gr.n], b.boxes[start:end], b.culled[start:end])
}

// Run culls every queued box. With a job system and at least twice
// minPerThread boxes the work is split into ranges of about minPerThread
// boxes which are submitted as jobs, then Run waits for all of them, even
// if Wait of the job system returns early. It returns the number of
// submitted jobs.
func (b *Batch) Run(js JobSystem, minPerThread int) int {
	if cap(b.culled) < len(b.boxes) {
		b.culled = make([]bool, len(b.boxes))
	}
	b.culled = b.culled[:len(b.boxes)]
	if len(b.boxes) == 0 {
		return 0
	}
	if js == nil || minPerThread <= 0 || len(b.boxes) < 2*minPerThread {
		for g := range b.groups {
			b.cullRange(g, b.groups[g].first, b.groupEnd(g))
		}
		return 0
	}
	chunk := (minPerThread + Lanes - 1) &^ (Lanes - 1)
	jobs := 0
	// js may be shared with other batches, so its Wait alone does not
	// guarantee that our ranges are done.
	var wg sync.WaitGroup
	for g := range b.groups {
		end := b.groupEnd(g)
		for start := b.groups[g].first; start < end; start += chunk {
			e := min(start+chunk, end)
			wg.Add(1)
			js.Submit(func() {
				defer wg.Done()
				b.cullRange(g, start, e)
			})
			jobs++
		}
	}
	js.Wait()
	wg.Wait()
	return jobs
}

// Result returns the id of the i-th queued box and whether it was culled.
// It is only valid after Run.
func (b *Batch) Result(i int) (int32, bool) {
	return b.ids[i], b.culled[i]
}
