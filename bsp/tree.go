// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"github.com/pkg/errors"

	"govis/geom"
	"govis/math/vec"
)

// Children are encoded as: > 0 node index, < 0 leaf -1-index, 0 solid space.
// Node 0 is the root and can therefore never be a child.
const (
	Solid    = 0
	NoParent = -1
)

// LeafIndex returns the leaf index encoded in a child reference.
func LeafIndex(child int32) int {
	return int(-1 - child)
}

// LeafChild encodes a leaf index as child reference.
func LeafChild(leaf int) int32 {
	return int32(-1 - leaf)
}

type Node struct {
	Parent   int32
	Mins     vec.Vec3
	Maxs     vec.Vec3
	Plane    int32
	Children [2]int32
}

type Leaf struct {
	Parent    int32
	Mins      vec.Vec3
	Maxs      vec.Vec3
	Cluster   int32 // -1 if the leaf is not part of any cluster
	Area      int32
	AudioArea int32
	VisOffset int32 // offset of the cluster row in the PVS data, -1 if none
}

type Tree struct {
	Planes []geom.Plane
	Nodes  []Node
	Leafs  []Leaf
	PVS    *PVS
}

// LinkParents recomputes the Parent fields from the child references and
// checks that the children form a tree.
func (t *Tree) LinkParents() error {
	if len(t.Nodes) == 0 {
		return errors.New("bsp tree without nodes")
	}
	for i := range t.Nodes {
		t.Nodes[i].Parent = NoParent
	}
	for i := range t.Leafs {
		t.Leafs[i].Parent = NoParent
	}
	nodeSeen := make([]bool, len(t.Nodes))
	leafSeen := make([]bool, len(t.Leafs))
	nodeSeen[0] = true
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.Plane < 0 || int(n.Plane) >= len(t.Planes) {
			return errors.Errorf("node %d: plane %d out of range", i, n.Plane)
		}
		for _, c := range n.Children {
			switch {
			case c > 0:
				if int(c) >= len(t.Nodes) {
					return errors.Errorf("node %d: child node %d out of range", i, c)
				}
				if nodeSeen[c] {
					return errors.Errorf("node %d: child node %d has two parents", i, c)
				}
				nodeSeen[c] = true
				t.Nodes[c].Parent = int32(i)
			case c < 0:
				l := LeafIndex(c)
				if l >= len(t.Leafs) {
					return errors.Errorf("node %d: child leaf %d out of range", i, l)
				}
				if leafSeen[l] {
					return errors.Errorf("node %d: child leaf %d has two parents", i, l)
				}
				leafSeen[l] = true
				t.Leafs[l].Parent = int32(i)
			}
		}
	}
	return nil
}

// FindLeaf returns the index of the leaf containing p or -1 if p is in solid
// space.
func (t *Tree) FindLeaf(p vec.Vec3) int {
	if len(t.Nodes) == 0 {
		return -1
	}
	child := int32(0)
	for {
		n := &t.Nodes[child]
		if t.Planes[n.Plane].Distance(p) >= 0 {
			child = n.Children[0]
		} else {
			child = n.Children[1]
		}
		if child <= 0 {
			break
		}
	}
	if child == Solid {
		return -1
	}
	return LeafIndex(child)
}

// TouchedLeafs appends every non solid leaf the box touches to out.
func (t *Tree) TouchedLeafs(mins, maxs vec.Vec3, out []int) []int {
	if len(t.Nodes) == 0 {
		return out
	}
	return t.touchedLeafs(0, mins, maxs, out)
}

func (t *Tree) touchedLeafs(node int32, mins, maxs vec.Vec3, out []int) []int {
	n := &t.Nodes[node]
	sides := t.Planes[n.Plane].BoxOnPlaneSide(mins, maxs)
	for i, side := range [2]int{geom.SideFront, geom.SideBack} {
		if sides&side == 0 {
			continue
		}
		switch c := n.Children[i]; {
		case c > 0:
			out = t.touchedLeafs(c, mins, maxs, out)
		case c < 0:
			out = append(out, LeafIndex(c))
		}
	}
	return out
}

// ViewMarks holds the per query view marks of one tree. A node or leaf is in
// the current potentially visible set if its mark equals Epoch().
type ViewMarks struct {
	Nodes []uint32
	Leafs []uint32

	epoch   uint32
	cluster int32
	novis   bool
	valid   bool
	buf     []byte
}

func (m *ViewMarks) Epoch() uint32 {
	return m.epoch
}

// Invalidate forces the next MarkLeafs call to recompute the marks.
func (m *ViewMarks) Invalidate() {
	m.valid = false
}

func (m *ViewMarks) ensure(t *Tree) {
	if len(m.Nodes) != len(t.Nodes) || len(m.Leafs) != len(t.Leafs) {
		m.Nodes = make([]uint32, len(t.Nodes))
		m.Leafs = make([]uint32, len(t.Leafs))
		m.epoch = 0
		m.valid = false
	}
	if t.PVS != nil && len(m.buf) != t.PVS.RowSize() {
		m.buf = make([]byte, t.PVS.RowSize())
	}
}

func (m *ViewMarks) bump() {
	m.epoch++
	if m.epoch == 0 {
		clear(m.Nodes)
		clear(m.Leafs)
		m.epoch = 1
	}
}

// MarkLeafs marks every leaf potentially visible from viewLeaf together with
// its ancestors and returns the epoch to compare the marks with. The result is
// cached as long as the cluster of the view leaf does not change.
func (t *Tree) MarkLeafs(m *ViewMarks, viewLeaf int, novis bool) uint32 {
	m.ensure(t)
	cluster := int32(-1)
	if viewLeaf >= 0 && viewLeaf < len(t.Leafs) {
		cluster = t.Leafs[viewLeaf].Cluster
	}
	if m.valid && m.cluster == cluster && m.novis == novis {
		return m.epoch
	}
	m.bump()
	m.valid = true
	m.cluster = cluster
	m.novis = novis

	var row []byte
	if !novis && cluster >= 0 && t.PVS != nil {
		row = t.PVS.Row(t.Leafs[viewLeaf].VisOffset, m.buf)
	}
	for i := range t.Leafs {
		l := &t.Leafs[i]
		if row != nil && l.Cluster >= 0 {
			c := l.Cluster
			if int(c>>3) >= len(row) || row[c>>3]&(1<<(c&7)) == 0 {
				continue
			}
		}
		m.Leafs[i] = m.epoch
		for p := l.Parent; p != NoParent; p = t.Nodes[p].Parent {
			if m.Nodes[p] == m.epoch {
				break
			}
			m.Nodes[p] = m.epoch
		}
	}
	return m.epoch
}
