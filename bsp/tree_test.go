// SPDX-License-Identifier: GPL-2.0-or-later

package bsp

import (
	"slices"
	"testing"

	"govis/geom"
	"govis/math/vec"
)

// testTree splits at x=0. The front half is split at y=0 into leaf 0 and 1,
// the back half at y=0 into leaf 2 and solid space.
func testTree(t *testing.T, compressed bool) *Tree {
	t.Helper()
	rows := [][]byte{{0x03}, {0x02}, {0x04}}
	pvs, offsets := Build(rows, 3, compressed)
	tr := &Tree{
		Planes: []geom.Plane{
			geom.NewPlane(vec.Vec3{1, 0, 0}, 0),
			geom.NewPlane(vec.Vec3{0, 1, 0}, 0),
		},
		Nodes: []Node{
			{Plane: 0, Children: [2]int32{1, 2}},
			{Plane: 1, Children: [2]int32{LeafChild(0), LeafChild(1)}},
			{Plane: 1, Children: [2]int32{LeafChild(2), Solid}},
		},
		Leafs: []Leaf{
			{Cluster: 0, VisOffset: offsets[0]},
			{Cluster: 1, VisOffset: offsets[1]},
			{Cluster: 2, VisOffset: offsets[2]},
		},
		PVS: pvs,
	}
	if err := tr.LinkParents(); err != nil {
		t.Fatalf("LinkParents: %v", err)
	}
	return tr
}

func TestLinkParents(t *testing.T) {
	tr := testTree(t, false)
	wantNodes := []int32{NoParent, 0, 0}
	for i, w := range wantNodes {
		if got := tr.Nodes[i].Parent; got != w {
			t.Errorf("node %d parent = %d, want %d", i, got, w)
		}
	}
	wantLeafs := []int32{1, 1, 2}
	for i, w := range wantLeafs {
		if got := tr.Leafs[i].Parent; got != w {
			t.Errorf("leaf %d parent = %d, want %d", i, got, w)
		}
	}

	bad := &Tree{
		Planes: tr.Planes,
		Nodes:  []Node{{Plane: 0, Children: [2]int32{LeafChild(0), LeafChild(0)}}},
		Leafs:  []Leaf{{}},
	}
	if err := bad.LinkParents(); err == nil {
		t.Errorf("LinkParents accepted a leaf with two parents")
	}
}

func TestFindLeaf(t *testing.T) {
	tr := testTree(t, false)
	tests := []struct {
		p    vec.Vec3
		want int
	}{
		{vec.Vec3{1, 1, 0}, 0},
		{vec.Vec3{5, -3, 7}, 1},
		{vec.Vec3{-1, 1, 0}, 2},
		{vec.Vec3{-1, -1, 0}, -1},
	}
	for _, tc := range tests {
		if got := tr.FindLeaf(tc.p); got != tc.want {
			t.Errorf("FindLeaf(%v) = %d, want %d", tc.p, got, tc.want)
		}
	}
}

func TestTouchedLeafs(t *testing.T) {
	tr := testTree(t, false)
	got := tr.TouchedLeafs(vec.Vec3{-1, -1, -1}, vec.Vec3{1, 1, 1}, nil)
	if want := []int{0, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("TouchedLeafs = %v, want %v", got, want)
	}
	got = tr.TouchedLeafs(vec.Vec3{1, 1, 0}, vec.Vec3{2, 2, 1}, got[:0])
	if want := []int{0}; !slices.Equal(got, want) {
		t.Errorf("TouchedLeafs = %v, want %v", got, want)
	}
	got = tr.TouchedLeafs(vec.Vec3{-2, -2, 0}, vec.Vec3{-1, -1, 1}, got[:0])
	if len(got) != 0 {
		t.Errorf("TouchedLeafs in solid = %v, want none", got)
	}
}

func TestMarkLeafs(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		tr := testTree(t, compressed)
		var m ViewMarks
		e := tr.MarkLeafs(&m, 0, false)
		wantLeafs := []bool{true, true, false}
		for i, w := range wantLeafs {
			if got := m.Leafs[i] == e; got != w {
				t.Errorf("compressed=%v: leaf %d marked = %v, want %v", compressed, i, got, w)
			}
		}
		wantNodes := []bool{true, true, false}
		for i, w := range wantNodes {
			if got := m.Nodes[i] == e; got != w {
				t.Errorf("compressed=%v: node %d marked = %v, want %v", compressed, i, got, w)
			}
		}
		if e2 := tr.MarkLeafs(&m, 0, false); e2 != e {
			t.Errorf("MarkLeafs for the same cluster = %d, want cached %d", e2, e)
		}
		e3 := tr.MarkLeafs(&m, 2, false)
		if e3 == e {
			t.Errorf("MarkLeafs for a new cluster kept epoch %d", e)
		}
		if m.Leafs[0] == e3 || m.Leafs[2] != e3 || m.Nodes[2] != e3 || m.Nodes[1] == e3 {
			t.Errorf("MarkLeafs(2) marks leafs %v nodes %v epoch %d", m.Leafs, m.Nodes, e3)
		}
		e4 := tr.MarkLeafs(&m, 2, true)
		for i := range m.Leafs {
			if m.Leafs[i] != e4 {
				t.Errorf("novis: leaf %d not marked", i)
			}
		}
	}
}

func TestMarkLeafsWithoutRow(t *testing.T) {
	tr := testTree(t, false)
	tr.Leafs[1].VisOffset = -1
	var m ViewMarks
	e := tr.MarkLeafs(&m, 1, false)
	for i := range m.Leafs {
		if m.Leafs[i] != e {
			t.Errorf("leaf %d not marked without pvs row", i)
		}
	}
	e = tr.MarkLeafs(&m, -1, false)
	for i := range m.Leafs {
		if m.Leafs[i] != e {
			t.Errorf("leaf %d not marked from solid", i)
		}
	}
}
