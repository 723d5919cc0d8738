// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"govis/cvars"
	"govis/level"
	"govis/math/vec"
	"govis/world"
)

// rooms is split at x=0 into two areas joined by a 32x32 door.
func rooms() *level.Desc {
	return &level.Desc{
		Name:   "rooms",
		Planes: []level.Plane{{Normal: vec.Vec3{1, 0, 0}}},
		Nodes: []level.Node{{
			Parent:   -1,
			Mins:     vec.Vec3{-128, -64, -64},
			Maxs:     vec.Vec3{128, 64, 64},
			Children: [2]int32{-1, -2},
		}},
		Leafs: []level.Leaf{
			{Parent: 0, Mins: vec.Vec3{0, -64, -64}, Maxs: vec.Vec3{128, 64, 64}, Cluster: -1, Area: 0, AudioArea: -1, VisOffset: -1},
			{Parent: 0, Mins: vec.Vec3{-128, -64, -64}, Maxs: vec.Vec3{0, 64, 64}, Cluster: -1, Area: 1, AudioArea: -1, VisOffset: -1},
		},
		Areas: []level.Area{
			{Mins: vec.Vec3{0, -64, -64}, Maxs: vec.Vec3{128, 64, 64}},
			{Mins: vec.Vec3{-128, -64, -64}, Maxs: vec.Vec3{0, 64, 64}},
		},
		Portals: []level.Portal{{FirstVertex: 0, NumVertices: 4, Areas: [2]int32{0, 1}}},
		HullVertices: []vec.Vec3{
			{0, -16, -16}, {0, 16, -16}, {0, 16, 16}, {0, -16, 16},
		},
	}
}

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	l, err := world.NewLevel(rooms())
	if err != nil {
		t.Fatalf("NewLevel: %v", err)
	}
	var out bytes.Buffer
	return NewConsole(world.NewWorld(l), nil, &out), &out
}

func TestConsoleQuery(t *testing.T) {
	c, out := newTestConsole(t)
	script := `
# one box behind the door, one beside it
box -64 0 0 2
box -64 40 0 2
view 64 0 0 -1 0 0
`
	if err := c.Run(script); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "0 surfaces, 1 primitives; ") {
		t.Errorf("open door output:\n%s", got)
	}

	out.Reset()
	if err := c.Run("block 0 0; view 64 0 0 -1 0 0"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "0 surfaces, 0 primitives; ") {
		t.Errorf("blocked door output:\n%s", got)
	}
	if !c.world.Level(0).PortalBlocked(0) {
		t.Errorf("portal not blocked")
	}
}

func TestConsoleMove(t *testing.T) {
	c, out := newTestConsole(t)
	if err := c.Run("sphere 64 0 0 4; move 0 -64 0 0; update"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "1 primitives relinked") {
		t.Errorf("update output:\n%s", out.String())
	}
	areas, err := c.world.PrimitiveAreas(0, nil)
	if err != nil {
		t.Fatalf("PrimitiveAreas: %v", err)
	}
	if len(areas) != 1 || areas[0][1] != 2 {
		t.Errorf("areas after move = %v, want level 0 area 2", areas)
	}
	if err := c.Execute("remove 0"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Execute("remove 0"); err == nil {
		t.Errorf("second remove did not fail")
	}
}

func TestConsoleTrace(t *testing.T) {
	c, out := newTestConsole(t)
	if err := c.Run("box -64 0 0 8; trace 64 0 0 -128 0 0 all"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "1 hits") || !strings.Contains(got, "120.000") {
		t.Errorf("trace output:\n%s", got)
	}
	out.Reset()
	if err := c.Execute("trace 64 0 0 -128 0 0 bounds"); err != nil {
		t.Fatalf("trace bounds: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "1 intervals") || !strings.Contains(got, "136.000") {
		t.Errorf("bounds output:\n%s", got)
	}
	if err := c.Execute("trace 64 0 0 -128 0 0 sideways"); err == nil {
		t.Errorf("unknown mode did not fail")
	}
}

func TestConsoleErrors(t *testing.T) {
	c, _ := newTestConsole(t)
	for _, line := range []string{
		"nosuchcommand",
		"box 1 2",
		"box 1 2 3 x",
		"fov 180",
		"clip 10 5",
		"block 1 0",
		"block 0 3",
		"view 0 0 0 0 0 0",
		"move 9 0 0 0",
	} {
		if err := c.Execute(line); err == nil {
			t.Errorf("Execute(%q) did not fail", line)
		}
	}
	err := c.Run("echo fine\nbox\n")
	if err == nil || !strings.HasPrefix(err.Error(), "line 2: box") {
		t.Errorf("Run error = %v, want it to name line 2", err)
	}
}

func TestConsoleSet(t *testing.T) {
	c, out := newTestConsole(t)
	t.Cleanup(cvars.VisCullMode.Reset)
	if err := c.Run("set vis_cullmode 0; cvarlist vis_cull"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cvars.VisCullMode.Int() != 0 {
		t.Errorf("vis_cullmode = %v, want 0", cvars.VisCullMode.String())
	}
	if !strings.Contains(out.String(), "vis_cullmode") {
		t.Errorf("cvarlist output:\n%s", out.String())
	}
	out.Reset()
	if err := c.Execute("cmdlist tr"); err != nil {
		t.Fatalf("cmdlist: %v", err)
	}
	if !strings.Contains(out.String(), `1 commands beginning with "tr"`) {
		t.Errorf("cmdlist output:\n%s", out.String())
	}
}

func TestReadLevel(t *testing.T) {
	name := filepath.Join(t.TempDir(), "rooms.vds")
	if err := level.Save(name, rooms()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	d, err := ReadLevel(name, 1, 1)
	if err != nil {
		t.Fatalf("ReadLevel: %v", err)
	}
	if d.Name != "rooms" || len(d.Portals) != 1 {
		t.Errorf("ReadLevel = %q with %d portals", d.Name, len(d.Portals))
	}
	if _, err := ReadLevel("rooms.obj", 1, 1); err == nil {
		t.Errorf("ReadLevel of .obj did not fail")
	}
}
