// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"fmt"
	"io"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"govis/cull"
	"govis/cvar"
	"govis/geom"
	"govis/math/vec"
	"govis/world"
)

// View is the camera used by the view command and the query action.
type View struct {
	Fov       float32 // horizontal and vertical, in degrees
	Near, Far float32
	QueryMask uint32
	VisMask   uint32
	// Matrix builds the planes from a projection*view matrix instead of the
	// view vectors.
	Matrix bool
}

func DefaultView() View {
	return View{
		Fov:       90,
		Near:      1,
		Far:       4096,
		QueryMask: world.AllGroups,
		VisMask:   world.AllGroups,
	}
}

// Query returns the query of a camera at org looking along dir with z up.
func (v *View) Query(org, dir vec.Vec3) (*world.Query, error) {
	if dir.LengthSquared() == 0 {
		return nil, errors.New("view direction is zero")
	}
	forward := dir.Normalize()
	up := vec.Vec3{0, 0, 1}
	if math32.Abs(forward[2]) > 0.999 {
		up = vec.Vec3{1, 0, 0}
	}
	right := vec.Cross(forward, up).Normalize()
	up = vec.Cross(right, forward)
	var planes [cull.MaxPlanes]geom.Plane
	if v.Matrix {
		planes = cull.FrustumFromMatrix(cull.Perspective(org, vec.Add(org, forward), v.Fov, 1, v.Near, v.Far))
	} else {
		planes = cull.FrustumFromView(org, forward, right, up, v.Fov, v.Fov, v.Near, v.Far)
	}
	return &world.Query{
		Planes:    planes[:],
		Origin:    org,
		Right:     right,
		Up:        up,
		VisMask:   v.VisMask,
		QueryMask: v.QueryMask,
	}, nil
}

// Console runs console lines against a world.
type Console struct {
	out   io.Writer
	world *world.World
	ctx   *world.Context
	cmds  Commands
	view  View

	vis    world.Visible
	res    world.RaycastResult
	bounds []world.BoundsHit
}

// NewConsole returns a console printing to out. Box culling fans out to js
// if it is not nil.
func NewConsole(w *world.World, js cull.JobSystem, out io.Writer) *Console {
	c := &Console{
		out:   out,
		world: w,
		ctx:   world.NewContext(js),
		cmds:  make(Commands),
		view:  DefaultView(),
	}
	Must(c.cmds.Add("cmdlist", "cmdlist [prefix]", c.cmds.printCmdList(out)))
	Must(c.cmds.Add("cvarlist", "cvarlist [prefix]", c.cvarList))
	Must(c.cmds.Add("set", "set name value", c.set))
	Must(c.cmds.Add("echo", "echo text", c.echo))
	Must(c.cmds.Add("info", "info", c.info))
	Must(c.cmds.Add("box", "box x y z half [querygroup visgroup]", c.addBox))
	Must(c.cmds.Add("sphere", "sphere x y z radius [querygroup visgroup]", c.addSphere))
	Must(c.cmds.Add("move", "move id x y z", c.move))
	Must(c.cmds.Add("update", "update", c.update))
	Must(c.cmds.Add("remove", "remove id", c.remove))
	Must(c.cmds.Add("where", "where id", c.where))
	Must(c.cmds.Add("block", "block level portal [0|1]", c.block))
	Must(c.cmds.Add("fov", "fov degrees", c.fov))
	Must(c.cmds.Add("clip", "clip near far", c.clip))
	Must(c.cmds.Add("mask", "mask querymask vismask", c.mask))
	Must(c.cmds.Add("view", "view x y z dx dy dz", c.query))
	Must(c.cmds.Add("trace", "trace x y z ex ey ez [closest|all|bounds|closestbounds]", c.trace))
	return c
}

// Execute runs one console line. Empty lines and comments do nothing.
func (c *Console) Execute(line string) error {
	a := Parse(line)
	if a.Len() == 0 {
		return nil
	}
	ok, err := c.cmds.Execute(a)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("unknown command %q", a.Argv(0).String())
	}
	return nil
}

// Run executes a script line by line and stops at the first error.
func (c *Console) Run(script string) error {
	for i, line := range SplitLines(script) {
		if err := c.Execute(line); err != nil {
			return errors.Wrapf(err, "line %d", i+1)
		}
	}
	return nil
}

func (c *Console) echo(a Arguments) error {
	fmt.Fprintln(c.out, a.ArgumentString())
	return nil
}

func (c *Console) set(a Arguments) error {
	if a.Len() != 3 {
		return errors.New("want name and value")
	}
	return cvar.Execute(a.Argv(1).String() + "=" + a.Argv(2).String())
}

func (c *Console) cvarList(a Arguments) error {
	displayCvars(c.out, a.Argv(1).String())
	return nil
}

func (c *Console) info(a Arguments) error {
	displayLevelStats(c.out, c.world.Levels())
	fmt.Fprintf(c.out, "%d primitives\n", c.world.NumPrimitives())
	return nil
}

func groups(a Arguments, i int) (queryGroup, visGroup uint32, err error) {
	queryGroup, visGroup = 1, 1
	if a.Len() <= i {
		return
	}
	q, err := a.Argv(i).Int()
	if err != nil {
		return 0, 0, err
	}
	v, err := a.Argv(i + 1).Int()
	if err != nil {
		return 0, 0, err
	}
	return uint32(q), uint32(v), nil
}

func (c *Console) addPrimitive(def world.PrimitiveDef) {
	def.Owner = uuid.New()
	id := c.world.AddPrimitive(def)
	fmt.Fprintf(c.out, "primitive %d owner %s\n", id, def.Owner)
}

func (c *Console) addBox(a Arguments) error {
	center, err := a.Vec(1)
	if err != nil {
		return err
	}
	h, err := a.Argv(4).Float32()
	if err != nil {
		return err
	}
	qg, vg, err := groups(a, 5)
	if err != nil {
		return err
	}
	e := vec.Vec3{h, h, h}
	c.addPrimitive(world.PrimitiveDef{
		Shape:      world.ShapeBox,
		Mins:       vec.Sub(center, e),
		Maxs:       vec.Add(center, e),
		QueryGroup: qg,
		VisGroup:   vg,
	})
	return nil
}

func (c *Console) addSphere(a Arguments) error {
	center, err := a.Vec(1)
	if err != nil {
		return err
	}
	r, err := a.Argv(4).Float32()
	if err != nil {
		return err
	}
	qg, vg, err := groups(a, 5)
	if err != nil {
		return err
	}
	c.addPrimitive(world.PrimitiveDef{
		Shape:      world.ShapeSphere,
		Center:     center,
		Radius:     r,
		QueryGroup: qg,
		VisGroup:   vg,
	})
	return nil
}

func (c *Console) primitiveID(a Arguments) (world.PrimitiveID, error) {
	id, err := a.Argv(1).Int()
	return world.PrimitiveID(id), err
}

// move centers a primitive at a new position. The links follow with the
// next update.
func (c *Console) move(a Arguments) error {
	id, err := c.primitiveID(a)
	if err != nil {
		return err
	}
	pos, err := a.Vec(2)
	if err != nil {
		return err
	}
	p, ok := c.world.Primitive(id)
	if !ok {
		return errors.Wrapf(world.ErrUnknownPrimitive, "primitive %d", id)
	}
	if p.Shape == world.ShapeSphere {
		p.Center = pos
	} else {
		e := vec.Scale(0.5, vec.Sub(p.Maxs, p.Mins))
		p.Mins, p.Maxs = vec.Sub(pos, e), vec.Add(pos, e)
	}
	return c.world.MarkPrimitive(id)
}

func (c *Console) update(a Arguments) error {
	n := c.world.UpdatePrimitiveLinks()
	fmt.Fprintf(c.out, "%d primitives relinked\n", n)
	return nil
}

func (c *Console) remove(a Arguments) error {
	id, err := c.primitiveID(a)
	if err != nil {
		return err
	}
	return c.world.RemovePrimitive(id)
}

func (c *Console) where(a Arguments) error {
	id, err := c.primitiveID(a)
	if err != nil {
		return err
	}
	areas, err := c.world.PrimitiveAreas(id, nil)
	if err != nil {
		return err
	}
	table := newTable(c.out, "Level", "Area")
	for _, la := range areas {
		table.Append([]string{c.world.Level(int(la[0])).Name, fmt.Sprint(la[1])})
	}
	table.Render()
	return nil
}

func (c *Console) block(a Arguments) error {
	li, err := a.Argv(1).Int()
	if err != nil {
		return err
	}
	pi, err := a.Argv(2).Int()
	if err != nil {
		return err
	}
	if li < 0 || li >= len(c.world.Levels()) {
		return errors.Errorf("no level %d", li)
	}
	l := c.world.Level(li)
	if pi < 0 || pi >= len(l.Portals) {
		return errors.Errorf("level %q has no portal %d", l.Name, pi)
	}
	blocked := a.Len() < 4 || a.Argv(3).Bool()
	l.SetPortalBlocked(pi, blocked)
	return nil
}

func (c *Console) fov(a Arguments) error {
	f, err := a.Argv(1).Float32()
	if err != nil {
		return err
	}
	if f <= 0 || f >= 180 {
		return errors.Errorf("fov %v out of range", f)
	}
	c.view.Fov = f
	return nil
}

func (c *Console) clip(a Arguments) error {
	n, err := a.Argv(1).Float32()
	if err != nil {
		return err
	}
	f, err := a.Argv(2).Float32()
	if err != nil {
		return err
	}
	if n <= 0 || f <= n {
		return errors.Errorf("bad clip distances %v %v", n, f)
	}
	c.view.Near, c.view.Far = n, f
	return nil
}

func (c *Console) mask(a Arguments) error {
	q, err := a.Argv(1).Int()
	if err != nil {
		return err
	}
	v, err := a.Argv(2).Int()
	if err != nil {
		return err
	}
	c.view.QueryMask, c.view.VisMask = uint32(q), uint32(v)
	return nil
}

func (c *Console) query(a Arguments) error {
	org, err := a.Vec(1)
	if err != nil {
		return err
	}
	dir, err := a.Vec(4)
	if err != nil {
		return err
	}
	q, err := c.view.Query(org, dir)
	if err != nil {
		return err
	}
	c.world.QueryVisiblePrimitives(c.ctx, q, &c.vis)
	displayVisible(c.out, c.world, &c.vis)
	return nil
}

func (c *Console) trace(a Arguments) error {
	start, err := a.Vec(1)
	if err != nil {
		return err
	}
	end, err := a.Vec(4)
	if err != nil {
		return err
	}
	return c.raycast(start, end, a.Argv(7).String())
}

func (c *Console) raycast(start, end vec.Vec3, mode string) error {
	f := world.RayFilter{QueryMask: c.view.QueryMask, VisMask: c.view.VisMask}
	switch mode {
	case "", "closest":
		var hits []world.Hit
		if h, ok := c.world.RaycastClosest(c.ctx, start, end, f); ok {
			hits = append(hits, h)
		}
		displayHits(c.out, c.world, hits)
	case "all":
		c.world.RaycastTriangles(c.ctx, start, end, f, &c.res)
		c.res.Sort()
		displayHits(c.out, c.world, c.res.Hits)
	case "bounds":
		c.bounds = c.world.RaycastBounds(c.ctx, start, end, f, c.bounds[:0])
		displayBounds(c.out, c.world, c.bounds)
	case "closestbounds":
		var bounds []world.BoundsHit
		if b, ok := c.world.RaycastClosestBounds(c.ctx, start, end, f); ok {
			bounds = append(bounds, b)
		}
		displayBounds(c.out, c.world, bounds)
	default:
		return errors.Errorf("unknown raycast mode %q", mode)
	}
	return nil
}
