// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"govis/conlog"
	"govis/jobs"
	"govis/level"
	"govis/math/vec"
	"govis/world"
)

// parseVec reads a vector written as "x,y,z".
func parseVec(s string) (vec.Vec3, error) {
	var v vec.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, errors.Errorf("vector %q: want x,y,z", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, errors.Wrapf(err, "vector %q", s)
		}
		v[i] = float32(f)
	}
	return v, nil
}

// ReadLevel reads a level file. Baked levels end in .vds, glTF scenes in
// .gltf or .glb and Source engine maps in .bsp. Imported geometry gets the
// given query and visibility groups.
func ReadLevel(name string, queryGroup, visGroup uint32) (*level.Desc, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vds":
		return level.Load(name)
	case ".gltf", ".glb":
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return level.ImportGLTF(f, filepath.Base(name), queryGroup, visGroup)
	case ".bsp":
		return level.ImportSourceFile(name, queryGroup, visGroup)
	}
	return nil, errors.Errorf("%s: unsupported level format", name)
}

func importGroups(ctx *cli.Context) (uint32, uint32) {
	return uint32(ctx.GlobalUint("query-group")), uint32(ctx.GlobalUint("vis-group"))
}

func loadWorld(ctx *cli.Context, names []string) (*world.World, error) {
	if len(names) == 0 {
		return nil, errors.New("missing level file argument")
	}
	qg, vg := importGroups(ctx)
	var levels []*world.Level
	for _, name := range names {
		d, err := ReadLevel(name, qg, vg)
		if err != nil {
			return nil, err
		}
		l, err := world.NewLevel(d)
		if err != nil {
			return nil, err
		}
		conlog.DPrintf("loaded level %q from %s", l.Name, name)
		levels = append(levels, l)
	}
	return world.NewWorld(levels...), nil
}

func newConsole(ctx *cli.Context, w *world.World) (*Console, error) {
	c := NewConsole(w, jobs.NewPool(ctx.GlobalInt("workers")), ctx.App.Writer)
	for _, line := range ctx.StringSlice("exec") {
		if err := c.Execute(line); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Info prints the statistics of the given levels.
func Info(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	w, err := loadWorld(ctx, ctx.Args())
	if err != nil {
		return err
	}
	displayLevelStats(ctx.App.Writer, w.Levels())
	return nil
}

// Query prints what is visible from a camera.
func Query(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	w, err := loadWorld(ctx, ctx.Args())
	if err != nil {
		return err
	}
	c, err := newConsole(ctx, w)
	if err != nil {
		return err
	}
	org, err := parseVec(ctx.String("pos"))
	if err != nil {
		return err
	}
	dir, err := parseVec(ctx.String("dir"))
	if err != nil {
		return err
	}
	c.view.Fov = float32(ctx.Float64("fov"))
	c.view.Near = float32(ctx.Float64("near"))
	c.view.Far = float32(ctx.Float64("far"))
	c.view.Matrix = ctx.Bool("matrix")
	q, err := c.view.Query(org, dir)
	if err != nil {
		return err
	}
	w.QueryVisiblePrimitives(c.ctx, q, &c.vis)
	displayVisible(c.out, w, &c.vis)
	return nil
}

// Raycast prints what a segment hits.
func Raycast(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	w, err := loadWorld(ctx, ctx.Args())
	if err != nil {
		return err
	}
	c, err := newConsole(ctx, w)
	if err != nil {
		return err
	}
	start, err := parseVec(ctx.String("start"))
	if err != nil {
		return err
	}
	end, err := parseVec(ctx.String("end"))
	if err != nil {
		return err
	}
	return c.raycast(start, end, ctx.String("mode"))
}

// Run executes console scripts against the levels given with --level.
func Run(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	w, err := loadWorld(ctx, ctx.StringSlice("level"))
	if err != nil {
		return err
	}
	c, err := newConsole(ctx, w)
	if err != nil {
		return err
	}
	for _, name := range ctx.Args() {
		script, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if err := c.Run(string(script)); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return nil
}

// Convert imports a level and writes it as a baked .vds file.
func Convert(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	if ctx.NArg() != 2 {
		return errors.New("want input and output file")
	}
	in, out := ctx.Args().Get(0), ctx.Args().Get(1)
	qg, vg := importGroups(ctx)
	d, err := ReadLevel(in, qg, vg)
	if err != nil {
		return err
	}
	l, err := world.NewLevel(d)
	if err != nil {
		return err
	}
	if err := level.Save(out, d); err != nil {
		return err
	}
	displayLevelStats(ctx.App.Writer, []*world.Level{l})
	conlog.Printf("wrote %s", out)
	return nil
}
