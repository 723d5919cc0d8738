// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"govis/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "govis"
	app.Usage = "inspect visibility and raycasts of baked levels"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable debug logging",
		},
		cli.StringSliceFlag{
			Name:  "set, s",
			Value: &cli.StringSlice{},
			Usage: "set a console variable, name=value",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "culling jobs running at once, 0 for one per cpu",
		},
		cli.UintFlag{
			Name:  "query-group",
			Value: 1,
			Usage: "query group of imported surfaces",
		},
		cli.UintFlag{
			Name:  "vis-group",
			Value: 1,
			Usage: "visibility group of imported surfaces",
		},
	}
	exec := cli.StringSliceFlag{
		Name:  "exec, e",
		Value: &cli.StringSlice{},
		Usage: "console line to run first, e.g. \"box 0 0 0 8\"",
	}
	app.Commands = []cli.Command{
		{
			Name:      "info",
			Usage:     "print level statistics",
			ArgsUsage: "level1 level2 ...",
			Action:    cmd.Info,
		},
		{
			Name:  "query",
			Usage: "list the surfaces and primitives visible from a camera",
			Description: `
Load the levels into one world, run the --exec console lines to place
primitives or block portals and query what is potentially visible from the
camera at --pos looking along --dir.`,
			ArgsUsage: "level1 level2 ...",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "pos",
					Value: "0,0,0",
					Usage: "camera position",
				},
				cli.StringFlag{
					Name:  "dir",
					Value: "1,0,0",
					Usage: "view direction",
				},
				cli.Float64Flag{
					Name:  "fov",
					Value: 90,
					Usage: "field of view in degrees",
				},
				cli.Float64Flag{
					Name:  "near",
					Value: 1,
					Usage: "near plane distance",
				},
				cli.Float64Flag{
					Name:  "far",
					Value: 4096,
					Usage: "far plane distance",
				},
				cli.BoolFlag{
					Name:  "matrix",
					Usage: "extract the planes from a perspective matrix",
				},
				exec,
			},
			Action: cmd.Query,
		},
		{
			Name:      "raycast",
			Usage:     "list what a segment hits",
			ArgsUsage: "level1 level2 ...",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "start",
					Value: "0,0,0",
					Usage: "segment start",
				},
				cli.StringFlag{
					Name:  "end",
					Value: "1024,0,0",
					Usage: "segment end",
				},
				cli.StringFlag{
					Name:  "mode, m",
					Value: "closest",
					Usage: "closest, all, bounds or closestbounds",
				},
				exec,
			},
			Action: cmd.Raycast,
		},
		{
			Name:      "run",
			Usage:     "run console scripts",
			ArgsUsage: "script1 script2 ...",
			Flags: []cli.Flag{
				cli.StringSliceFlag{
					Name:  "level, l",
					Value: &cli.StringSlice{},
					Usage: "level file to load",
				},
				exec,
			},
			Action: cmd.Run,
		},
		{
			Name:  "convert",
			Usage: "import a glTF scene or a Source map and write a baked level",
			Description: `
Read the input (.gltf, .glb, .bsp or .vds), validate it and write it to the
output file in the binary level format.`,
			ArgsUsage: "input output.vds",
			Action:    cmd.Convert,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
