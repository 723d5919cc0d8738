// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"log/slog"

	"github.com/urfave/cli"

	"govis/cvar"
	"govis/cvars"
)

// setupLogging applies the global verbosity flags and the --set cvar
// assignments.
func setupLogging(ctx *cli.Context) error {
	switch {
	case ctx.GlobalBool("vv"):
		slog.SetLogLoggerLevel(slog.LevelDebug)
		cvars.Developer.SetValue(1)
	case ctx.GlobalBool("v"):
		slog.SetLogLoggerLevel(slog.LevelInfo)
	default:
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}
	for _, s := range ctx.GlobalStringSlice("set") {
		if err := cvar.Execute(s); err != nil {
			return err
		}
	}
	return nil
}
