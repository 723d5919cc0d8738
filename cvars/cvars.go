// SPDX-License-Identifier: GPL-2.0-or-later

package cvars

import (
	"govis/conlog"
	"govis/cvar"
)

var (
	Developer              *cvar.Cvar
	RNoVis                 *cvar.Cvar
	VisCullMode            *cvar.Cvar
	VisMaxPortalDepth      *cvar.Cvar
	VisMinObjectsPerThread *cvar.Cvar
	VisPortals             *cvar.Cvar
)

// Culling strategies selected by vis_cullmode.
const (
	CullSimple   = 0 // every box is tested as soon as it is found
	CullBatch    = 1 // boxes are collected and tested 4 at a time
	CullParallel = 2 // like CullBatch, large batches fan out to the job system
)

func init() {
	Developer = cvar.MustRegister("developer", "0", cvar.NONE).
		SetDescription("print debug messages")
	RNoVis = cvar.MustRegister("r_novis", "0", cvar.ARCHIVE).
		SetDescription("ignore pvs data, every leaf is potentially visible")
	VisCullMode = cvar.MustRegister("vis_cullmode", "2", cvar.ARCHIVE|cvar.NOTIFY).
		SetDescription("0 immediate box tests, 1 batched, 2 batched with parallel jobs")
	VisMaxPortalDepth = cvar.MustRegister("vis_maxportaldepth", "128", cvar.ARCHIVE).
		SetDescription("portal recursion limit, clamped to the portal stack size")
	VisMinObjectsPerThread = cvar.MustRegister("vis_minobjectsperthread", "64", cvar.ARCHIVE).
		SetDescription("smallest box batch handed to a single job")
	VisPortals = cvar.MustRegister("vis_portals", "1", cvar.ARCHIVE|cvar.NOTIFY).
		SetDescription("flow through portals instead of the pvs when a level has portals")

	conlog.SetDeveloper(Developer.Bool)
}
