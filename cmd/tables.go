// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"govis/cvar"
	"govis/math/vec"
	"govis/world"
)

func fmtVec(v vec.Vec3) string {
	return fmt.Sprintf("%.2f %.2f %.2f", v[0], v[1], v[2])
}

func fmtDist(d float32) string {
	return strconv.FormatFloat(float64(d), 'f', 3, 32)
}

func displayLevelStats(out io.Writer, levels []*world.Level) {
	table := newTable(out, "Level", "Planes", "Nodes", "Leafs", "Clusters", "PVS", "Areas", "Portals", "Surfaces", "Planar", "Triangles", "Materials")
	for _, l := range levels {
		s := l.Stats()
		pvs := "-"
		if s.HasPVS {
			pvs = fmt.Sprintf("%d bytes", s.PVSBytes)
			if s.Compressed {
				pvs += " rle"
			}
		}
		portals := strconv.Itoa(s.Portals)
		if s.Blocked > 0 {
			portals += fmt.Sprintf(" (%d blocked)", s.Blocked)
		}
		table.Append([]string{
			l.Name,
			strconv.Itoa(s.Planes),
			strconv.Itoa(s.Nodes),
			strconv.Itoa(s.Leafs),
			strconv.Itoa(s.Clusters),
			pvs,
			strconv.Itoa(s.Areas),
			portals,
			strconv.Itoa(s.Surfaces),
			strconv.Itoa(s.Planar),
			strconv.Itoa(s.Triangles),
			strconv.Itoa(s.Materials),
		})
	}
	table.Render()
}

func materialName(l *world.Level, m int32) string {
	if m < 0 || int(m) >= len(l.Materials) {
		return "-"
	}
	return l.Materials[m].Name
}

func displayVisible(out io.Writer, w *world.World, v *world.Visible) {
	if len(v.Surfaces) > 0 {
		table := newTable(out, "Level", "Surface", "Material", "Triangles")
		for _, s := range v.Surfaces {
			l := w.Level(int(s.Level))
			sf := &l.Surfaces[s.Surface]
			table.Append([]string{
				l.Name,
				strconv.Itoa(int(s.Surface)),
				materialName(l, sf.Material),
				strconv.Itoa(int(sf.NumIndices / 3)),
			})
		}
		table.Render()
	}
	if len(v.Primitives) > 0 {
		table := newTable(out, "Primitive", "Shape", "Owner")
		for _, id := range v.Primitives {
			p, _ := w.Primitive(id)
			table.Append([]string{strconv.Itoa(int(id)), p.Shape.String(), p.Owner.String()})
		}
		table.Render()
	}
	st := v.Stats
	fmt.Fprintf(out, "%d surfaces, %d primitives; %d nodes, %d leafs, %d areas, %d portals, %d boxes batched in %d jobs\n",
		len(v.Surfaces), len(v.Primitives), st.Nodes, st.Leafs, st.Areas, st.Portals, st.Batched, st.Jobs)
}

func hitTarget(w *world.World, level, surface int32, prim world.PrimitiveID) (string, string) {
	if prim != world.NoPrimitive {
		p, _ := w.Primitive(prim)
		return "primitive " + strconv.Itoa(int(prim)), p.Owner.String()
	}
	l := w.Level(int(level))
	return "surface " + strconv.Itoa(int(surface)), l.Name
}

func displayHits(out io.Writer, w *world.World, hits []world.Hit) {
	table := newTable(out, "Distance", "Target", "Owner", "Triangle", "Position", "Normal", "UV", "Lightmap")
	for _, h := range hits {
		target, owner := hitTarget(w, h.Level, h.Surface, h.Primitive)
		lm := "-"
		if h.LightmapSlot >= 0 {
			lm = fmt.Sprintf("%d %.3f %.3f", h.LightmapSlot, h.LightmapUV[0], h.LightmapUV[1])
		}
		table.Append([]string{
			fmtDist(h.Distance),
			target,
			owner,
			strconv.Itoa(int(h.Triangle)),
			fmtVec(h.Pos),
			fmtVec(h.Normal),
			fmt.Sprintf("%.3f %.3f", h.UV[0], h.UV[1]),
			lm,
		})
	}
	table.Render()
	fmt.Fprintf(out, "%d hits\n", len(hits))
}

func displayBounds(out io.Writer, w *world.World, bounds []world.BoundsHit) {
	table := newTable(out, "Enter", "Leave", "Target", "Owner")
	for _, b := range bounds {
		target, owner := hitTarget(w, b.Level, b.Surface, b.Primitive)
		table.Append([]string{fmtDist(b.DistanceMin), fmtDist(b.DistanceMax), target, owner})
	}
	table.Render()
	fmt.Fprintf(out, "%d intervals\n", len(bounds))
}

func displayCvars(out io.Writer, part string) {
	table := newTable(out, "Name", "Value", "Default", "Description")
	for _, cv := range cvar.List() {
		if !strings.HasPrefix(cv.Name(), part) {
			continue
		}
		table.Append([]string{cv.Name(), cv.String(), cv.DefaultValue(), cv.Description()})
	}
	table.Render()
}
