// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// printCmdList returns the "cmdlist" command listing every command, or the
// ones starting with the first argument.
func (c Commands) printCmdList(w io.Writer) Func {
	return func(a Arguments) error {
		part := a.Argv(1).String()
		table := newTable(w, "Command", "Usage")
		count := 0
		for _, name := range c.List() {
			if strings.HasPrefix(name, part) {
				table.Append([]string{name, c.Usage(name)})
				count++
			}
		}
		table.Render()
		if part != "" {
			fmt.Fprintf(w, "%v commands beginning with %q\n", count, part)
		} else {
			fmt.Fprintf(w, "%v commands\n", count)
		}
		return nil
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}
