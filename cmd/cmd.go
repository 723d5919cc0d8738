// SPDX-License-Identifier: GPL-2.0-or-later

// Package cmd holds the actions of the command line tool and the console
// that drives a world from a script.
package cmd

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Func runs a console command.
type Func func(args Arguments) error

type command struct {
	f     Func
	usage string
}

type Commands map[string]command

func (c Commands) Add(name, usage string, f Func) error {
	ln := strings.ToLower(name)
	if _, ok := c[ln]; ok {
		return errors.Errorf("command %s already defined", ln)
	}
	c[ln] = command{f: f, usage: usage}
	return nil
}

func (c Commands) Exists(cmdName string) bool {
	_, ok := c[strings.ToLower(cmdName)]
	return ok
}

func (c Commands) Usage(cmdName string) string {
	return c[strings.ToLower(cmdName)].usage
}

func (c Commands) List() []string {
	cmds := make([]string, 0, len(c))
	for cmd := range c {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}

// Execute runs the command named by the first argument. It reports false if
// there is no such command.
func (c Commands) Execute(a Arguments) (bool, error) {
	if a.Len() == 0 {
		return false, nil
	}
	name := strings.ToLower(a.Argv(0).String())
	cmd, ok := c[name]
	if !ok {
		return false, nil
	}
	if err := cmd.f(a); err != nil {
		return true, errors.Wrap(err, name)
	}
	return true, nil
}

func Must(err error) {
	if err != nil {
		panic(err.Error())
	}
}
