// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"

	"govis/conlog"
	"govis/math/vec"
)

// Arg is a single word of a console line.
type Arg struct {
	a string
}

func (a Arg) String() string {
	return a.a
}

func (a Arg) Int() (int, error) {
	r, err := strconv.ParseInt(a.a, 10, 0)
	if err != nil {
		return 0, errors.Errorf("%q is not an integer", a.a)
	}
	return int(r), nil
}

func (a Arg) Float32() (float32, error) {
	r, err := strconv.ParseFloat(a.a, 32)
	if err != nil {
		return 0, errors.Errorf("%q is not a number", a.a)
	}
	return float32(r), nil
}

func (a Arg) Bool() bool {
	switch a.a {
	case "1", "t", "T", "true", "TRUE", "True", "On", "ON", "on":
		return true
	default:
		return false
	}
}

// Arguments is a parsed console line. Argument 0 is the command name.
type Arguments struct {
	args []Arg
	full string
}

// Argv returns argument i or an empty argument if there are fewer.
func (c *Arguments) Argv(i int) Arg {
	if i < 0 || i >= len(c.args) {
		return Arg{}
	}
	return c.args[i]
}

func (c *Arguments) Full() string {
	return c.full
}

func (c *Arguments) Args() []Arg {
	return c.args
}

func (c *Arguments) Len() int {
	return len(c.args)
}

// ArgumentString returns the line without the command name.
func (c *Arguments) ArgumentString() string {
	if len(c.args) < 2 {
		return ""
	}
	r := strings.TrimPrefix(c.full, c.args[0].String())
	r = strings.TrimLeftFunc(r, unicode.IsSpace)
	if len(r) > 1 && r[0] == '"' {
		r = strings.Trim(r, "\"\t\n\v\f\r ")
	}
	return r
}

// Vec reads the three arguments starting at i as a vector.
func (c *Arguments) Vec(i int) (vec.Vec3, error) {
	var v vec.Vec3
	if i+3 > len(c.args) {
		return v, errors.Errorf("%s: want x y z at argument %d", c.Argv(0), i)
	}
	for j := range v {
		f, err := c.args[i+j].Float32()
		if err != nil {
			return v, errors.Wrapf(err, "%s: argument %d", c.Argv(0), i+j)
		}
		v[j] = f
	}
	return v, nil
}

// Parse splits a console line into words. Double quotes group words, "//"
// and "#" start a comment running to the end of the line.
func Parse(s string) (args Arguments) {
	args.full = strings.TrimFunc(s, unicode.IsSpace)
	l := &lexer{input: args.full, state: lexAction}
	for l.state != nil {
		l.state = l.state(l)
	}
	for _, i := range l.items {
		switch i.typ {
		case itemWord:
			args.args = append(args.args, Arg{i.val})
		case itemString:
			args.args = append(args.args, Arg{strings.Trim(i.val, `"`)})
		case itemError:
			conlog.Warnf("parse %q: %s", args.full, i.val)
			return
		}
	}
	return
}

// SplitLines cuts a script into console lines at newlines and at semicolons
// outside of quotes.
func SplitLines(script string) []string {
	var lines []string
	quote := false
	start := 0
	for i := 0; i < len(script); i++ {
		switch script[i] {
		case '"':
			quote = !quote
			continue
		case ';':
			if quote {
				continue
			}
		case '\n':
			quote = false
		default:
			continue
		}
		lines = append(lines, script[start:i])
		start = i + 1
	}
	if start < len(script) {
		lines = append(lines, script[start:])
	}
	return lines
}

type itemType int

const (
	itemError itemType = iota
	itemEOF
	itemString // quoted string includes quotes
	itemWord
)

const eof = -1

type item struct {
	typ itemType
	val string
}

func (i item) String() string {
	switch i.typ {
	case itemEOF:
		return "EOF"
	case itemError:
		return i.val
	}
	if len(i.val) > 10 {
		return fmt.Sprintf("%.10q...", i.val)
	}
	return fmt.Sprintf("%q", i.val)
}

type stateFn func(*lexer) stateFn

type lexer struct {
	input string
	start int
	pos   int
	width int
	items []item
	state stateFn
}

func (l *lexer) emit(t itemType) {
	l.items = append(l.items, item{t, l.input[l.start:l.pos]})
	l.start = l.pos
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += l.width
	return r
}

func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items = append(l.items, item{itemError, fmt.Sprintf(format, args...)})
	return nil
}

func lexAction(l *lexer) stateFn {
	switch r := l.next(); {
	case r == eof || r == '#':
		l.emit(itemEOF)
		return nil
	case r == ' ' || r == '\t':
		l.ignore()
		return lexAction
	case r == '"':
		return lexQuote
	case r == '/' && strings.HasPrefix(l.input[l.pos:], "/"):
		l.emit(itemEOF)
		return nil
	case r > ' ':
		l.backup()
		return lexWord
	default:
		return l.errorf("unhandled char: %#U", r)
	}
}

func lexWord(l *lexer) stateFn {
	for {
		if r := l.next(); r <= ' ' || r == '"' {
			l.backup()
			l.emit(itemWord)
			return lexAction
		}
	}
}

func lexQuote(l *lexer) stateFn {
	for {
		switch l.next() {
		case '"':
			l.emit(itemString)
			return lexAction
		case eof, '\n':
			return l.errorf("unterminated string")
		}
	}
}
