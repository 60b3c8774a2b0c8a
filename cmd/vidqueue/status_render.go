package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type level int

const (
	levelInfo level = iota
	levelOK
	levelWarn
	levelError
)

var levelStyles = map[level]struct {
	tag   string
	color string
}{
	levelInfo:  {"INFO", "\x1b[34m"},
	levelOK:    {"OK", "\x1b[32m"},
	levelWarn:  {"WARN", "\x1b[33m"},
	levelError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// reporter writes labelled "[OK] detail" lines grouped under section
// headers. Color is enabled only when out is a terminal.
type reporter struct {
	out      io.Writer
	color    bool
	labelCol int
}

func newReporter(out io.Writer) *reporter {
	return &reporter{out: out, color: isTerminal(out), labelCol: 22}
}

func (r *reporter) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	r.write(levelInfo, heading)
	r.write(levelInfo, strings.Repeat("-", len(heading)))
}

func (r *reporter) line(lvl level, label, detail string) {
	style := levelStyles[lvl]
	text := "[" + style.tag + "]"
	if detail != "" {
		text += " " + detail
	}
	r.write(lvl, fmt.Sprintf("  %-*s %s", r.labelCol, label+":", text))
}

func (r *reporter) blank() {
	fmt.Fprintln(r.out)
}

func (r *reporter) write(lvl level, text string) {
	if r.color {
		text = levelStyles[lvl].color + text + ansiReset
	}
	fmt.Fprintln(r.out, text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
