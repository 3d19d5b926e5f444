// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var attributes = map[string]color.Attribute{
	"red":     color.FgRed,
	"green":   color.FgGreen,
	"yellow":  color.FgYellow,
	"blue":    color.FgBlue,
	"magenta": color.FgMagenta,
	"cyan":    color.FgCyan,
	"dim":     color.Faint,
	"bold":    color.Bold,
}

type ANSIRenderer struct {
	out     io.Writer
	isTTY   bool
	ttyOnce sync.Once
}

// NewANSIRenderer writes to out, or stdout when out is nil.
func NewANSIRenderer(out io.Writer) *ANSIRenderer {
	if out == nil {
		out = os.Stdout
	}
	return &ANSIRenderer{out: out}
}

func (r *ANSIRenderer) IsTTY() bool {
	r.ttyOnce.Do(func() {
		r.isTTY = r.checkTTY()
	})
	return r.isTTY
}

func (r *ANSIRenderer) checkTTY() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := r.out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *ANSIRenderer) Print(a ...any) {
	fmt.Fprint(r.out, a...)
}

func (r *ANSIRenderer) Printf(format string, a ...any) {
	fmt.Fprintf(r.out, format, a...)
}

func (r *ANSIRenderer) Println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

func (r *ANSIRenderer) Colorize(text, name string) string {
	attr, ok := attributes[name]
	if !ok || !r.IsTTY() {
		return text
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(text)
}

func (r *ANSIRenderer) Success() string {
	return r.Colorize("[OK]", "green")
}

func (r *ANSIRenderer) Warning() string {
	return r.Colorize("[!]", "yellow")
}

func (r *ANSIRenderer) Error() string {
	return r.Colorize("[X]", "red")
}
