// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dotandev/fewdat/internal/cmd"
	"github.com/fatih/color"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
)

func run(execute func() error, stderr io.Writer) int {
	err := execute()
	switch {
	case err == nil:
	case cmd.IsInterrupted(err):
		fmt.Fprintln(stderr, "Interrupted. Shutting down...")
	default:
		fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
	}
	return cmd.ExitCode(err)
}

func main() {
	cmd.Version = version
	os.Exit(run(cmd.Execute, os.Stderr))
}
