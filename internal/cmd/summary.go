// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"path/filepath"
	"strconv"

	"github.com/dotandev/fewdat/internal/batch"
	interrors "github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/terminal"
)

// printSummary prints one line per result followed by the totals.
func printSummary(r terminal.Renderer, results []batch.Result) {
	failed := 0
	for _, res := range results {
		name := filepath.Base(res.Input)
		switch {
		case errors.Is(res.Err, interrors.ErrUnsupportedFile):
			failed++
			r.Printf("%s %s skipped: not a *_sce.dat, *_define.dat or *_sce.txt file\n", r.Warning(), name)
		case res.Err != nil:
			failed++
			r.Printf("%s %s: %s\n", r.Error(), name, r.Colorize(res.Err.Error(), "red"))
		default:
			r.Printf("%s %s %s", r.Success(), r.Colorize(string(res.Action), "bold"), name)
			if res.Action == batch.ActionDecode {
				r.Printf(" (%d instructions, %d strings", res.Instructions, res.Strings)
				if res.Skipped > 0 {
					r.Printf(", %s", r.Colorize(pluralBytes(res.Skipped)+" skipped", "yellow"))
				}
				r.Print(")")
			}
			r.Println()
			for _, out := range res.Outputs {
				r.Printf("    -> %s\n", r.Colorize(out, "dim"))
			}
		}
	}

	total := len(results)
	if failed == 0 {
		r.Printf("%s\n", r.Colorize(countFiles(total)+" converted", "green"))
		return
	}
	r.Printf("%s\n", r.Colorize(countFiles(total-failed)+" converted, "+countFiles(failed)+" failed", "red"))
}

func countFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return strconv.Itoa(n) + " files"
}

func pluralBytes(n int) string {
	if n == 1 {
		return "1 unknown byte"
	}
	return strconv.Itoa(n) + " unknown bytes"
}
