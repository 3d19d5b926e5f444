// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package strtable

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dotandev/fewdat/internal/errors"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// LineSeparator terminates every line of an editable text file.
const LineSeparator = "\r\n"

const maxLineSize = 1 << 20

// WriteLines writes one Shift-JIS line per entry, each terminated by CRLF.
func WriteLines(w io.Writer, lines []string) error {
	tw := transform.NewWriter(w, japanese.ShiftJIS.NewEncoder())
	for i, line := range lines {
		if _, err := io.WriteString(tw, lineEndings.Replace(line)+LineSeparator); err != nil {
			return errors.WrapEncodeFailed(i+1, err)
		}
	}
	return tw.Close()
}

// ReadLines reads a Shift-JIS text file written by WriteLines. Both CRLF and
// LF terminate a line; a final terminator does not start a new line.
func ReadLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(transform.NewReader(r, japanese.ShiftJIS.NewDecoder()))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text lines: %w", err)
	}
	return lines, nil
}
