// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package strtable reads and rebuilds the null-terminated Shift-JIS string
// table stored at the end of a decrypted script.
package strtable

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dotandev/fewdat/internal/errors"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var lineEndings = strings.NewReplacer("\r\n", "", "\r", "", "\n", "")

// Table is the ordered list of strings referenced by index from the bytecode.
type Table struct {
	entries []string
}

// New wraps already-decoded entries.
func New(entries []string) *Table {
	return &Table{entries: append([]string(nil), entries...)}
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// At returns the entry at index i.
func (t *Table) At(i int) (string, bool) {
	if i < 0 || i >= len(t.entries) {
		return "", false
	}
	return t.entries[i], true
}

// Lines returns a copy of all entries in table order.
func (t *Table) Lines() []string {
	return append([]string(nil), t.entries...)
}

// Read scans region for null-terminated strings. A zero-length run that
// starts exactly two bytes before the end of region produces one empty entry
// and consumes both trailing bytes; unterminated trailing bytes form a final
// entry.
func Read(region []byte) (*Table, error) {
	t := &Table{}
	n := len(region)
	cur := 0
	for cur < n {
		start := cur
		for cur < n && region[cur] != 0x00 {
			cur++
		}

		if cur == start && cur == n-2 {
			t.entries = append(t.entries, "")
			cur += 2
			continue
		}

		s, err := DecodeShiftJIS(region[start:cur])
		if err != nil {
			return nil, errors.WrapDecode(fmt.Errorf("string %d at table offset 0x%x: %w", len(t.entries), start, err))
		}
		t.entries = append(t.entries, s)
		cur++
	}
	return t, nil
}

// Join encodes lines as Shift-JIS and separates them with single null bytes.
// No terminator follows the last line. Line-ending characters are removed
// before encoding.
func Join(lines []string) ([]byte, error) {
	var buf bytes.Buffer
	for i, line := range lines {
		if i > 0 {
			buf.WriteByte(0x00)
		}
		line = lineEndings.Replace(line)
		b, err := EncodeShiftJIS(line)
		if err != nil {
			return nil, errors.WrapEncodeFailed(i+1, err)
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// DecodeShiftJIS converts Shift-JIS bytes to a UTF-8 string. Input that the
// decoder can only replace, or that yields a rune with no Shift-JIS encoding,
// is an error so a decoded table can always be encoded again.
func DecodeShiftJIS(b []byte) (string, error) {
	if isASCII(b) {
		return string(b), nil
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("invalid Shift-JIS sequence in % X", b)
	}
	if _, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), out); err != nil {
		return "", fmt.Errorf("bytes % X decode to %q, which has no Shift-JIS encoding", b, out)
	}
	return string(out), nil
}

// EncodeShiftJIS converts a UTF-8 string to Shift-JIS bytes.
func EncodeShiftJIS(s string) ([]byte, error) {
	if isASCII([]byte(s)) {
		return []byte(s), nil
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
