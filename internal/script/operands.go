// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Operand tag bytes.
const (
	TagLocalFlag   byte = 0x3E
	TagGlobalFlag  byte = 0x3F
	TagLiteral     byte = 0x41
	TagConstant    byte = 0x42
	TagPlain       byte = 0x43
	TagStringFlag  byte = 0x44
	TagStringIndex byte = 0x45
)

// StringMode selects one of the two GetStringParameters call conventions.
type StringMode int

const (
	// StringLoose accepts 0x44 (string flag) and 0x45 (index at +1). Used by TextOut.
	StringLoose StringMode = iota
	// StringStrict treats 0x45 as an index at +2 and anything else as a string flag.
	StringStrict
)

func (m StringMode) String() string {
	if m == StringStrict {
		return "strict"
	}
	return "loose"
}

// TagError reports an operand tag byte the grammar does not accept.
type TagError struct {
	Tag byte
}

func (e *TagError) Error() string {
	return fmt.Sprintf("unknown operand tag 0x%02X", e.Tag)
}

// GetParameters decodes a numeric-or-flag operand from window and returns its
// rendering and the number of bytes it occupies.
//
//	3F id16  -> "g<id>", 3
//	3E id16  -> "f<id>", 3
//	41 v32   -> "<v>",   5
func GetParameters(window []byte) (string, int, error) {
	if len(window) == 0 {
		return "", 0, errTruncated
	}
	switch window[0] {
	case TagGlobalFlag, TagLocalFlag:
		if len(window) < 3 {
			return "", 0, errTruncated
		}
		id := int16(binary.LittleEndian.Uint16(window[1:]))
		return flagSigil(window[0]) + strconv.Itoa(int(id)), 3, nil
	case TagLiteral:
		if len(window) < 5 {
			return "", 0, errTruncated
		}
		v := int32(binary.LittleEndian.Uint32(window[1:]))
		return strconv.Itoa(int(v)), 5, nil
	default:
		return "", 0, &TagError{Tag: window[0]}
	}
}

func flagSigil(tag byte) string {
	if tag == TagGlobalFlag {
		return "g"
	}
	return "f"
}

// StringParameter is the raw result of GetStringParameters. When IsIndex is
// set, Index refers to the string table and Flag is empty.
type StringParameter struct {
	Flag    string
	Index   int32
	IsIndex bool
	Size    int
}

// GetStringParameters decodes a string-or-string-flag operand from window.
// The two modes disagree on where the index sits and on what is accepted as a
// string flag; both are kept because each opcode was compiled against one.
func GetStringParameters(window []byte, mode StringMode) (StringParameter, error) {
	if len(window) == 0 {
		return StringParameter{}, errTruncated
	}

	switch mode {
	case StringStrict:
		if window[0] == TagStringIndex {
			// The index is read at +2 but only five bytes are consumed, so
			// the window must reach one byte past the operand. An operand
			// ending exactly at the garbage offset is truncated.
			if len(window) < 6 {
				return StringParameter{}, errTruncated
			}
			idx := int32(binary.LittleEndian.Uint32(window[2:]))
			return StringParameter{Index: idx, IsIndex: true, Size: 5}, nil
		}
		return stringFlag(window)
	default:
		switch window[0] {
		case TagStringFlag:
			return stringFlag(window)
		case TagStringIndex:
			if len(window) < 5 {
				return StringParameter{}, errTruncated
			}
			idx := int32(binary.LittleEndian.Uint32(window[1:]))
			return StringParameter{Index: idx, IsIndex: true, Size: 5}, nil
		default:
			return StringParameter{}, &TagError{Tag: window[0]}
		}
	}
}

func stringFlag(window []byte) (StringParameter, error) {
	if len(window) < 3 {
		return StringParameter{}, errTruncated
	}
	id := int16(binary.LittleEndian.Uint16(window[1:]))
	return StringParameter{Flag: "s" + strconv.Itoa(int(id)), Size: 3}, nil
}

// =============================================================================
// Comparison operands
// =============================================================================

// Comparators in opcode order within each comparison family.
var comparators = [6]string{"==", "!=", "<", ">", "<=", ">="}

// flagCheckSigils maps FlagCheck / FlagCheckGosub operand kinds to sigils.
var flagCheckSigils = map[byte]string{
	TagGlobalFlag: "g",
	TagLocalFlag:  "f",
	TagConstant:   "c",
	TagPlain:      "",
}

// f2fSigils maps F2FCheck operand kinds to sigils.
var f2fSigils = map[byte]string{
	TagGlobalFlag: "g",
	TagLocalFlag:  "",
}
