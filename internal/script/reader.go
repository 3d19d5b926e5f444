// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"encoding/binary"
	"errors"
)

var errTruncated = errors.New("operand runs past the end of the instruction stream")

// reader is a bounds-checked little-endian cursor over the instruction stream.
// Reads never cross limit; peeks report false instead of failing.
type reader struct {
	data  []byte
	pos   int
	limit int
}

func newReader(data []byte, origin, limit int) *reader {
	if limit > len(data) {
		limit = len(data)
	}
	return &reader{data: data, pos: origin, limit: limit}
}

func (r *reader) atEnd() bool { return r.pos >= r.limit }

func (r *reader) remaining() []byte {
	if r.pos >= r.limit {
		return nil
	}
	return r.data[r.pos:r.limit]
}

func (r *reader) skip(n int) error {
	if r.pos+n > r.limit {
		return errTruncated
	}
	r.pos += n
	return nil
}

func (r *reader) u8() (byte, error) {
	if r.pos+1 > r.limit {
		return 0, errTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) i16() (int16, error) {
	if r.pos+2 > r.limit {
		return 0, errTruncated
	}
	v := int16(binary.LittleEndian.Uint16(r.data[r.pos:]))
	r.pos += 2
	return v, nil
}

func (r *reader) i32() (int32, error) {
	if r.pos+4 > r.limit {
		return 0, errTruncated
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	return v, nil
}

// peek returns the byte off bytes ahead of the cursor.
func (r *reader) peek(off int) (byte, bool) {
	p := r.pos + off
	if p < 0 || p >= r.limit {
		return 0, false
	}
	return r.data[p], true
}

func (r *reader) peekI16(off int) (int16, bool) {
	p := r.pos + off
	if p < 0 || p+2 > r.limit {
		return 0, false
	}
	return int16(binary.LittleEndian.Uint16(r.data[p:])), true
}

func (r *reader) peekI32(off int) (int32, bool) {
	p := r.pos + off
	if p < 0 || p+4 > r.limit {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(r.data[p:])), true
}

// matches reports whether the bytes at off equal pattern.
func (r *reader) matches(off int, pattern []byte) bool {
	for i, want := range pattern {
		b, ok := r.peek(off + i)
		if !ok || b != want {
			return false
		}
	}
	return true
}
