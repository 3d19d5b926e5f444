// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package dat converts FEW engine script containers to editable text and back.
//
// A decrypted script starts with a 12-byte header holding the end of the
// instruction stream and the start of the string table. Decode keeps the
// bytes before the string table as an opaque capture; Encrypt rebuilds a
// container from that capture and the edited string lines, so instructions
// never need to be re-encoded.
package dat

import (
	"encoding/binary"
	"fmt"

	"github.com/dotandev/fewdat/internal/cipher"
	"github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/dotandev/fewdat/internal/script"
	"github.com/dotandev/fewdat/internal/strtable"
)

// HeaderSize is the size of the decrypted script header.
const HeaderSize = script.CodeStart

// stringOffsetSlot locates the string-table offset inside the header.
const (
	stringOffsetStart = 4
	stringOffsetEnd   = 8
)

// Header is the fixed prefix of a decrypted script.
type Header struct {
	// GarbageOffset is where the instruction stream ends.
	GarbageOffset uint32
	// StringTableOffset is where the string table starts.
	StringTableOffset uint32
}

// ParseHeader reads and validates the header of a decrypted script.
func ParseHeader(plain []byte) (Header, error) {
	if len(plain) < HeaderSize {
		return Header{}, errors.WrapMalformedContainer(
			fmt.Sprintf("decrypted script is %d bytes, shorter than its %d-byte header", len(plain), HeaderSize))
	}
	h := Header{
		GarbageOffset:     binary.LittleEndian.Uint32(plain[0:4]),
		StringTableOffset: binary.LittleEndian.Uint32(plain[stringOffsetStart:stringOffsetEnd]),
	}
	if err := h.Validate(len(plain)); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Validate checks 12 < GarbageOffset <= StringTableOffset <= size.
func (h Header) Validate(size int) error {
	switch {
	case h.GarbageOffset <= HeaderSize:
		return errors.WrapMalformedContainer(fmt.Sprintf("instruction stream end 0x%x is inside the header", h.GarbageOffset))
	case h.GarbageOffset > h.StringTableOffset:
		return errors.WrapMalformedContainer(fmt.Sprintf("instruction stream end 0x%x is past string table 0x%x", h.GarbageOffset, h.StringTableOffset))
	case uint64(h.StringTableOffset) > uint64(size):
		return errors.WrapMalformedContainer(fmt.Sprintf("string table offset 0x%x is past end of script (%d bytes)", h.StringTableOffset, size))
	}
	return nil
}

// Result is everything Decode extracts from one script.
type Result struct {
	Header  Header
	Listing *script.Listing
	Strings *strtable.Table
	// Capture is the sidecar needed by Encrypt.
	Capture []byte
}

// Decrypt removes the container cipher and returns the decrypted script.
func Decrypt(container []byte) ([]byte, error) {
	return cipher.Decrypt(container)
}

// Decode reads the string table, decodes the instruction stream and captures
// the bytes needed for reassembly. plain is not modified.
func Decode(plain []byte, opts script.Options) (*Result, error) {
	h, err := ParseHeader(plain)
	if err != nil {
		return nil, err
	}

	strs, err := strtable.Read(plain[h.StringTableOffset:])
	if err != nil {
		return nil, err
	}

	listing, err := script.Decode(plain, int(h.GarbageOffset), strs, opts)
	if err != nil {
		return nil, err
	}

	logger.Logger.Debug("Decoded script",
		"instructions", listing.Count(),
		"labels", len(listing.Labels),
		"strings", strs.Len(),
		"garbage_bytes", h.StringTableOffset-h.GarbageOffset)

	return &Result{
		Header:  h,
		Listing: listing,
		Strings: strs,
		Capture: Capture(plain, h),
	}, nil
}

// Open decrypts and decodes a container in one step.
func Open(container []byte, opts script.Options) (*Result, error) {
	plain, err := Decrypt(container)
	if err != nil {
		return nil, err
	}
	return Decode(plain, opts)
}

// Capture copies plain[0:StringTableOffset) with the string-table offset
// slot zeroed.
func Capture(plain []byte, h Header) []byte {
	c := make([]byte, h.StringTableOffset)
	copy(c, plain[:h.StringTableOffset])
	if len(c) >= stringOffsetEnd {
		clear(c[stringOffsetStart:stringOffsetEnd])
	}
	return c
}

// Reassemble builds the decrypted script for lines and capture: the capture
// with its string-table offset restored, the Shift-JIS string table, and zero
// padding up to a multiple of four bytes. capture is not modified.
func Reassemble(lines []string, capture []byte) ([]byte, error) {
	if len(capture) == 0 {
		return nil, errors.ErrMissingSidecar
	}
	if len(capture) < HeaderSize {
		return nil, errors.WrapMalformedContainer(
			fmt.Sprintf("metadata is %d bytes, shorter than the %d-byte script header", len(capture), HeaderSize))
	}

	table, err := strtable.Join(lines)
	if err != nil {
		return nil, err
	}

	size := len(capture) + len(table)
	if rem := size % 4; rem != 0 {
		size += 4 - rem
	}

	out := make([]byte, size)
	copy(out, capture)
	binary.LittleEndian.PutUint32(out[stringOffsetStart:stringOffsetEnd], uint32(len(capture)))
	copy(out[len(capture):], table)
	return out, nil
}

// Encrypt rebuilds a container from edited lines and a capture.
func Encrypt(lines []string, capture []byte) ([]byte, error) {
	plain, err := Reassemble(lines, capture)
	if err != nil {
		return nil, err
	}
	return cipher.Encrypt(plain), nil
}
