// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package script decodes the bytecode of a decrypted FEW engine script into a
// textual instruction listing.
//
// Decoding is table driven: every opcode byte maps to a rule describing its
// operand grammar. Branch targets are named through a LabelTable in the order
// they are first referenced, and a "Label <name>:" marker is emitted ahead of
// the instruction each label points at.
package script

import (
	"github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/dotandev/fewdat/internal/strtable"
)

// CodeStart is the offset of the first instruction; bytes before it are the
// script header.
const CodeStart = 12

// Options controls decoder compatibility behaviour.
type Options struct {
	// Permissive skips one byte on an unknown opcode instead of failing.
	Permissive bool
	// BackwardLabels adds markers for labels first referenced after the
	// decoder had already passed their address.
	BackwardLabels bool
	// LegacyReturnTitle decodes 0xF0 as the ReturnTitle of older scripts.
	LegacyReturnTitle bool
}

// DefaultOptions returns strict decoding with backward label markers.
func DefaultOptions() Options {
	return Options{BackwardLabels: true}
}

// Decoder walks the instruction region of one decrypted script. A Decoder
// owns its LabelTable and must not be shared between scripts.
type Decoder struct {
	data    []byte
	end     int
	strings *strtable.Table
	labels  *LabelTable
	opts    Options
}

// NewDecoder prepares a decoder for data[CodeStart:end]. strings resolves
// string-table operands.
func NewDecoder(data []byte, end int, strings *strtable.Table, opts Options) *Decoder {
	if strings == nil {
		strings = strtable.New(nil)
	}
	return &Decoder{
		data:    data,
		end:     end,
		strings: strings,
		labels:  NewLabelTable(),
		opts:    opts,
	}
}

// Labels returns the decoder's label table.
func (d *Decoder) Labels() *LabelTable {
	return d.labels
}

// Decode decodes every instruction up to the end offset.
func (d *Decoder) Decode() (*Listing, error) {
	r := newReader(d.data, CodeStart, d.end)
	listing := &Listing{}
	marked := make(map[uint32]bool)

	for !r.atEnd() {
		offset := r.pos
		if l, ok := d.labels.Lookup(uint32(offset)); ok && !marked[l.Address] {
			listing.Instructions = append(listing.Instructions, labelMarker(l))
			marked[l.Address] = true
		}

		opcode := d.data[offset]
		rl := opcodeTable[opcode]
		if rl == nil {
			if !d.opts.Permissive {
				return nil, errors.NewUnknownOpcodeError(offset, opcode)
			}
			logger.Logger.Warn("Skipping unknown opcode", "offset", offset, "opcode", opcode)
			listing.Skipped++
			r.pos++
			continue
		}

		s := &state{
			r:       r,
			strings: d.strings,
			labels:  d.labels,
			opts:    d.opts,
			opcode:  opcode,
			inst:    Instruction{Offset: offset, Opcode: opcode},
		}
		if err := s.run(rl); err != nil {
			return nil, err
		}
		s.inst.Size = r.pos - offset
		listing.Instructions = append(listing.Instructions, s.inst)
	}

	if d.opts.BackwardLabels {
		listing.Instructions = insertMissingMarkers(listing.Instructions, d.labels, marked)
	}
	listing.Labels = d.labels.Labels()

	logger.Logger.Debug("Decoded instruction stream",
		"instructions", listing.Count(),
		"labels", len(listing.Labels),
		"skipped", listing.Skipped)
	return listing, nil
}

// insertMissingMarkers places a marker ahead of every instruction whose
// offset matches a label that has no marker yet. Labels that point inside an
// instruction or outside the stream stay unmarked.
func insertMissingMarkers(insts []Instruction, labels *LabelTable, marked map[uint32]bool) []Instruction {
	missing := 0
	for _, l := range labels.Labels() {
		if !marked[l.Address] {
			missing++
		}
	}
	if missing == 0 {
		return insts
	}

	out := make([]Instruction, 0, len(insts)+missing)
	for _, inst := range insts {
		if !inst.IsLabel() {
			if l, ok := labels.Lookup(uint32(inst.Offset)); ok && !marked[l.Address] {
				out = append(out, labelMarker(l))
				marked[l.Address] = true
			}
		}
		out = append(out, inst)
	}

	for _, l := range labels.Labels() {
		if !marked[l.Address] {
			logger.Logger.Debug("Label does not start an instruction", "label", l.Name, "address", l.Address)
		}
	}
	return out
}

// Decode is a convenience wrapper around NewDecoder and Decoder.Decode.
func Decode(data []byte, end int, strings *strtable.Table, opts Options) (*Listing, error) {
	return NewDecoder(data, end, strings, opts).Decode()
}
