// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"fmt"
	"io"
	"strings"
)

// MnemonicLabel marks a pseudo instruction that names a branch target.
const MnemonicLabel = "Label"

// Instruction is one decoded instruction, or a label marker.
type Instruction struct {
	// Offset is the absolute offset of the opcode in the decrypted script.
	Offset int
	// Opcode is the raw opcode byte. Zero for label markers.
	Opcode byte
	// Mnemonic is the instruction name, e.g. "Goto" or "TextOut".
	Mnemonic string
	// Args are the rendered operands in encoding order.
	Args []string
	// Size is the number of bytes consumed. Zero for label markers.
	Size int
}

// IsLabel reports whether the instruction is a label marker.
func (inst *Instruction) IsLabel() bool {
	return inst.Mnemonic == MnemonicLabel && inst.Size == 0
}

// String renders the instruction as one listing line.
func (inst *Instruction) String() string {
	if inst.IsLabel() {
		return fmt.Sprintf("%s %s:", MnemonicLabel, strings.Join(inst.Args, " "))
	}
	if len(inst.Args) == 0 {
		return inst.Mnemonic
	}
	return inst.Mnemonic + " " + strings.Join(inst.Args, " ")
}

func labelMarker(l Label) Instruction {
	return Instruction{Offset: int(l.Address), Mnemonic: MnemonicLabel, Args: []string{l.Name}}
}

// Listing is the decoded instruction stream of one script.
type Listing struct {
	// Instructions holds decoded instructions with label markers interleaved.
	Instructions []Instruction
	// Labels are all branch targets in creation order.
	Labels []Label
	// Skipped counts unknown opcode bytes passed over in permissive mode.
	Skipped int
}

// Count returns the number of real instructions, excluding label markers.
func (l *Listing) Count() int {
	n := 0
	for i := range l.Instructions {
		if !l.Instructions[i].IsLabel() {
			n++
		}
	}
	return n
}

// Lines renders one line per listing entry.
func (l *Listing) Lines() []string {
	lines := make([]string, len(l.Instructions))
	for i := range l.Instructions {
		lines[i] = l.Instructions[i].String()
	}
	return lines
}

// Format renders the listing with each line prefixed by its offset.
func (l *Listing) Format() string {
	var b strings.Builder
	for i := range l.Instructions {
		inst := &l.Instructions[i]
		if inst.IsLabel() {
			b.WriteString(inst.String())
			b.WriteByte('\n')
			continue
		}
		fmt.Fprintf(&b, "  0x%06x: %s\n", inst.Offset, inst.String())
	}
	return b.String()
}

// WriteTo writes the listing as CRLF-terminated lines.
func (l *Listing) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range l.Lines() {
		n, err := io.WriteString(w, line+"\r\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
