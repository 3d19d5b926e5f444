// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is
var (
	ErrMalformedContainer      = errors.New("malformed container")
	ErrDecode                  = errors.New("decode error")
	ErrUnknownOpcode           = errors.New("unknown opcode")
	ErrMissingSidecar          = errors.New("missing metadata")
	ErrEncodeFailed            = errors.New("failed to encode text")
	ErrUnsupportedFile         = errors.New("unsupported file")
	ErrConfig                  = errors.New("configuration error")
	ErrValidation              = errors.New("validation error")
	ErrCliArgumentRequired     = errors.New("required argument missing")
	ErrIncompatibleOpcodeTable = errors.New("incompatible opcode table")
)

// DecodeError reports where inside a decrypted script a decode failed.
type DecodeError struct {
	Offset int
	Opcode byte
	Tag    byte
	HasTag bool
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%v at offset 0x%x (opcode 0x%02X", e.kind(), e.Offset, e.Opcode)
	if e.HasTag {
		msg += fmt.Sprintf(", tag 0x%02X", e.Tag)
	}
	msg += ")"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *DecodeError) kind() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrDecode
}

// Unwrap lets errors.Is match ErrDecode or ErrUnknownOpcode.
func (e *DecodeError) Unwrap() error {
	return e.kind()
}

// NewDecodeError builds a DecodeError for an operand-level failure.
func NewDecodeError(offset int, opcode byte, reason string) *DecodeError {
	return &DecodeError{Offset: offset, Opcode: opcode, Reason: reason, Err: ErrDecode}
}

// NewTagError builds a DecodeError for an unrecognised operand tag.
func NewTagError(offset int, opcode, tag byte) *DecodeError {
	return &DecodeError{
		Offset: offset,
		Opcode: opcode,
		Tag:    tag,
		HasTag: true,
		Reason: "unknown operand tag",
		Err:    ErrDecode,
	}
}

// NewUnknownOpcodeError builds a DecodeError for a byte missing from the dispatch table.
func NewUnknownOpcodeError(offset int, opcode byte) *DecodeError {
	return &DecodeError{Offset: offset, Opcode: opcode, Err: ErrUnknownOpcode}
}

// Wrap functions for consistent error wrapping
func WrapMalformedContainer(msg string) error {
	return fmt.Errorf("%w: %s", ErrMalformedContainer, msg)
}

func WrapDecode(err error) error {
	return fmt.Errorf("%w: %w", ErrDecode, err)
}

func WrapMissingSidecar(path string) error {
	return fmt.Errorf("%w: %s not found, decode the original script again to regenerate it", ErrMissingSidecar, path)
}

func WrapEncodeFailed(line int, err error) error {
	return fmt.Errorf("%w: line %d: %w", ErrEncodeFailed, line, err)
}

func WrapUnsupportedFile(path string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
}

func WrapConfigError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConfig, msg, err)
}

func WrapValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func WrapCliArgumentRequired(name string) error {
	return fmt.Errorf("%w: --%s", ErrCliArgumentRequired, name)
}

func WrapIncompatibleOpcodeTable(have, want string) error {
	return fmt.Errorf("%w: built-in table %s does not satisfy %q", ErrIncompatibleOpcodeTable, have, want)
}
