// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"errors"
	"fmt"
	"strconv"

	interrors "github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/strtable"
)

// Category groups decode rules by operand grammar.
type Category int

const (
	CategoryNone        Category = iota // opcode only
	CategoryFixed                       // fixed-width scalars
	CategoryString                      // string-table index
	CategoryParam                       // GetParameters operand
	CategoryStringParam                 // GetStringParameters operand
	CategoryBranch                      // branch target
	CategoryCompare                     // flag comparison with branch
	CategorySpecial                     // lookahead-disambiguated
)

var categoryNames = [...]string{"none", "fixed", "string", "param", "strparam", "branch", "compare", "special"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
	return categoryNames[c]
}

type operandKind int

const (
	opU8 operandKind = iota
	opI16
	opI32
	opStr
	opParam
	opStrLoose
	opStrStrict
	opBranch
	opSeq // trailing sequence number, consumed but not rendered
)

// rule decodes one opcode. Generic rules list their operands; compare and
// special rules supply decode instead.
type rule struct {
	mnemonic string
	category Category
	operands []operandKind
	decode   func(s *state) error
}

func op(mnemonic string, operands ...operandKind) *rule {
	return &rule{mnemonic: mnemonic, category: categorize(operands), operands: operands}
}

func special(mnemonic string, decode func(s *state) error) *rule {
	return &rule{mnemonic: mnemonic, category: CategorySpecial, decode: decode}
}

func categorize(operands []operandKind) Category {
	c := CategoryNone
	for _, k := range operands {
		var kc Category
		switch k {
		case opU8, opI16, opI32, opSeq:
			kc = CategoryFixed
		case opStr:
			kc = CategoryString
		case opParam:
			kc = CategoryParam
		case opStrLoose, opStrStrict:
			kc = CategoryStringParam
		case opBranch:
			kc = CategoryBranch
		}
		if kc > c {
			c = kc
		}
	}
	return c
}

// =============================================================================
// Decoder state
// =============================================================================

// state is the per-instruction view handed to each rule.
type state struct {
	r       *reader
	strings *strtable.Table
	labels  *LabelTable
	opts    Options

	opcode byte
	inst   Instruction
}

func (s *state) arg(v string) {
	s.inst.Args = append(s.inst.Args, v)
}

func (s *state) fail(err error) error {
	var tagErr *TagError
	if errors.As(err, &tagErr) {
		return interrors.NewTagError(s.r.pos, s.opcode, tagErr.Tag)
	}
	return interrors.NewDecodeError(s.r.pos, s.opcode, err.Error())
}

func (s *state) u8() (byte, error) {
	b, err := s.r.u8()
	if err != nil {
		return 0, s.fail(err)
	}
	return b, nil
}

func (s *state) i16() (int16, error) {
	v, err := s.r.i16()
	if err != nil {
		return 0, s.fail(err)
	}
	return v, nil
}

func (s *state) i32() (int32, error) {
	v, err := s.r.i32()
	if err != nil {
		return 0, s.fail(err)
	}
	return v, nil
}

func (s *state) lookup(idx int32) (string, error) {
	str, ok := s.strings.At(int(idx))
	if !ok {
		return "", interrors.NewDecodeError(s.r.pos, s.opcode,
			fmt.Sprintf("string index %d out of range (table has %d entries)", idx, s.strings.Len()))
	}
	return str, nil
}

func (s *state) str() (string, error) {
	at := s.r.pos
	idx, err := s.i32()
	if err != nil {
		return "", err
	}
	str, ok := s.strings.At(int(idx))
	if !ok {
		return "", interrors.NewDecodeError(at, s.opcode,
			fmt.Sprintf("string index %d out of range (table has %d entries)", idx, s.strings.Len()))
	}
	return str, nil
}

func (s *state) param() (string, error) {
	v, n, err := GetParameters(s.r.remaining())
	if err != nil {
		return "", s.fail(err)
	}
	s.r.pos += n
	return v, nil
}

func (s *state) strParam(mode StringMode) (string, error) {
	p, err := GetStringParameters(s.r.remaining(), mode)
	if err != nil {
		return "", s.fail(err)
	}
	if p.IsIndex {
		str, err := s.lookup(p.Index)
		if err != nil {
			return "", err
		}
		s.r.pos += p.Size
		return str, nil
	}
	s.r.pos += p.Size
	return p.Flag, nil
}

func (s *state) branch() (string, error) {
	addr, err := s.i32()
	if err != nil {
		return "", err
	}
	l, _ := s.labels.GetOrCreate(uint32(addr))
	return l.Name, nil
}

// operand decodes and renders one generic operand.
func (s *state) operand(k operandKind) error {
	var v string
	switch k {
	case opU8:
		b, err := s.u8()
		if err != nil {
			return err
		}
		v = strconv.Itoa(int(b))
	case opI16:
		n, err := s.i16()
		if err != nil {
			return err
		}
		v = strconv.Itoa(int(n))
	case opI32:
		n, err := s.i32()
		if err != nil {
			return err
		}
		v = strconv.Itoa(int(n))
	case opSeq:
		_, err := s.i32()
		return err
	case opStr:
		str, err := s.str()
		if err != nil {
			return err
		}
		v = str
	case opParam:
		p, err := s.param()
		if err != nil {
			return err
		}
		v = p
	case opStrLoose, opStrStrict:
		mode := StringLoose
		if k == opStrStrict {
			mode = StringStrict
		}
		p, err := s.strParam(mode)
		if err != nil {
			return err
		}
		v = p
	case opBranch:
		name, err := s.branch()
		if err != nil {
			return err
		}
		v = name
	}
	s.arg(v)
	return nil
}

func (s *state) run(r *rule) error {
	s.inst.Mnemonic = r.mnemonic
	// opcode byte
	s.r.pos++
	if r.decode != nil {
		return r.decode(s)
	}
	for _, k := range r.operands {
		if err := s.operand(k); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Comparison rules
// =============================================================================

func flagCheck(mnemonic string, cmp int) *rule {
	return &rule{
		mnemonic: mnemonic,
		category: CategoryCompare,
		decode: func(s *state) error {
			lhs, err := s.compareOperand(flagCheckSigils)
			if err != nil {
				return err
			}
			s.arg(lhs)
			s.arg(comparators[cmp])
			if err := s.operand(opI32); err != nil {
				return err
			}
			return s.operand(opBranch)
		},
	}
}

func f2fCheck(cmp int) *rule {
	return &rule{
		mnemonic: "F2FCheck",
		category: CategoryCompare,
		decode: func(s *state) error {
			lhs, err := s.compareOperand(f2fSigils)
			if err != nil {
				return err
			}
			s.arg(lhs)
			s.arg(comparators[cmp])
			rhs, err := s.compareOperand(f2fSigils)
			if err != nil {
				return err
			}
			s.arg(rhs)
			return s.operand(opBranch)
		},
	}
}

// compareOperand reads a kind tag and a 16-bit id and renders them as one
// argument, e.g. "g12" or "12" for kinds without a sigil.
func (s *state) compareOperand(sigils map[byte]string) (string, error) {
	tag, ok := s.r.peek(0)
	if !ok {
		return "", s.fail(errTruncated)
	}
	sigil, known := sigils[tag]
	if !known {
		return "", s.fail(&TagError{Tag: tag})
	}
	s.r.pos++
	id, err := s.i16()
	if err != nil {
		return "", err
	}
	return sigil + strconv.Itoa(int(id)), nil
}
