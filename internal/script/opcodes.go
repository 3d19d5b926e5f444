// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"fmt"

	interrors "github.com/dotandev/fewdat/internal/errors"
)

// opcodeTable maps every known opcode byte to its decode rule. It is built
// once and only read afterwards, so concurrent decoders share it.
var opcodeTable = buildTable()

func buildTable() [256]*rule {
	var t [256]*rule

	// Video and flow
	t[0x02] = op("VideoStart", opU8)
	t[0x03] = op("VideoStartAnime", opU8)
	t[0x04] = op("VideoEnd")
	t[0x0B] = op("Goto", opBranch)
	t[0x0C] = op("Gosub", opBranch)
	t[0x0D] = op("MacroEnd")
	t[0x0E] = special("Movie", decodeMovie)
	t[0x14] = op("SaveStatus", opStr)
	t[0x15] = op("AutoSave")

	// Flags
	t[0x19] = op("FlagAdd", opParam, opI32)
	t[0x1A] = op("FlagSub", opParam, opI32)
	t[0x1B] = op("FlagMul", opParam, opI32)
	t[0x1C] = op("FlagDiv", opParam, opI32)
	t[0x1D] = op("FlagExc", opParam, opI32)
	t[0x1E] = special("FlagSet", decodeFlagSet)
	t[0x1F] = op("StringSet", opStrStrict, opStr)
	t[0x20] = op("S2SSet", opStrStrict, opStrStrict)
	t[0x21] = op("S2SConnect", opStrStrict, opStrStrict)
	t[0x22] = op("S2TextConnect", opStrStrict, opStr)
	t[0x23] = op("FlagRand", opParam, opI32, opI32)
	t[0x24] = op("FlagCg", opStr)
	for i := 0; i < len(comparators); i++ {
		t[0x25+i] = flagCheck("FlagCheck", i)
		t[0x2B+i] = flagCheck("FlagCheckGosub", i)
		t[0x38+i] = f2fCheck(i)
	}
	t[0x31] = op("F2FAdd", opParam, opParam)
	t[0x32] = op("F2FSub", opParam, opParam)
	t[0x33] = op("F2FMul", opParam, opParam)
	t[0x34] = op("F2FDiv", opParam, opParam)
	t[0x35] = op("F2FExc", opParam, opParam)
	t[0x36] = op("F2FSet", opParam, opParam)
	t[0x37] = special("F2FRand", decodeF2FRand)

	// CG and effects
	t[0x46] = op("CgFull", opStr)
	t[0x47] = op("CgFullClear")
	t[0x48] = op("CgMid", opU8, opI32, opStr)
	t[0x49] = op("CgMidAuto", opU8, opStr)
	t[0x4A] = op("CgMidMove", opU8, opI32)
	t[0x4B] = op("CgMidXY", opU8, opI32, opI32)
	t[0x4C] = op("GetMiddlePos", opU8, opParam)
	t[0x4D] = special("CgMidClear", decodeCgMidClear)
	t[0x4E] = op("Effect", opU8)
	t[0x4F] = special("CModeFlash", decodeColorFlash)
	t[0x50] = op("EffectFlash", opI16)
	t[0x51] = special("EffectShake", decodeShake)
	t[0x52] = special("EffectPattern", decodePattern)
	t[0x53] = op("EffectScroll", opU8, opStr)
	t[0x54] = op("EFE", opU8)
	t[0x55] = op("EffectEnvStop")
	t[0x56] = op("EffectEnvStopNoCreate")
	t[0x57] = op("ColorFill", opU8, opU8, opU8, opI16, opI16)
	t[0x58] = special("ColorMode", decodeColorMode)
	t[0x59] = op("EffectEnvLoadAlpha", opStr)

	// Sound
	t[0x5A] = op("MusicPlay", opU8)
	t[0x5B] = op("MusicStop")
	t[0x5C] = op("MusicStopFade", opI16)
	t[0x5D] = op("SoundEffectPlay", opStr)
	t[0x5E] = op("SoundEffectPlayLoop", opStr)
	t[0x5F] = op("SoundEffectPlayLoopStop")
	t[0x60] = op("SoundEffectPlayLoopABCD", opI16, opStr)
	t[0x61] = op("SoundEffectPlayLoopStopABCD", opI16)
	t[0x62] = op("SoundEffectPlayLoopStopABCDALL")
	t[0x63] = op("SoundEffectPitch", opI32)
	t[0x64] = op("SoundEffectPitchDefault", opI32)

	// Animation, fonts and movies
	t[0x69] = op("Sleep", opParam)
	t[0x6A] = op("AnimeFullOn")
	t[0x6B] = op("AnimeFullOff")
	t[0x6C] = op("AnimeMepachiOn")
	t[0x6D] = op("AnimeMepachiOff")
	t[0x6E] = op("AnimeKutiOn")
	t[0x6F] = op("AnimeKutiOff")
	t[0x70] = op("FontSize", opU8)
	t[0x71] = op("FontChange", opStr)
	t[0x72] = op("FontSetName", opStr)
	t[0x73] = op("FontReset")
	t[0x74] = op("PlayCutMovie", opI16, opI16, opI16, opI16, opI16, opStr)
	t[0x75] = op("PlayCutMovieLoop", opI16, opI16, opI16, opI16, opI16, opStr)
	t[0x76] = op("PlayMovieRateSet", opI16, opI32)
	t[0x77] = op("PlayMoviePause", opI16)
	t[0x78] = op("ReleaseMovie")
	t[0x7B] = op("AntiAliasSet", opU8)
	t[0x7C] = op("MessageWindowSet", opU8)
	t[0x7D] = op("SetMepachiTime", opI32, opI32, opI32)
	t[0x7E] = op("EventInit")
	t[0x7F] = op("EventSet", opI32, opI32, opI32, opI32, opI32, opI32)
	t[0x80] = op("timeGetTime", opParam)
	t[0x81] = op("GetSEPPlayNow", opParam)

	// Text
	t[0x8C] = op("TextInit", opI32, opI32)
	t[0x8D] = op("TextOutSet", opI32, opI32, opI32, opI32)
	t[0x8E] = op("TextOut", opI32, opI32, opI32, opI32, opStrLoose)
	t[0x8F] = op("TextOutDefault", opStr)
	t[0x90] = op("TextDraw", opI32, opI32, opI32, opI32)
	t[0x91] = op("TextDrawDefault")
	t[0x92] = op("TextDrawFlag", opParam, opParam, opI32, opI32)

	// CG drawing
	t[0x93] = op("CgLoad", opI32, opStr)
	t[0x94] = op("CgUnLoad", opI32)
	t[0x95] = op("CgDrawInit")
	t[0x96] = op("CgInitRect", opParam, opParam, opParam, opParam)
	t[0x97] = op("CgDraw", opU8)
	t[0x98] = op("CgShow", opParam, opParam, opParam, opParam)
	t[0x99] = op("CgDrawKey", opI32, opParam, opParam, opParam, opParam, opParam, opParam)
	t[0x9A] = op("CgDrawColorDodge", opI32, opParam, opParam, opParam, opParam, opParam, opParam)
	t[0x9B] = op("CgDrawBlendPattern", opI32, opParam, opParam, opParam, opParam, opParam, opParam, opParam, opParam)
	t[0x9C] = op("DrawMessageWindow")

	// System
	t[0x9D] = op("SaveGetDate", opStrStrict, opI32)
	t[0x9E] = op("SaveGetTitle", opStrStrict, opI32)
	t[0x9F] = op("SaveGetMemo", opStrStrict, opI32)
	t[0xA0] = op("ConfigGetEffect", opParam)
	t[0xA1] = op("SkipGet", opParam)
	t[0xA2] = op("CtrlGet", opParam)
	t[0xA3] = op("MemoryLoad")
	t[0xB5] = op("CharEvent")
	t[0xB7] = op("EventStart")
	t[0xB8] = op("KeyWaitMovie")
	t[0xB9] = op("KeyWait")
	t[0xC8] = special("SelectPrint", decodeSelectPrint)
	t[0xC9] = op("SelectDefault", opU8)
	t[0xE6] = op(unnamed(0xE6), opI32, opStr, opStr, opStr, opSeq)
	t[0xE7] = op(unnamed(0xE7), opI32, opStr, opStr, opSeq)
	t[0xE8] = op(unnamed(0xE8), opStr, opStr, opSeq)
	t[0xE9] = op(unnamed(0xE9), opStr, opSeq)
	t[0xF0] = special("Program", decodeProgram)

	return t
}

// unnamed returns the mnemonic used for opcodes with no known name.
func unnamed(opcode byte) string {
	return fmt.Sprintf("Opcode_%02X", opcode)
}

// OpcodeInfo describes one entry of the dispatch table.
type OpcodeInfo struct {
	Opcode   byte
	Mnemonic string
	Category Category
}

// Lookup returns the table entry for opcode.
func Lookup(opcode byte) (OpcodeInfo, bool) {
	r := opcodeTable[opcode]
	if r == nil {
		return OpcodeInfo{}, false
	}
	return OpcodeInfo{Opcode: opcode, Mnemonic: r.mnemonic, Category: r.category}, true
}

// Opcodes lists every known opcode in ascending order.
func Opcodes() []OpcodeInfo {
	var out []OpcodeInfo
	for i := range opcodeTable {
		if info, ok := Lookup(byte(i)); ok {
			out = append(out, info)
		}
	}
	return out
}

// =============================================================================
// Lookahead rules
// =============================================================================

// Movie is 0E 74 followed by three zero words; anything else is SkipStop.
var moviePrefix = []byte{0x74, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

func decodeMovie(s *state) error {
	if !s.r.matches(0, moviePrefix) {
		s.inst.Mnemonic = "SkipStop"
		return nil
	}
	s.r.pos++
	for i := 0; i < 5; i++ {
		if err := s.operand(opI16); err != nil {
			return err
		}
	}
	if err := s.operand(opStr); err != nil {
		return err
	}

	b0, ok0 := s.r.peek(0)
	b1, ok1 := s.r.peek(1)
	if !ok0 || !ok1 {
		return s.fail(errTruncated)
	}
	if b0 != 0xB8 && b1 != 0x78 {
		return interrors.NewDecodeError(s.r.pos, s.opcode, "Movie is missing its closing bytes B8 78")
	}
	s.r.pos += 2
	return nil
}

// decodeFlagSet picks the unnamed byte+word form when a literal tag sits
// three bytes past the opcode.
func decodeFlagSet(s *state) error {
	if b, ok := s.r.peek(3); ok && b == TagLiteral {
		s.inst.Mnemonic = unnamed(s.opcode)
		if err := s.operand(opU8); err != nil {
			return err
		}
		if err := s.operand(opI16); err != nil {
			return err
		}
		if err := s.r.skip(1); err != nil {
			return s.fail(err)
		}
		return nil
	}
	if err := s.operand(opParam); err != nil {
		return err
	}
	return s.operand(opI32)
}

// decodeF2FRand renders the word after the first operand without consuming
// it, then decodes the second operand from that same position.
func decodeF2FRand(s *state) error {
	if err := s.operand(opParam); err != nil {
		return err
	}
	v, ok := s.r.peekI32(0)
	if !ok {
		return s.fail(errTruncated)
	}
	s.arg(fmt.Sprint(v))
	return s.operand(opParam)
}

// midClearAll is the run of CgMidClear 0..9 that collapses into one instruction.
var midClearAll = []byte{
	0x00, 0x4D, 0x01, 0x4D, 0x02, 0x4D, 0x03, 0x4D, 0x04, 0x4D,
	0x05, 0x4D, 0x06, 0x4D, 0x07, 0x4D, 0x08, 0x4D, 0x09,
}

func decodeCgMidClear(s *state) error {
	if !s.r.matches(0, midClearAll) {
		return s.operand(opU8)
	}
	if b, ok := s.r.peek(len(midClearAll)); ok && b == 0x46 {
		s.inst.Mnemonic = "CgFullMidClear"
		s.r.pos += len(midClearAll) + 1
		return s.operand(opStr)
	}
	s.inst.Mnemonic = "CgMidClearAll"
	s.r.pos += len(midClearAll)
	return nil
}

func decodeColorFlash(s *state) error {
	var v [7]int32
	for i := range v {
		n, err := s.i32()
		if err != nil {
			return err
		}
		v[i] = n
		s.arg(fmt.Sprint(n))
	}

	if v[0] != 0 || v[1] != 0 || v[2] != 0 || v[3] != 220 || v[4] != 220 || v[5] != 220 {
		return nil
	}
	s.inst.Mnemonic = "Effect"
	switch {
	case v[6] == 200 && s.r.matches(0, []byte{0x4E, 0x17}):
		s.inst.Args = []string{"Z"}
		s.r.pos += 2
	case v[6] == 10 && s.r.matches(0, []byte{0x4E, 0x15}):
		s.inst.Args = []string{"]"}
		s.r.pos += 2
	}
	return nil
}

func decodeShake(s *state) error {
	var v [4]int16
	for i := range v {
		n, err := s.i16()
		if err != nil {
			return err
		}
		v[i] = n
		s.arg(fmt.Sprint(n))
	}
	switch v {
	case [4]int16{0, 30, 80, 400}:
		s.inst.Mnemonic = "Effect"
		s.inst.Args = []string{"["}
	case [4]int16{30, 0, 80, 400}:
		s.inst.Mnemonic = "Effect"
		s.inst.Args = []string{`\`}
	}
	return nil
}

func decodePattern(s *state) error {
	name, err := s.str()
	if err != nil {
		return err
	}
	switch name {
	case "pef_clo":
		s.inst.Mnemonic = "Effect"
		s.arg("^")
	case "pef_cir":
		s.inst.Mnemonic = "Effect"
		s.arg("_")
	default:
		s.arg(name)
	}
	return nil
}

var colorModes = map[int32]string{
	0: "ColorModeNone",
	1: "ColorModeDark",
	2: "ColorModeLight",
	3: "ColorModeSepia",
	4: "ColorModeMono",
}

func decodeColorMode(s *state) error {
	mode, err := s.i32()
	if err != nil {
		return err
	}
	if name, ok := colorModes[mode]; ok {
		s.inst.Mnemonic = name
	}
	s.arg(fmt.Sprint(mode))
	for i := 0; i < 3; i++ {
		if err := s.operand(opU8); err != nil {
			return err
		}
	}
	return nil
}

// decodeSelectPrint reads a choice count followed by that many string indexes.
func decodeSelectPrint(s *state) error {
	count, err := s.u8()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := s.operand(opStr); err != nil {
			return err
		}
	}
	return nil
}

// decodeProgram covers both encodings of 0xF0. Older scripts use it for
// ReturnTitle with fixed arguments; both forms are nine bytes long.
func decodeProgram(s *state) error {
	if s.opts.LegacyReturnTitle {
		if err := s.r.skip(8); err != nil {
			return s.fail(err)
		}
		s.inst.Mnemonic = "ReturnTitle"
		s.arg("1")
		s.arg("0")
		return nil
	}
	if err := s.operand(opI32); err != nil {
		return err
	}
	return s.operand(opI32)
}
