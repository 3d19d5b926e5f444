// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"errors"
	"testing"

	interrors "github.com/dotandev/fewdat/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i16le(v int16) []byte {
	u := uint16(v)
	return []byte{byte(u), byte(u >> 8)}
}

func TestLookup_Categories(t *testing.T) {
	tests := []struct {
		opcode   byte
		mnemonic string
		category Category
	}{
		{0x6A, "AnimeFullOn", CategoryNone},
		{0x57, "ColorFill", CategoryFixed},
		{0x14, "SaveStatus", CategoryString},
		{0x69, "Sleep", CategoryParam},
		{0x8E, "TextOut", CategoryStringParam},
		{0x1F, "StringSet", CategoryStringParam},
		{0x0B, "Goto", CategoryBranch},
		{0x25, "FlagCheck", CategoryCompare},
		{0x30, "FlagCheckGosub", CategoryCompare},
		{0x3D, "F2FCheck", CategoryCompare},
		{0x0E, "Movie", CategorySpecial},
		{0xE9, "Opcode_E9", CategoryString},
	}
	for _, tt := range tests {
		info, ok := Lookup(tt.opcode)
		require.True(t, ok, "opcode 0x%02X", tt.opcode)
		assert.Equal(t, tt.mnemonic, info.Mnemonic)
		assert.Equal(t, tt.category, info.Category, "opcode 0x%02X", tt.opcode)
	}

	_, ok := Lookup(0x00)
	assert.False(t, ok)
	_, ok = Lookup(0xFF)
	assert.False(t, ok)
}

func TestOpcodes_Ordered(t *testing.T) {
	all := Opcodes()
	require.Len(t, all, 135)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Opcode, all[i].Opcode)
	}
	assert.Equal(t, "compare", CategoryCompare.String())
	assert.Equal(t, "Category(42)", Category(42).String())
}

func TestDecode_Movie(t *testing.T) {
	code := cat(
		[]byte{0x0E, 0x74}, i16le(0), i16le(0), i16le(0), i16le(10), i16le(20),
		i32le(0), []byte{0xB8, 0x78},
	)
	listing := decodeCode(t, code, []string{"op_movie"}, DefaultOptions())
	require.Len(t, listing.Instructions, 1)
	inst := listing.Instructions[0]
	assert.Equal(t, "Movie", inst.Mnemonic)
	assert.Equal(t, []string{"0", "0", "0", "10", "20", "op_movie"}, inst.Args)
	assert.Equal(t, 18, inst.Size)
}

func TestDecode_MovieMissingClosingBytes(t *testing.T) {
	code := cat(
		[]byte{0x0E, 0x74}, i16le(0), i16le(0), i16le(0), i16le(10), i16le(20),
		i32le(0), []byte{0x00, 0x00},
	)
	err := decodeErr(code, []string{"op_movie"}, DefaultOptions())
	assert.True(t, errors.Is(err, interrors.ErrDecode))
	assert.Contains(t, err.Error(), "closing bytes")
}

func TestDecode_SkipStop(t *testing.T) {
	listing := decodeCode(t, []byte{0x0E, 0x6A}, nil, DefaultOptions())
	assert.Equal(t, []string{"SkipStop", "AnimeFullOn"}, listing.Lines())
	assert.Equal(t, 1, listing.Instructions[0].Size)
}

func TestDecode_FlagSetForms(t *testing.T) {
	listing := decodeCode(t, []byte{0x1E, 0x05, 0x07, 0x00, 0x41}, nil, DefaultOptions())
	require.Len(t, listing.Instructions, 1)
	assert.Equal(t, "Opcode_1E 5 7", listing.Instructions[0].String())
	assert.Equal(t, 5, listing.Instructions[0].Size)

	listing = decodeCode(t, cat([]byte{0x1E, 0x3F, 0x03, 0x00}, i32le(10)), nil, DefaultOptions())
	assert.Equal(t, []string{"FlagSet g3 10"}, listing.Lines())
	assert.Equal(t, 8, listing.Instructions[0].Size)
}

func TestDecode_F2FRand(t *testing.T) {
	// the word after the first operand is printed but not consumed
	code := []byte{0x37, 0x41, 0x05, 0x00, 0x00, 0x00, 0x3F, 0x02, 0x00, 0x6A}
	listing := decodeCode(t, code, nil, DefaultOptions())
	require.Len(t, listing.Instructions, 2)
	assert.Equal(t, []string{"5", "1778385471", "g2"}, listing.Instructions[0].Args)
	assert.Equal(t, 9, listing.Instructions[0].Size)
	assert.Equal(t, "AnimeFullOn", listing.Instructions[1].Mnemonic)
}

func TestDecode_CgMidClearForms(t *testing.T) {
	listing := decodeCode(t, []byte{0x4D, 0x03}, nil, DefaultOptions())
	assert.Equal(t, []string{"CgMidClear 3"}, listing.Lines())

	all := cat([]byte{0x4D}, midClearAll)
	listing = decodeCode(t, cat(all, []byte{0x6A}), nil, DefaultOptions())
	assert.Equal(t, []string{"CgMidClearAll", "AnimeFullOn"}, listing.Lines())
	assert.Equal(t, 20, listing.Instructions[0].Size)

	listing = decodeCode(t, cat(all, []byte{0x46}, i32le(0)), []string{"bg_black"}, DefaultOptions())
	assert.Equal(t, []string{"CgFullMidClear bg_black"}, listing.Lines())
	assert.Equal(t, 25, listing.Instructions[0].Size)
}

func TestDecode_ColorFlashEffects(t *testing.T) {
	fields := func(last int32) []byte {
		return cat(i32le(0), i32le(0), i32le(0), i32le(220), i32le(220), i32le(220), i32le(last))
	}

	listing := decodeCode(t, cat([]byte{0x4F}, fields(200), []byte{0x4E, 0x17}), nil, DefaultOptions())
	assert.Equal(t, []string{"Effect Z"}, listing.Lines())
	assert.Equal(t, 31, listing.Instructions[0].Size)

	listing = decodeCode(t, cat([]byte{0x4F}, fields(10), []byte{0x4E, 0x15}), nil, DefaultOptions())
	assert.Equal(t, []string{"Effect ]"}, listing.Lines())

	listing = decodeCode(t, cat([]byte{0x4F}, fields(50)), nil, DefaultOptions())
	assert.Equal(t, []string{"Effect 0 0 0 220 220 220 50"}, listing.Lines())

	listing = decodeCode(t, cat([]byte{0x4F}, i32le(1), i32le(2), i32le(3), i32le(4), i32le(5), i32le(6), i32le(7)), nil, DefaultOptions())
	assert.Equal(t, []string{"CModeFlash 1 2 3 4 5 6 7"}, listing.Lines())
	assert.Equal(t, 29, listing.Instructions[0].Size)
}

func TestDecode_ShakeEffects(t *testing.T) {
	listing := decodeCode(t, cat([]byte{0x51}, i16le(0), i16le(30), i16le(80), i16le(400)), nil, DefaultOptions())
	assert.Equal(t, []string{"Effect ["}, listing.Lines())

	listing = decodeCode(t, cat([]byte{0x51}, i16le(30), i16le(0), i16le(80), i16le(400)), nil, DefaultOptions())
	assert.Equal(t, []string{`Effect \`}, listing.Lines())

	listing = decodeCode(t, cat([]byte{0x51}, i16le(5), i16le(5), i16le(80), i16le(400)), nil, DefaultOptions())
	assert.Equal(t, []string{"EffectShake 5 5 80 400"}, listing.Lines())
	assert.Equal(t, 9, listing.Instructions[0].Size)
}

func TestDecode_PatternEffects(t *testing.T) {
	strs := []string{"pef_clo", "pef_cir", "pef_wipe"}
	code := cat([]byte{0x52}, i32le(0), []byte{0x52}, i32le(1), []byte{0x52}, i32le(2))
	listing := decodeCode(t, code, strs, DefaultOptions())
	assert.Equal(t, []string{"Effect ^", "Effect _", "EffectPattern pef_wipe"}, listing.Lines())
}

func TestDecode_ColorMode(t *testing.T) {
	listing := decodeCode(t, cat([]byte{0x58}, i32le(2), []byte{1, 2, 3}), nil, DefaultOptions())
	assert.Equal(t, []string{"ColorModeLight 2 1 2 3"}, listing.Lines())

	listing = decodeCode(t, cat([]byte{0x58}, i32le(7), []byte{0, 0, 255}), nil, DefaultOptions())
	assert.Equal(t, []string{"ColorMode 7 0 0 255"}, listing.Lines())
}

func TestDecode_SelectPrint(t *testing.T) {
	strs := []string{"Stay", "Leave"}
	listing := decodeCode(t, cat([]byte{0xC8, 0x02}, i32le(0), i32le(1)), strs, DefaultOptions())
	assert.Equal(t, []string{"SelectPrint Stay Leave"}, listing.Lines())
	assert.Equal(t, 10, listing.Instructions[0].Size)
}

func TestDecode_ProgramAndReturnTitle(t *testing.T) {
	code := cat([]byte{0xF0}, i32le(1), i32le(2))

	listing := decodeCode(t, code, nil, DefaultOptions())
	assert.Equal(t, []string{"Program 1 2"}, listing.Lines())

	opts := DefaultOptions()
	opts.LegacyReturnTitle = true
	listing = decodeCode(t, code, nil, opts)
	assert.Equal(t, []string{"ReturnTitle 1 0"}, listing.Lines())
	assert.Equal(t, 9, listing.Instructions[0].Size)
}

func TestDecode_UnnamedRecords(t *testing.T) {
	strs := []string{"a", "b", "c"}
	code := cat(
		[]byte{0xE6}, i32le(4), i32le(0), i32le(1), i32le(2), i32le(0),
		[]byte{0xE9}, i32le(2), i32le(1),
	)
	listing := decodeCode(t, code, strs, DefaultOptions())
	assert.Equal(t, []string{"Opcode_E6 4 a b c", "Opcode_E9 c"}, listing.Lines())
	assert.Equal(t, 21, listing.Instructions[0].Size)
	assert.Equal(t, 9, listing.Instructions[1].Size)
}

func TestDecode_UnsignedBytes(t *testing.T) {
	listing := decodeCode(t, []byte{0x5A, 0xFF}, nil, DefaultOptions())
	assert.Equal(t, []string{"MusicPlay 255"}, listing.Lines())
}

func TestCheckTableVersion(t *testing.T) {
	assert.NoError(t, CheckTableVersion(""))
	assert.NoError(t, CheckTableVersion(">= 1.0"))
	assert.NoError(t, CheckTableVersion("~> 1.2"))

	err := CheckTableVersion(">= 2.0")
	assert.True(t, errors.Is(err, interrors.ErrIncompatibleOpcodeTable))

	err = CheckTableVersion("not a constraint")
	assert.True(t, errors.Is(err, interrors.ErrValidation))
}
