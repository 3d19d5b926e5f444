// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package dat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/dotandev/fewdat/internal/cipher"
	interrors "github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/script"
	"github.com/dotandev/fewdat/internal/strtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// sampleCode is a small instruction stream starting at offset 12:
//
//	12 Goto 44
//	17 SoundEffectPlay strings[0]
//	22 TextOut 1 2 3 4 strings[1]
//	44 AnimeFullOn
func sampleCode() []byte {
	return bytes.Join([][]byte{
		{0x0B}, le32(44),
		{0x5D}, le32(0),
		{0x8E}, le32(1), le32(2), le32(3), le32(4), {0x45}, le32(1),
		{0x6A},
	}, nil)
}

// buildScript lays out a decrypted script with header, code, garbage and a
// null-terminated string table padded to a multiple of four bytes.
func buildScript(t *testing.T, code, garbage []byte, lines []string) []byte {
	t.Helper()
	garbageOffset := uint32(HeaderSize + len(code))
	tableOffset := garbageOffset + uint32(len(garbage))

	var buf bytes.Buffer
	buf.Write(le32(garbageOffset))
	buf.Write(le32(tableOffset))
	buf.Write([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	buf.Write(code)
	buf.Write(garbage)
	for _, line := range lines {
		b, err := strtable.EncodeShiftJIS(line)
		require.NoError(t, err)
		buf.Write(b)
		buf.WriteByte(0)
	}
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

var sampleLines = []string{"se_01", "こんにちは"}

func TestDecode_Sample(t *testing.T) {
	plain := buildScript(t, sampleCode(), []byte{0xDE, 0xAD}, sampleLines)
	snapshot := append([]byte(nil), plain...)

	res, err := Decode(plain, script.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, Header{GarbageOffset: 45, StringTableOffset: 47}, res.Header)
	assert.Equal(t, sampleLines, res.Strings.Lines())
	assert.Equal(t, []string{
		"Goto Label_0",
		"SoundEffectPlay se_01",
		"TextOut 1 2 3 4 こんにちは",
		"Label Label_0:",
		"AnimeFullOn",
	}, res.Listing.Lines())

	require.Len(t, res.Capture, 47)
	assert.Equal(t, []byte{0, 0, 0, 0}, res.Capture[4:8])
	assert.Equal(t, plain[:4], res.Capture[:4])
	assert.Equal(t, plain[8:47], res.Capture[8:])

	res.Capture[20] ^= 0xFF
	assert.Equal(t, snapshot, plain, "decode must not modify or alias its input")
}

func TestRoundTrip_BitExact(t *testing.T) {
	cases := []struct {
		name    string
		garbage []byte
		lines   []string
	}{
		{"sample", []byte{0xDE, 0xAD}, sampleLines},
		{"no garbage", nil, sampleLines},
		{"single string", []byte{1}, []string{"se_01", "x"}},
		{"empty entry", []byte{1, 2}, []string{"se_01", "", "tail"}},
		{"long text", []byte{9, 9, 9, 9}, []string{"se_01", "あいうえおかきくけこさしすせそ", "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plain := buildScript(t, sampleCode(), tc.garbage, tc.lines)
			container := cipher.Encrypt(plain)

			res, err := Open(container, script.DefaultOptions())
			require.NoError(t, err)

			rebuilt, err := Encrypt(res.Strings.Lines(), res.Capture)
			require.NoError(t, err)
			assert.Equal(t, container, rebuilt)
		})
	}
}

func TestRoundTrip_ThroughTextFile(t *testing.T) {
	plain := buildScript(t, sampleCode(), []byte{0xDE, 0xAD}, sampleLines)
	container := cipher.Encrypt(plain)

	res, err := Open(container, script.DefaultOptions())
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, strtable.WriteLines(&text, res.Strings.Lines()))
	lines, err := strtable.ReadLines(&text)
	require.NoError(t, err)

	rebuilt, err := Encrypt(lines, res.Capture)
	require.NoError(t, err)
	assert.Equal(t, container, rebuilt)
}

func TestRoundTrip_AnySeedKey(t *testing.T) {
	plain := buildScript(t, sampleCode(), []byte{0xDE, 0xAD}, sampleLines)
	key := cipher.Key{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 6}
	container := cipher.EncryptWithKey(plain, key)

	res, err := Open(container, script.DefaultOptions())
	require.NoError(t, err)
	rebuilt, err := Encrypt(res.Strings.Lines(), res.Capture)
	require.NoError(t, err)

	// the rebuilt container carries a zero seed but decrypts to the same script
	decrypted, err := Decrypt(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, plain, decrypted)
}

func TestEncrypt_EditedText(t *testing.T) {
	plain := buildScript(t, sampleCode(), []byte{0xDE, 0xAD}, sampleLines)
	res, err := Decode(plain, script.DefaultOptions())
	require.NoError(t, err)

	edited := []string{"se_01", "Hello there, a much longer line\r\n"}
	container, err := Encrypt(edited, res.Capture)
	require.NoError(t, err)

	again, err := Open(container, script.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, uint32(47), again.Header.StringTableOffset)
	assert.Equal(t, []string{"se_01", "Hello there, a much longer line"}, again.Strings.Lines())
	assert.Equal(t, "TextOut 1 2 3 4 Hello there, a much longer line", again.Listing.Lines()[2])
	assert.Equal(t, res.Capture, again.Capture)
	assert.Zero(t, (len(container)-cipher.HeaderSize)%4)
}

func TestEncrypt_DoesNotModifyCapture(t *testing.T) {
	plain := buildScript(t, sampleCode(), nil, sampleLines)
	res, err := Decode(plain, script.DefaultOptions())
	require.NoError(t, err)

	capture := append([]byte(nil), res.Capture...)
	_, err = Encrypt(sampleLines, res.Capture)
	require.NoError(t, err)
	assert.Equal(t, capture, res.Capture)
}

func TestEncrypt_Failures(t *testing.T) {
	_, err := Encrypt(sampleLines, nil)
	assert.True(t, errors.Is(err, interrors.ErrMissingSidecar))

	_, err = Encrypt(sampleLines, []byte{1, 2, 3})
	assert.True(t, errors.Is(err, interrors.ErrMalformedContainer))

	capture := make([]byte, 16)
	_, err = Encrypt([]string{"\U0001F600"}, capture)
	assert.True(t, errors.Is(err, interrors.ErrEncodeFailed))
}

func TestParseHeader_Invalid(t *testing.T) {
	_, err := ParseHeader(make([]byte, 8))
	assert.True(t, errors.Is(err, interrors.ErrMalformedContainer))

	tests := []struct {
		name            string
		garbage, strOff uint32
	}{
		{"garbage inside header", 12, 20},
		{"garbage after table", 30, 20},
		{"table past end", 16, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain := make([]byte, 64)
			binary.LittleEndian.PutUint32(plain[0:], tt.garbage)
			binary.LittleEndian.PutUint32(plain[4:], tt.strOff)
			_, err := ParseHeader(plain)
			assert.True(t, errors.Is(err, interrors.ErrMalformedContainer))
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open([]byte{0, 0, 0, 1}, script.DefaultOptions())
	assert.True(t, errors.Is(err, interrors.ErrMalformedContainer))

	code := []byte{0x6A, 0x01}
	container := cipher.Encrypt(buildScript(t, code, nil, []string{"a"}))
	_, err = Open(container, script.DefaultOptions())
	assert.True(t, errors.Is(err, interrors.ErrUnknownOpcode))
}

func TestOpen_InvalidShiftJISFailsBeforeWritingText(t *testing.T) {
	plain := buildScript(t, sampleCode(), nil, []string{"se_01", "AxB"})
	h, err := ParseHeader(plain)
	require.NoError(t, err)
	plain[h.StringTableOffset+7] = 0x80

	_, err = Open(cipher.Encrypt(plain), script.DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, interrors.ErrDecode))
	assert.Contains(t, err.Error(), "string 1 at table offset 0x6")
}
