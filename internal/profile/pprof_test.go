// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"bytes"
	"testing"

	"github.com/dotandev/fewdat/internal/script"
	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleListing() *script.Listing {
	return &script.Listing{
		Instructions: []script.Instruction{
			{Offset: 12, Opcode: 0x0B, Mnemonic: "Goto", Args: []string{"Label_0"}, Size: 5},
			{Offset: 17, Opcode: 0x8E, Mnemonic: "TextOut", Args: []string{"0", "0", "0", "0", "hi"}, Size: 22},
			{Offset: 39, Mnemonic: script.MnemonicLabel, Args: []string{"Label_0"}},
			{Offset: 39, Opcode: 0x8E, Mnemonic: "TextOut", Args: []string{"0", "0", "0", "0", "bye"}, Size: 22},
			{Offset: 61, Opcode: 0x6A, Mnemonic: "AnimeFullOn", Size: 1},
		},
		Labels: []script.Label{{Name: "Label_0", Address: 39}},
	}
}

func TestListingToPprof_Nil(t *testing.T) {
	_, err := ListingToPprof(nil, "x")
	assert.Error(t, err)
}

func TestListingToPprof_Empty(t *testing.T) {
	p, err := ListingToPprof(&script.Listing{}, "empty_sce.dat")
	require.NoError(t, err)
	require.Len(t, p.SampleType, 2)
	assert.Equal(t, SampleTypeInstructions, p.SampleType[0].Type)
	assert.Equal(t, SampleTypeBytes, p.SampleType[1].Type)
	assert.Empty(t, p.Sample)
}

func TestListingToPprof_Samples(t *testing.T) {
	p, err := ListingToPprof(sampleListing(), "ev01_sce.dat")
	require.NoError(t, err)

	require.Len(t, p.Sample, 4, "label markers are not samples")
	assert.Equal(t, []int64{1, 5}, p.Sample[0].Value)
	assert.Equal(t, []int64{1, 22}, p.Sample[1].Value)
	assert.Equal(t, []string{"0x8E"}, p.Sample[1].Label["opcode"])

	stack := func(s *profile.Sample) []string {
		var names []string
		for _, loc := range s.Location {
			names = append(names, loc.Line[0].Function.Name)
		}
		return names
	}
	assert.Equal(t, []string{"Goto", EntryRegion}, stack(p.Sample[0]))
	assert.Equal(t, []string{"TextOut", "Label_0"}, stack(p.Sample[2]))
	assert.Equal(t, []string{"AnimeFullOn", "Label_0"}, stack(p.Sample[3]))

	// functions are shared between samples
	assert.Len(t, p.Function, 5)
	assert.Same(t, p.Sample[1].Location[0].Line[0].Function, p.Sample[2].Location[0].Line[0].Function)
}

func TestWritePprof_ParsesBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePprof(sampleListing(), "ev01_sce.dat", &buf))
	assert.Greater(t, buf.Len(), 0)

	p, err := profile.Parse(&buf)
	require.NoError(t, err)
	assert.Len(t, p.Sample, 4)
	var total int64
	for _, s := range p.Sample {
		total += s.Value[1]
	}
	assert.Equal(t, int64(50), total)
}
