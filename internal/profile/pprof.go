// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package profile turns a decoded listing into a pprof profile of opcode
// usage, so `go tool pprof` can show which instructions and which labelled
// regions dominate a script.
package profile

import (
	"fmt"
	"io"

	"github.com/dotandev/fewdat/internal/script"
	"github.com/google/pprof/profile"
)

const (
	SampleTypeInstructions = "instructions"
	SampleUnitCount        = "count"
	SampleTypeBytes        = "bytes"
	SampleUnitBytes        = "bytes"

	// EntryRegion names code that precedes the first label.
	EntryRegion = "entry"
)

// ListingToPprof builds a profile with one sample per instruction. Each
// sample's stack is the instruction mnemonic called from the label region
// that contains it.
func ListingToPprof(listing *script.Listing, file string) (*profile.Profile, error) {
	if listing == nil {
		return nil, fmt.Errorf("listing is nil")
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: SampleTypeInstructions, Unit: SampleUnitCount},
			{Type: SampleTypeBytes, Unit: SampleUnitBytes},
		},
		DefaultSampleType: SampleTypeBytes,
		Mapping: []*profile.Mapping{
			{ID: 1, File: file, HasFunctions: true},
		},
	}
	mapping := p.Mapping[0]

	funcs := make(map[string]*profile.Function)
	function := func(name string) *profile.Function {
		fn, ok := funcs[name]
		if !ok {
			fn = &profile.Function{ID: uint64(len(p.Function) + 1), Name: name, SystemName: name, Filename: file}
			p.Function = append(p.Function, fn)
			funcs[name] = fn
		}
		return fn
	}
	location := func(fn *profile.Function, offset int) *profile.Location {
		loc := &profile.Location{
			ID:      uint64(len(p.Location) + 1),
			Mapping: mapping,
			Address: uint64(offset),
			Line:    []profile.Line{{Function: fn, Line: int64(offset)}},
		}
		p.Location = append(p.Location, loc)
		return loc
	}

	region := location(function(EntryRegion), script.CodeStart)
	for i := range listing.Instructions {
		inst := &listing.Instructions[i]
		if inst.IsLabel() {
			region = location(function(inst.Args[0]), inst.Offset)
			continue
		}
		leaf := location(function(inst.Mnemonic), inst.Offset)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{leaf, region},
			Value:    []int64{1, int64(inst.Size)},
			Label:    map[string][]string{"opcode": {fmt.Sprintf("0x%02X", inst.Opcode)}},
		})
	}

	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}
	return p, nil
}

// WritePprof writes the listing profile to w as gzip-compressed protobuf.
func WritePprof(listing *script.Listing, file string, w io.Writer) error {
	p, err := ListingToPprof(listing, file)
	if err != nil {
		return err
	}
	return p.Write(w)
}
