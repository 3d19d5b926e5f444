// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"path/filepath"
	"strings"

	"github.com/dotandev/fewdat/internal/errors"
)

// Action is what a batch job does with its input.
type Action string

const (
	// ActionDecode turns a *_sce.dat script into text, listing and metadata.
	ActionDecode Action = "decode"
	// ActionDecrypt writes the plaintext of a *_define.dat file.
	ActionDecrypt Action = "decrypt"
	// ActionEncrypt rebuilds a *_sce.dat script from edited text.
	ActionEncrypt Action = "encrypt"
)

// File name suffixes used for routing and outputs.
const (
	SceneSuffix    = "_sce"
	DefineSuffix   = "_define"
	MetadataSuffix = "_metadata"

	DatExt     = ".dat"
	TextExt    = ".txt"
	ListingExt = ".lst"
)

// Route picks the action for path from its name.
func Route(path string) (Action, error) {
	ext := strings.ToLower(filepath.Ext(path))
	stem := strings.ToLower(Stem(path))

	switch {
	case ext == DatExt && strings.HasSuffix(stem, MetadataSuffix):
		return "", errors.WrapUnsupportedFile(path)
	case ext == DatExt && strings.HasSuffix(stem, SceneSuffix):
		return ActionDecode, nil
	case ext == DatExt && strings.HasSuffix(stem, DefineSuffix):
		return ActionDecrypt, nil
	case ext == TextExt && strings.HasSuffix(stem, SceneSuffix):
		return ActionEncrypt, nil
	}
	return "", errors.WrapUnsupportedFile(path)
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MetadataPath returns the sidecar path for a script or text file: the
// sibling <stem>_metadata.dat.
func MetadataPath(path string) string {
	return filepath.Join(filepath.Dir(path), Stem(path)+MetadataSuffix+DatExt)
}
