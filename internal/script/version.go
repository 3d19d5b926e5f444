// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"fmt"

	"github.com/dotandev/fewdat/internal/errors"
	"github.com/hashicorp/go-version"
)

// TableVersion identifies the built-in opcode table. Bump the minor version
// when opcodes are added and the major version when an existing decode rule
// changes its output.
const TableVersion = "1.2.0"

// CheckTableVersion verifies that the built-in table satisfies constraint,
// e.g. ">= 1.1, < 2". An empty constraint always passes.
func CheckTableVersion(constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := version.NewConstraint(constraint)
	if err != nil {
		return errors.WrapValidationError(fmt.Sprintf("invalid opcode table constraint %q: %v", constraint, err))
	}
	have, err := version.NewVersion(TableVersion)
	if err != nil {
		return fmt.Errorf("invalid built-in table version: %w", err)
	}
	if !c.Check(have) {
		return errors.WrapIncompatibleOpcodeTable(TableVersion, constraint)
	}
	return nil
}
