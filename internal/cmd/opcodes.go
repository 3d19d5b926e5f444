// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dotandev/fewdat/internal/script"
	"github.com/spf13/cobra"
)

var opcodesCmd = &cobra.Command{
	Use:   "opcodes",
	Short: "List the opcodes the decoder understands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "OPCODE\tMNEMONIC\tCATEGORY\n")
		for _, op := range script.Opcodes() {
			fmt.Fprintf(w, "0x%02X\t%s\t%s\n", op.Opcode, op.Mnemonic, op.Category)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(opcodesCmd)
}
