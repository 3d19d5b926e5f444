// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotandev/fewdat/internal/batch"
	"github.com/dotandev/fewdat/internal/dat"
	"github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/profile"
	"github.com/spf13/cobra"
)

var profileOutFlag string

var profileCmd = &cobra.Command{
	Use:   "profile <file_sce.dat>",
	Short: "Write a pprof profile of opcode usage in a script",
	Long: `Decode a script and write a pprof profile with one sample per instruction.
Samples count instructions and bytes; each stack is the instruction's
mnemonic under the label region that contains it.`,
	Example: `  fewdat profile ev01_sce.dat
  go tool pprof -top -sample_index=bytes ev01_sce.pb.gz`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		action, err := batch.Route(path)
		if err != nil {
			return err
		}
		if action != batch.ActionDecode {
			return errors.WrapValidationError(fmt.Sprintf("%s is not a *_sce.dat script", filepath.Base(path)))
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		res, err := dat.Open(data, cfg.ScriptOptions())
		if err != nil {
			return err
		}

		out := profileOutFlag
		if out == "" {
			out = filepath.Join(filepath.Dir(path), batch.Stem(path)+".pb.gz")
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		if err := profile.WritePprof(res.Listing, filepath.Base(path), f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d instructions)\n", out, res.Listing.Count())
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVarP(&profileOutFlag, "output", "o", "", "Profile path (default <name>.pb.gz next to the script)")
	rootCmd.AddCommand(profileCmd)
}
