// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/dotandev/fewdat/internal/batch"
	"github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/dotandev/fewdat/internal/terminal"
	"github.com/spf13/cobra"
)

var (
	outputDirFlag string
	workersFlag   int
	metadataFlag  string
	noHistoryFlag bool
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <file.dat>...",
	Short: "Write the decrypted bytes of a script or definition file",
	Long: `Remove the container cipher and write <name>.dat with the plaintext.

Decrypting into the input's own directory would overwrite it, so an output
directory is required in that case.`,
	Example: `  fewdat decrypt sys_define.dat -o plain/`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, batch.ActionDecrypt)
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <file_sce.dat>...",
	Short: "Decode scripts into text, listing and metadata",
	Long: `Decrypt and decode each script, writing <name>.txt (Shift-JIS, one line per
string), <name>.lst (instruction listing) and <name>_metadata.dat.

Keep the metadata file next to the text file: encrypt needs it.`,
	Example: `  fewdat decode ev01_sce.dat
  fewdat decode --permissive -o work/ data/*_sce.dat`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, batch.ActionDecode)
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <file_sce.txt>...",
	Short: "Rebuild scripts from edited text and metadata",
	Long: `Rebuild <name>.dat from <name>.txt and the <name>_metadata.dat written by
decode. The metadata is looked up next to the text file unless --metadata
is given.

Writing next to the text file is refused when <name>.dat already exists
there, so the original script is never replaced; pass -o instead.`,
	Example: `  fewdat encrypt work/ev01_sce.txt -o patched/
  fewdat encrypt ev01_sce.txt --metadata backup/ev01_sce_metadata.dat -o patched/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if metadataFlag != "" && len(args) > 1 {
			return errors.WrapValidationError("--metadata applies to a single input file")
		}
		return runBatch(cmd, args, batch.ActionEncrypt)
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>...",
	Short: "Convert files, choosing the action from each file name",
	Long: `Route every input by name:
  *_sce.dat     decode
  *_define.dat  decrypt
  *_sce.txt     encrypt with the sibling *_sce_metadata.dat

Other files are reported and skipped. A failing file never stops the rest.`,
	Example: `  fewdat convert data/*.dat -o work/ -j 8
  fewdat convert work/*_sce.txt -o patched/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, "")
	},
}

func runBatch(cmd *cobra.Command, paths []string, action batch.Action) error {
	opts := batch.Options{
		OutputDir: cfg.OutputDir,
		Workers:   cfg.Workers,
		Script:    cfg.ScriptOptions(),
		Metadata:  metadataFlag,
		Action:    action,
	}
	if cmd.Flags().Changed("output") {
		opts.OutputDir = outputDirFlag
	}
	if cmd.Flags().Changed("workers") {
		if workersFlag < 1 {
			return errors.WrapValidationError("--workers must be at least 1")
		}
		opts.Workers = workersFlag
	}

	if !noHistoryFlag {
		store, closeStore, err := openHistory(cmd.Context())
		if err != nil {
			logger.Logger.Warn("Job history disabled", "error", err)
		} else {
			defer closeStore()
			opts.Recorder = store
		}
	}

	results := batch.Run(cmd.Context(), paths, opts)
	printSummary(terminal.NewANSIRenderer(cmd.OutOrStdout()), results)

	if n := batch.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(results))
	}
	return nil
}

func addBatchFlags(c *cobra.Command) {
	c.Flags().StringVarP(&outputDirFlag, "output", "o", "", "Output directory (default: next to each input)")
	c.Flags().IntVarP(&workersFlag, "workers", "j", 1, "Number of files processed concurrently")
	c.Flags().BoolVar(&noHistoryFlag, "no-history", false, "Do not record jobs in the history database")
}

func init() {
	for _, c := range []*cobra.Command{decryptCmd, decodeCmd, encryptCmd, convertCmd} {
		addBatchFlags(c)
		rootCmd.AddCommand(c)
	}
	encryptCmd.Flags().StringVar(&metadataFlag, "metadata", "", "Metadata file to rebuild from")
}
