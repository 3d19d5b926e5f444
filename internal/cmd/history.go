// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dotandev/fewdat/internal/history"
	"github.com/dotandev/fewdat/internal/terminal"
	"github.com/spf13/cobra"
)

var (
	historyLimitFlag int
	historyJSONFlag  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear past conversion jobs",
	Long: `Every decode, decrypt and encrypt job is recorded in a SQLite database
(history_path in the config, default ~/.fewdat/history.db). Records older than
90 days are pruned automatically.`,
	Example: `  # Show the 20 most recent jobs
  fewdat history list --limit 20

  # Machine-readable output
  fewdat history list --json

  # Forget everything
  fewdat history clear`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openHistory(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer closeStore()

		jobs, err := store.List(cmd.Context(), historyLimitFlag)
		if err != nil {
			return err
		}

		if historyJSONFlag {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if jobs == nil {
				jobs = []*history.Job{}
			}
			return enc.Encode(jobs)
		}

		r := terminal.NewANSIRenderer(cmd.OutOrStdout())
		if len(jobs) == 0 {
			r.Println("No jobs recorded.")
			return nil
		}
		for _, j := range jobs {
			mark := r.Success()
			if j.Status == history.StatusFailed {
				mark = r.Error()
			}
			r.Printf("%s %s  %-7s %s  %s\n", mark,
				j.StartedAt.Local().Format(time.DateTime),
				j.Action, filepath.Base(j.Input),
				r.Colorize(j.Duration.String(), "dim"))
			if j.Error != "" {
				r.Printf("    %s\n", r.Colorize(j.Error, "red"))
			}
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openHistory(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer closeStore()

		n, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs\n", n)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", history.DefaultListLimit, "Maximum number of jobs to show")
	historyListCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "Print jobs as JSON")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
