// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotandev/fewdat/internal/config"
	"github.com/dotandev/fewdat/internal/crashreport"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/dotandev/fewdat/internal/script"
	"github.com/dotandev/fewdat/internal/shutdown"
	"github.com/dotandev/fewdat/internal/telemetry"
	"github.com/spf13/cobra"
)

// Global flag variables
var (
	logLevelFlag          string
	permissiveFlag        bool
	legacyReturnTitleFlag bool
	backwardLabelsFlag    bool
	opcodeTableFlag       string
	tracingFlag           bool
)

// cfg is the configuration of the running command, set by PersistentPreRunE.
var cfg = config.DefaultConfig()

// crashReporter and activeCommand are set once the config is loaded.
var (
	crashReporter *crashreport.Reporter
	activeCommand string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fewdat",
	Short: "FEW engine script decrypter, decoder and rebuilder",
	Long: `fewdat converts FEW engine ".dat" scripts into editable text and back.

Decoding a *_sce.dat script writes three files next to each other:
  <name>.txt           the string table, one Shift-JIS line per entry
  <name>.lst           a readable instruction listing with labels
  <name>_metadata.dat  the bytes needed to rebuild the script

Editing <name>.txt and encrypting it again produces a script the engine
accepts, as long as the number of lines does not change.

Examples:
  fewdat decode ev01_sce.dat -o work/          Decode one script
  fewdat encrypt work/ev01_sce.txt -o patched/ Rebuild it after editing
  fewdat convert data/*.dat -j 8 -o work/      Route a whole folder by name
  fewdat history list                          Show recent conversions`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig merges defaults, config files, environment and flags.
func loadConfig(cmd *cobra.Command) error {
	c, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.LogLevel = logLevelFlag
	}
	if flags.Changed("permissive") {
		c.Permissive = permissiveFlag
	}
	if flags.Changed("legacy-return-title") {
		c.LegacyReturnTitle = legacyReturnTitleFlag
	}
	if flags.Changed("backward-labels") {
		c.BackwardLabels = backwardLabelsFlag
	}
	if flags.Changed("config-opcodes") {
		c.OpcodeTable = opcodeTableFlag
	}
	if flags.Changed("tracing") {
		c.Tracing = tracingFlag
	}
	if err := c.Validate(); err != nil {
		return err
	}

	logger.SetLevel(logger.ParseLevel(c.LogLevel))
	logger.Logger.Debug("Configuration loaded", "config", c.String())
	cfg = c
	activeCommand = cmd.CommandPath()
	crashReporter = crashreport.New(crashreport.FromConfig(c, Version, script.TableVersion))

	if c.Tracing {
		cleanup, err := telemetry.Init(cmd.Context(), telemetry.Config{
			Enabled:        true,
			ExporterURL:    c.OTLPURL,
			ServiceName:    "fewdat",
			ServiceVersion: Version,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		registerShutdownHook("telemetry", func(ctx context.Context) error {
			cleanup()
			return nil
		})
	}
	return nil
}

// Execute runs the root command with interrupt handling. This is called by
// main.main().
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return executeWithSignals(ctx, cancel, sigCh, shutdown.NewCoordinator(), executeReported)
}

// executeReported runs the root command and reports panics when the user
// opted in to crash reporting.
func executeReported(ctx context.Context) error {
	defer func() {
		if v := recover(); v != nil {
			if crashReporter != nil {
				crashReporter.ReportPanic(ctx, v, activeCommand)
			}
			panic(v)
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// executeWithSignals runs fn and cancels its context on the first signal.
// Shutdown hooks always run before it returns.
func executeWithSignals(
	ctx context.Context,
	cancel context.CancelFunc,
	sigCh <-chan os.Signal,
	coordinator *shutdown.Coordinator,
	fn func(context.Context) error,
) error {
	setShutdownCoordinator(coordinator)
	defer clearShutdownCoordinator()
	defer runShutdownHooksWithTimeout(coordinator, shutdownTimeout)

	interrupted := make(chan struct{})
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Logger.Info("Received signal, shutting down", "signal", sig.String())
			close(interrupted)
			cancel()
		case <-done:
		}
	}()

	err := fn(ctx)

	select {
	case <-interrupted:
		return ErrInterrupted
	default:
		return err
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&permissiveFlag, "permissive", false,
		"Skip unknown opcodes instead of failing the decode")
	rootCmd.PersistentFlags().BoolVar(&legacyReturnTitleFlag, "legacy-return-title", false,
		"Decode opcode 0xF0 as ReturnTitle (older titles)")
	rootCmd.PersistentFlags().BoolVar(&backwardLabelsFlag, "backward-labels", true,
		"Insert markers for labels whose target was decoded before the jump")
	rootCmd.PersistentFlags().StringVar(&opcodeTableFlag, "config-opcodes", "",
		"Version constraint the built-in opcode table must satisfy, e.g. \">= 1.2\"")
	rootCmd.PersistentFlags().BoolVar(&tracingFlag, "tracing", false,
		"Export OpenTelemetry traces to the configured OTLP endpoint")
}
