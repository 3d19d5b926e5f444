// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/dotandev/fewdat/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	daemonPort      string
	daemonAuthToken string
	daemonMaxBody   int64
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start JSON-RPC server exposing the codec",
	Long: `Start a JSON-RPC 2.0 server at /rpc so editors and other tools can use the
codec without touching the file system. Binary payloads are base64 strings.

Methods:
  - Codec.Decrypt  {data}              -> {data, size}
  - Codec.Decode   {data, permissive?} -> {lines, listing, metadata, ...}
  - Codec.Encrypt  {lines, metadata}   -> {data}
  - Codec.Version  {}                  -> {version, table_version}

GET /health reports liveness. Tracing follows the global --tracing flag.

Example:
  fewdat daemon --port 8080
  fewdat daemon --port 8080 --auth-token secret123`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := daemon.NewServer(daemon.Config{
			Port:         daemonPort,
			AuthToken:    daemonAuthToken,
			Options:      cfg.ScriptOptions(),
			MaxBodyBytes: daemonMaxBody,
			Version:      Version,
		})

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Starting fewdat daemon on port %s\n", daemonPort)
		if daemonAuthToken != "" {
			fmt.Fprintln(out, "Authentication: enabled")
		}
		if cfg.Tracing {
			fmt.Fprintf(out, "Tracing: %s\n", cfg.OTLPURL)
		}

		// Start returns once the root context is cancelled by a signal
		return server.Start(cmd.Context(), daemonPort)
	},
}

func init() {
	daemonCmd.Flags().StringVarP(&daemonPort, "port", "p", "8080", "Port to listen on")
	daemonCmd.Flags().StringVar(&daemonAuthToken, "auth-token", "", "Authentication token for API access")
	daemonCmd.Flags().Int64Var(&daemonMaxBody, "max-body", daemon.DefaultMaxBodyBytes, "Maximum request body size in bytes")

	rootCmd.AddCommand(daemonCmd)
}
