package cmd

import (
	"fmt"

	"github.com/dotandev/fewdat/internal/script"
	"github.com/spf13/cobra"
)

var (
	// Version will be set by the main package
	Version = "dev"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fewdat",
	Long:  `Display the CLI version and the version of the built-in opcode table.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fewdat version %s\n", Version)
		fmt.Fprintf(out, "opcode table %s\n", script.TableVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
