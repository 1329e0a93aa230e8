package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agenthub-dev/agenthub/internal/app"
	"github.com/agenthub-dev/agenthub/internal/logging"
)

var Version = "dev"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "agenthub",
	Short: "Skill and hook package distribution for AI coding tools",
	Long: `agenthub distributes skill and hook packages from registered git
sources into the configuration directories of AI coding tools (Claude
Code, Codex, Cursor, OpenCode) and keeps those installations in sync
with your selection.

Run "agenthub serve" to start the local daemon with its HTTP API and
event stream, or use the subcommands directly.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// newApp wires a full engine instance for a CLI invocation.
func newApp() (*app.App, error) {
	log := logging.New(os.Stderr, logLevel)
	return app.New(log)
}
