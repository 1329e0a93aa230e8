package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agenthub-dev/agenthub/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agenthub daemon (HTTP API + event stream)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		// The daemon is useless and unsafe without its shared secret;
		// refuse to start instead of serving unauthenticated.
		if err := a.Settings.ValidateForServe(); err != nil {
			return fmt.Errorf("startup: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.New(a).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
