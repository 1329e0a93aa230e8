package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthub-dev/agenthub/internal/source"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage registered package sources",
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		for _, v := range a.Registry.Views() {
			status := "enabled"
			if !v.Enabled {
				status = "disabled"
			}
			fmt.Printf("%-20s %-8s %s\n", v.ID, status, v.RepoURL)
			if v.LastError != "" {
				fmt.Printf("%20s last error: %s\n", "", v.LastError)
			}
		}
		return nil
	},
}

var (
	addSkillsRoot string
	addHooksRoot  string
	addToken      string
	addTransport  string
	addName       string
)

var sourceAddCmd = &cobra.Command{
	Use:   "add <id> <repo-url>",
	Short: "Register a new source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		src, err := a.Registry.Register(source.RegisterSpec{
			ID:         args[0],
			Name:       addName,
			RepoURL:    args[1],
			Transport:  source.Transport(addTransport),
			SkillsRoot: addSkillsRoot,
			HooksRoot:  addHooksRoot,
			Token:      addToken,
		})
		if err != nil {
			return err
		}

		check := a.Syncer.AuthCheck(cmd.Context(), src)
		if !check.OK {
			fmt.Printf("Registered %s, but the auth check failed: %s\n", src.ID, check.Message)
			return nil
		}
		fmt.Printf("Registered %s (%s)\n", src.ID, src.RepoURL)
		return nil
	},
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		src, err := a.Registry.Remove(args[0])
		if err != nil {
			return err
		}
		if err := a.Syncer.RemoveWorkingCopy(src); err != nil {
			fmt.Printf("Warning: working copy cleanup failed: %v\n", err)
		}
		fmt.Printf("Removed %s\n", src.ID)
		return nil
	},
}

var sourceRefreshCmd = &cobra.Command{
	Use:   "refresh <id>",
	Short: "Sync a source's working copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		src, err := a.Registry.Get(args[0])
		if err != nil {
			return err
		}
		res, err := a.Syncer.Sync(cmd.Context(), src)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %s at %s\n", src.ID, res.Revision)
		return nil
	},
}

func init() {
	sourceAddCmd.Flags().StringVar(&addSkillsRoot, "skills-root", "", "skills content root inside the repo")
	sourceAddCmd.Flags().StringVar(&addHooksRoot, "hooks-root", "", "hooks content root inside the repo")
	sourceAddCmd.Flags().StringVar(&addToken, "token", "", "access token for private repos")
	sourceAddCmd.Flags().StringVar(&addTransport, "transport", "", "https or ssh")
	sourceAddCmd.Flags().StringVar(&addName, "name", "", "display name")

	sourceCmd.AddCommand(sourceListCmd, sourceAddCmd, sourceRemoveCmd, sourceRefreshCmd)
	rootCmd.AddCommand(sourceCmd)
}
