package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthub-dev/agenthub/internal/source"
)

var catalogRefresh bool

var catalogCmd = &cobra.Command{
	Use:       "catalog [skills|hooks]",
	Short:     "Show the merged package catalog",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"skills", "hooks"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := source.KindSkill
		if len(args) == 1 && args[0] == "hooks" {
			kind = source.KindHook
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		cat, err := a.Builder.Build(cmd.Context(), kind, catalogRefresh)
		if err != nil {
			return err
		}

		if cat.Stale {
			fmt.Printf("(stale: %s)\n", cat.StaleReason)
		}
		for _, e := range cat.Entries {
			version := e.Version
			if version == "" {
				version = "-"
			}
			fmt.Printf("%-30s %-12s %-10s %s\n", e.PackageID, e.Category, version, e.Description)
		}
		fmt.Printf("%d packages from %d sources\n", len(cat.Entries), len(cat.Sources))
		return nil
	},
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogRefresh, "refresh", false, "resync sources before building")
	rootCmd.AddCommand(catalogCmd)
}
