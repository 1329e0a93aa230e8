package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthub-dev/agenthub/internal/engine"
	"github.com/agenthub-dev/agenthub/internal/source"
	"github.com/agenthub-dev/agenthub/internal/target"
)

var installationsCmd = &cobra.Command{
	Use:   "installations",
	Short: "Show managed and detected packages per target",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		kind := source.KindSkill
		if applyHooks {
			kind = source.KindHook
		}

		installations, err := a.Engine.Installations(cmd.Context(), applyTargets, kind,
			target.Scope(applyScope), applyProject)
		if err != nil {
			return err
		}

		for _, inst := range installations {
			fmt.Printf("%s (%s)\n", inst.Target, inst.InstallPath)
			if len(inst.Packages) == 0 {
				fmt.Println("  (empty)")
				continue
			}
			for _, p := range inst.Packages {
				switch p.Status {
				case engine.StatusManaged:
					flags := string(p.EffectiveMode)
					if p.Orphaned {
						flags += ", orphaned"
					}
					if !p.Installed {
						flags += ", missing on disk"
					}
					fmt.Printf("  %-24s managed (%s)\n", p.Name, flags)
				default:
					fmt.Printf("  %-24s detected, not managed\n", p.Name)
				}
			}
		}
		return nil
	},
}

func init() {
	installationsCmd.Flags().StringSliceVar(&applyTargets, "targets", nil, "targets to query (default: all)")
	installationsCmd.Flags().StringVar(&applyScope, "scope", "user", "user or project")
	installationsCmd.Flags().StringVar(&applyProject, "project", "", "absolute project path (scope=project)")
	installationsCmd.Flags().BoolVar(&applyHooks, "hooks", false, "query hook installations")
	rootCmd.AddCommand(installationsCmd)
}
