package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthub-dev/agenthub/internal/engine"
	"github.com/agenthub-dev/agenthub/internal/source"
	"github.com/agenthub-dev/agenthub/internal/state"
	"github.com/agenthub-dev/agenthub/internal/target"
)

var (
	applyTargets []string
	applyScope   string
	applyProject string
	applyMode    string
	applyHooks   bool
)

func applyFlags(c *cobra.Command) {
	c.Flags().StringSliceVar(&applyTargets, "targets", nil, "targets to act on (default: all)")
	c.Flags().StringVar(&applyScope, "scope", "user", "user or project")
	c.Flags().StringVar(&applyProject, "project", "", "absolute project path (scope=project)")
	c.Flags().StringVar(&applyMode, "mode", "symlink", "symlink or copy")
	c.Flags().BoolVar(&applyHooks, "hooks", false, "operate on hook packages")
}

func runApply(cmd *cobra.Command, op engine.Operation, args []string, removeUnselected bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	kind := source.KindSkill
	if applyHooks {
		kind = source.KindHook
	}

	selection := make([]engine.Selection, 0, len(args))
	for _, arg := range args {
		if strings.Contains(arg, "/") {
			selection = append(selection, engine.Selection{PackageID: arg})
		} else {
			selection = append(selection, engine.Selection{PackageName: arg})
		}
	}

	report, err := a.Engine.Apply(cmd.Context(), op, engine.Request{
		Targets:          applyTargets,
		Kind:             kind,
		Scope:            target.Scope(applyScope),
		ProjectPath:      applyProject,
		Mode:             state.Mode(applyMode),
		Selection:        selection,
		RemoveUnselected: removeUnselected,
	})
	if err != nil {
		return err
	}

	for _, tr := range report.Reports {
		fmt.Printf("%s (%s)\n", tr.Target, tr.InstallPath)
		if len(tr.AppliedSkills) > 0 {
			fmt.Printf("  applied: %s\n", strings.Join(tr.AppliedSkills, ", "))
		}
		if len(tr.RemovedSkills) > 0 {
			fmt.Printf("  removed: %s\n", strings.Join(tr.RemovedSkills, ", "))
		}
		if len(tr.SkippedSkills) > 0 {
			fmt.Printf("  skipped: %s\n", strings.Join(tr.SkippedSkills, ", "))
		}
		for _, w := range tr.Warnings {
			fmt.Printf("  warning [%s]: %s\n", w.Code, w.Message)
		}
		for _, e := range tr.Errors {
			fmt.Printf("  error [%s]: %s\n", e.Code, e.Message)
		}
	}
	return nil
}

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install packages into targets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, engine.OpInstall, args, false)
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <package>...",
	Short: "Uninstall managed packages from targets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, engine.OpUninstall, args, false)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [package]...",
	Short: "Make the managed set exactly the given packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, engine.OpSync, args, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{installCmd, uninstallCmd, syncCmd} {
		applyFlags(c)
		rootCmd.AddCommand(c)
	}
}
