package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/agenthub-dev/agenthub/internal/catalog"
	"github.com/agenthub-dev/agenthub/internal/source"
	"github.com/agenthub-dev/agenthub/internal/target"
)

// Installations returns the merged managed + detected view for every
// resolved target. Orphan flags are recomputed on read, so disabling a
// source shows up without another reconcile run.
func (e *Engine) Installations(ctx context.Context, targets []string, kind source.Kind,
	scope target.Scope, projectPath string) ([]Installation, error) {

	resolved, err := e.resolver.Resolve(targets, kind, scope, projectPath)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	cat, err := e.builder.Build(ctx, kind, false)
	if err != nil {
		if !errors.Is(err, catalog.ErrUnavailable) {
			return nil, err
		}
		// No catalog means no detected-package scan, but managed
		// records are still readable.
		cat = &catalog.Catalog{Kind: kind}
	}

	enabled := map[string]bool{}
	for _, src := range e.registry.List() {
		if src.Enabled() {
			enabled[src.ID] = true
		}
	}

	out := make([]Installation, 0, len(resolved))
	for _, res := range resolved {
		inst := Installation{
			Target:      res.Target,
			InstallPath: res.InstallPath,
			Scope:       res.Scope,
			ProjectPath: res.ProjectPath,
			Packages:    []InstalledPackage{},
		}

		st, err := e.states.Load(res.InstallPath)
		if err != nil {
			return nil, err
		}

		for _, mp := range st.ManagedPackages {
			_, statErr := os.Lstat(filepath.Join(res.InstallPath, mp.Name))
			inst.Packages = append(inst.Packages, InstalledPackage{
				Status:        StatusManaged,
				Name:          mp.Name,
				Installed:     statErr == nil,
				PackageID:     mp.PackageID,
				SourceID:      mp.SourceID,
				InstallMode:   mp.InstallMode,
				EffectiveMode: mp.EffectiveMode,
				Orphaned:      mp.SourceID != "" && !enabled[mp.SourceID],
			})
		}

		for _, name := range e.detectUnmanaged(res.InstallPath, st, cat) {
			inst.Packages = append(inst.Packages, InstalledPackage{
				Status:    StatusDetected,
				Name:      name,
				Installed: true,
			})
		}

		out = append(out, inst)
	}
	return out, nil
}
