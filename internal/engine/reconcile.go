package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agenthub-dev/agenthub/internal/catalog"
	"github.com/agenthub-dev/agenthub/internal/events"
	"github.com/agenthub-dev/agenthub/internal/state"
	"github.com/agenthub-dev/agenthub/internal/target"
)

// reconcileTarget runs load → diff → apply → persist for one install
// path, under that path's lock.
func (e *Engine) reconcileTarget(ctx context.Context, op Operation, req Request,
	res target.Resolved, cat *catalog.Catalog, opID string) TargetReport {

	lock := e.pathLock(res.InstallPath)
	lock.Lock()
	defer lock.Unlock()

	tr := TargetReport{
		Target:        res.Target,
		InstallPath:   res.InstallPath,
		Scope:         res.Scope,
		Operation:     op,
		AppliedSkills: []string{},
		RemovedSkills: []string{},
		SkippedSkills: []string{},
		Warnings:      []Issue{},
		Errors:        []Issue{},
	}

	st, err := e.states.Load(res.InstallPath)
	if err != nil {
		tr.Errors = append(tr.Errors, Issue{Code: codeStateError, Message: err.Error()})
		return tr
	}

	// Drift scan: on-disk directories matching known catalog names that
	// the state file does not claim. Reported, never touched.
	for _, name := range e.detectUnmanaged(res.InstallPath, st, cat) {
		tr.Warnings = append(tr.Warnings, Issue{
			Code:    codeDetected,
			Message: fmt.Sprintf("%s exists on disk but is not managed by agenthub", name),
		})
	}

	currentByName := map[string]state.ManagedPackage{}
	for _, mp := range st.ManagedPackages {
		currentByName[mp.Name] = mp
	}

	// Resolve the selection. Entries are needed for additions; removals
	// work from names alone so uninstalls survive a source's demise.
	selEntries := map[string]*catalog.Entry{}
	selNames := make([]string, 0, len(req.Selection))
	for _, sel := range req.Selection {
		entry := cat.Find(sel.PackageID, sel.SourceID, sel.PackageName)
		name := selectionName(sel, entry)
		if name == "" {
			tr.Errors = append(tr.Errors, Issue{Code: codeUnknownPackage,
				Message: "selection with no package name or id"})
			continue
		}
		if _, seen := selEntries[name]; !seen {
			selNames = append(selNames, name)
		}
		selEntries[name] = entry
	}

	desired := desiredNames(op, req, currentByName, selNames)

	var toAdd, toRemove []string
	for _, name := range desired {
		if _, ok := currentByName[name]; !ok {
			toAdd = append(toAdd, name)
		}
	}
	desiredSet := map[string]bool{}
	for _, name := range desired {
		desiredSet[name] = true
	}
	for name := range currentByName {
		if !desiredSet[name] {
			toRemove = append(toRemove, name)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)

	mode := req.Mode
	if mode == "" {
		mode = state.ModeSymlink
	}

	next := map[string]state.ManagedPackage{}
	for name, mp := range currentByName {
		if desiredSet[name] {
			next[name] = mp
		}
	}

	for _, name := range toAdd {
		entry := selEntries[name]
		if entry == nil {
			tr.SkippedSkills = append(tr.SkippedSkills, name)
			tr.Errors = append(tr.Errors, Issue{Code: codeUnknownPackage,
				Message: fmt.Sprintf("package %q is not in the catalog", name)})
			continue
		}
		rec, issues := e.materialize(res.InstallPath, entry, mode)
		for _, is := range issues {
			if is.Code == codeSymlinkFallback || is.Code == codeExistsUnmanaged {
				tr.Warnings = append(tr.Warnings, is)
			} else {
				tr.Errors = append(tr.Errors, is)
			}
		}
		if rec == nil {
			tr.SkippedSkills = append(tr.SkippedSkills, name)
			continue
		}
		next[name] = *rec
		tr.AppliedSkills = append(tr.AppliedSkills, name)
	}

	for _, name := range toRemove {
		mp := currentByName[name]
		removed, issue := e.removeOwned(res.InstallPath, mp)
		if issue != nil {
			tr.Warnings = append(tr.Warnings, *issue)
		}
		if removed {
			tr.RemovedSkills = append(tr.RemovedSkills, name)
		}
		// Either way the engine stops claiming the package; skipped
		// artifacts stay on disk as unmanaged.
	}

	// Orphan recompute against the currently enabled source set.
	enabled := map[string]bool{}
	for _, src := range e.registry.List() {
		if src.Enabled() {
			enabled[src.ID] = true
		}
	}
	st.ManagedPackages = st.ManagedPackages[:0]
	names := make([]string, 0, len(next))
	for name := range next {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mp := next[name]
		mp.Orphaned = mp.SourceID != "" && !enabled[mp.SourceID]
		st.ManagedPackages = append(st.ManagedPackages, mp)
	}

	// Persist only after the filesystem work is done, so a crash leaves
	// the last successfully persisted state behind.
	if err := e.states.Save(st); err != nil {
		tr.Errors = append(tr.Errors, Issue{Code: codeStateError, Message: err.Error()})
		return tr
	}

	e.bus.Emit(events.ChannelOperation, "operation.target", map[string]any{
		"target":      res.Target,
		"installPath": res.InstallPath,
		"applied":     len(tr.AppliedSkills),
		"removed":     len(tr.RemovedSkills),
		"skipped":     len(tr.SkippedSkills),
	}, opID)

	e.log.Info().
		Str("op", string(op)).
		Str("target", res.Target).
		Str("path", res.InstallPath).
		Int("applied", len(tr.AppliedSkills)).
		Int("removed", len(tr.RemovedSkills)).
		Msg("target reconciled")
	return tr
}

// desiredNames computes the post-operation managed set.
//
//	install               current ∪ selection
//	install + removeUnsel selection only (sync semantics)
//	uninstall             current − selection
//	sync                  selection, removeUnselected implied
func desiredNames(op Operation, req Request, current map[string]state.ManagedPackage, selNames []string) []string {
	switch {
	case op == OpSync, op == OpInstall && req.RemoveUnselected:
		return append([]string(nil), selNames...)
	case op == OpInstall:
		out := make([]string, 0, len(current)+len(selNames))
		for name := range current {
			out = append(out, name)
		}
		for _, name := range selNames {
			if _, ok := current[name]; !ok {
				out = append(out, name)
			}
		}
		return out
	default: // uninstall
		drop := map[string]bool{}
		for _, name := range selNames {
			drop[name] = true
		}
		var out []string
		for name := range current {
			if !drop[name] {
				out = append(out, name)
			}
		}
		return out
	}
}

// selectionName derives the package name a selection refers to when the
// catalog cannot resolve it, so uninstalls of vanished packages work.
func selectionName(sel Selection, entry *catalog.Entry) string {
	if entry != nil {
		return entry.Name
	}
	if sel.PackageName != "" {
		return sel.PackageName
	}
	if i := strings.LastIndex(sel.PackageID, "/"); i >= 0 {
		return sel.PackageID[i+1:]
	}
	return sel.PackageID
}

// detectUnmanaged lists on-disk package directories matching known
// catalog names that install state does not claim.
func (e *Engine) detectUnmanaged(installPath string, st *state.InstallState, cat *catalog.Catalog) []string {
	managed := map[string]bool{}
	for _, mp := range st.ManagedPackages {
		managed[mp.Name] = true
	}
	names := cat.Names()

	entries, err := readInstallDir(installPath)
	if err != nil {
		return nil
	}
	var detected []string
	for _, name := range entries {
		if names[name] && !managed[name] {
			detected = append(detected, name)
		}
	}
	sort.Strings(detected)
	return detected
}

func readInstallDir(installPath string) ([]string, error) {
	dirents, err := os.ReadDir(installPath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range dirents {
		if de.IsDir() || de.Type()&os.ModeSymlink != 0 {
			if !strings.HasPrefix(de.Name(), ".") {
				names = append(names, de.Name())
			}
		}
	}
	return names, nil
}
