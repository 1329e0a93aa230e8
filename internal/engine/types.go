// Package engine computes and applies the filesystem diff that brings
// each install path's managed packages in line with a desired selection.
package engine

import (
	"github.com/agenthub-dev/agenthub/internal/source"
	"github.com/agenthub-dev/agenthub/internal/state"
	"github.com/agenthub-dev/agenthub/internal/target"
)

// Operation is what the caller asked for.
type Operation string

const (
	OpInstall   Operation = "install"
	OpUninstall Operation = "uninstall"
	OpSync      Operation = "sync"
)

// Selection identifies one package to act on. PackageID wins when set;
// otherwise SourceID+PackageName; a bare PackageName resolves through
// the catalog's registration-order rule.
type Selection struct {
	SourceID    string `json:"sourceId,omitempty"`
	PackageName string `json:"packageName,omitempty"`
	PackageID   string `json:"packageId,omitempty"`
}

// Request is one reconciliation request across a set of targets.
type Request struct {
	Targets          []string     `json:"targets"`
	Kind             source.Kind  `json:"-"`
	Scope            target.Scope `json:"scope"`
	ProjectPath      string       `json:"projectPath,omitempty"`
	Mode             state.Mode   `json:"mode"`
	Selection        []Selection  `json:"selection"`
	RemoveUnselected bool         `json:"removeUnselected"`
}

// Issue is a coded warning or error inside a target report.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TargetReport is the outcome for a single resolved target. One
// target's failure never aborts the others; it just fills Errors here.
type TargetReport struct {
	Target        string       `json:"target"`
	InstallPath   string       `json:"installPath"`
	Scope         target.Scope `json:"scope"`
	Operation     Operation    `json:"operation"`
	AppliedSkills []string     `json:"appliedSkills"`
	RemovedSkills []string     `json:"removedSkills"`
	SkippedSkills []string     `json:"skippedSkills"`
	Warnings      []Issue      `json:"warnings"`
	Errors        []Issue      `json:"errors"`
}

// OperationReport is the batch result. The batch is a convenience, not
// a transaction: it reports success even when individual targets fail.
type OperationReport struct {
	OperationID string         `json:"operationId"`
	Operation   Operation      `json:"operation"`
	Reports     []TargetReport `json:"reports"`
}

// PackageStatus tags entries of the merged installations view.
type PackageStatus string

const (
	// StatusManaged marks a package the engine owns and tracks.
	StatusManaged PackageStatus = "managed"
	// StatusDetected marks an on-disk package matching a known catalog
	// name that the engine does not own. Surfacing it keeps drift
	// visible without claiming ownership.
	StatusDetected PackageStatus = "detected"
)

// InstalledPackage is one row of the installations view.
type InstalledPackage struct {
	Status    PackageStatus `json:"status"`
	Name      string        `json:"name"`
	Installed bool          `json:"installed"`

	// Managed-only fields.
	PackageID     string     `json:"packageId,omitempty"`
	SourceID      string     `json:"sourceId,omitempty"`
	InstallMode   state.Mode `json:"installMode,omitempty"`
	EffectiveMode state.Mode `json:"effectiveMode,omitempty"`
	Orphaned      bool       `json:"orphaned,omitempty"`
}

// Installation is the merged managed+detected view for one install
// path.
type Installation struct {
	Target      string             `json:"target"`
	InstallPath string             `json:"installPath"`
	Scope       target.Scope       `json:"scope"`
	ProjectPath string             `json:"projectPath,omitempty"`
	Packages    []InstalledPackage `json:"packages"`
}

// ValidationError means the request could not be attempted at all.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Issue codes used in reports.
const (
	codeUnknownPackage  = "unknown-package"
	codeSymlinkFallback = "symlink-fallback"
	codeMaterializeFail = "materialize-failed"
	codeExistsUnmanaged = "exists-unmanaged"
	codeModifiedOnDisk  = "modified-externally"
	codeDetected        = "detected-package"
	codeStateError      = "state-error"
)
