package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenthub-dev/agenthub/internal/catalog"
	"github.com/agenthub-dev/agenthub/internal/state"
)

// markerFile is written into copied package directories so a later run
// can prove the copy is engine-owned before deleting it.
const markerFile = ".agenthub.json"

type copyMarker struct {
	PackageID   string    `json:"packageId"`
	SourceID    string    `json:"sourceId"`
	InstalledAt time.Time `json:"installedAt"`
}

// materialize puts one catalog entry on disk at installPath using the
// requested mode. mode=symlink tries a symlink first and falls back
// transparently to a copy; only a failure of both is an error. The
// returned record is nil when the package could not be materialized.
func (e *Engine) materialize(installPath string, entry *catalog.Entry, mode state.Mode) (*state.ManagedPackage, []Issue) {
	dest := filepath.Join(installPath, entry.Name)

	rec := &state.ManagedPackage{
		Name:          entry.Name,
		PackageID:     entry.PackageID,
		SourceID:      entry.SourceID,
		InstallMode:   mode,
		EffectiveMode: mode,
	}

	// Idempotence: an artifact we already own is adopted, not an error.
	if info, err := e.links.Inspect(dest); err == nil && info.Exists {
		switch {
		case info.IsSymlink && e.ownsSymlink(info.Target):
			rec.EffectiveMode = state.ModeSymlink
			return rec, nil
		case !info.IsSymlink && e.ownsCopy(dest, entry.PackageID):
			rec.EffectiveMode = state.ModeCopy
			return rec, nil
		default:
			return nil, []Issue{{Code: codeExistsUnmanaged,
				Message: fmt.Sprintf("%s already exists and is not managed by agenthub; skipping", dest)}}
		}
	}

	if mode == state.ModeSymlink {
		if err := e.links.Create(dest, entry.LocalPath); err == nil {
			return rec, nil
		} else if copyErr := e.copyPackage(entry, dest); copyErr == nil {
			rec.EffectiveMode = state.ModeCopy
			return rec, []Issue{{Code: codeSymlinkFallback,
				Message: fmt.Sprintf("symlink for %s failed (%v); installed a copy instead", entry.Name, err)}}
		} else {
			return nil, []Issue{{Code: codeMaterializeFail,
				Message: fmt.Sprintf("%s: symlink failed (%v), copy failed (%v)", entry.Name, err, copyErr)}}
		}
	}

	if err := e.copyPackage(entry, dest); err != nil {
		return nil, []Issue{{Code: codeMaterializeFail,
			Message: fmt.Sprintf("%s: copy failed: %v", entry.Name, err)}}
	}
	return rec, nil
}

// removeOwned deletes a managed artifact only while it still matches
// what the engine installed. Anything modified or replaced externally
// is left alone with a warning; user data is never destroyed.
func (e *Engine) removeOwned(installPath string, mp state.ManagedPackage) (bool, *Issue) {
	dest := filepath.Join(installPath, mp.Name)

	info, err := e.links.Inspect(dest)
	if err != nil {
		return false, &Issue{Code: codeModifiedOnDisk,
			Message: fmt.Sprintf("%s: cannot inspect: %v", mp.Name, err)}
	}
	if !info.Exists {
		// Already gone; converging means that is fine.
		return true, nil
	}

	if info.IsSymlink {
		if !e.ownsSymlink(info.Target) {
			return false, &Issue{Code: codeModifiedOnDisk,
				Message: fmt.Sprintf("%s is a symlink agenthub did not create; leaving it in place", mp.Name)}
		}
		if err := e.links.Remove(dest); err != nil {
			return false, &Issue{Code: codeModifiedOnDisk,
				Message: fmt.Sprintf("%s: remove failed: %v", mp.Name, err)}
		}
		return true, nil
	}

	if !e.ownsCopy(dest, mp.PackageID) {
		return false, &Issue{Code: codeModifiedOnDisk,
			Message: fmt.Sprintf("%s was modified or replaced externally; leaving it in place", mp.Name)}
	}
	if err := os.RemoveAll(dest); err != nil {
		return false, &Issue{Code: codeModifiedOnDisk,
			Message: fmt.Sprintf("%s: remove failed: %v", mp.Name, err)}
	}
	return true, nil
}

// ownsSymlink reports whether a symlink target resolves into the source
// working copy tree.
func (e *Engine) ownsSymlink(linkTarget string) bool {
	abs, err := filepath.Abs(linkTarget)
	if err != nil {
		return false
	}
	root, err := filepath.Abs(e.sourcesDir)
	if err != nil {
		return false
	}
	return abs == root || strings.HasPrefix(abs, root+string(filepath.Separator))
}

// ownsCopy reports whether a copied directory still carries our marker
// for the same package.
func (e *Engine) ownsCopy(dest, packageID string) bool {
	data, err := os.ReadFile(filepath.Join(dest, markerFile))
	if err != nil {
		return false
	}
	var m copyMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	return packageID == "" || m.PackageID == packageID
}

func (e *Engine) copyPackage(entry *catalog.Entry, dest string) error {
	if err := copyTree(entry.LocalPath, dest); err != nil {
		os.RemoveAll(dest)
		return err
	}
	marker, err := json.MarshalIndent(copyMarker{
		PackageID:   entry.PackageID,
		SourceID:    entry.SourceID,
		InstalledAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dest, markerFile), marker, 0644); err != nil {
		os.RemoveAll(dest)
		return err
	}
	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst)
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
