//go:build windows

package symlink

import (
	"os"
	"path/filepath"
)

// createSymlink creates a symlink on Windows using absolute paths.
// Symlink creation requires Developer Mode or elevation; when it fails
// the reconciler falls back to copying.
func createSymlink(linkPath, target string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
		return err
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		absTarget = target
	}

	return os.Symlink(absTarget, linkPath)
}
