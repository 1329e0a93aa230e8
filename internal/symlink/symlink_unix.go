//go:build !windows

package symlink

import (
	"os"
	"path/filepath"
)

// createSymlink creates a symlink on Unix systems using relative paths,
// so a data directory moved wholesale keeps working.
func createSymlink(linkPath, target string) error {
	linkDir := filepath.Dir(linkPath)
	if err := os.MkdirAll(linkDir, 0755); err != nil {
		return err
	}

	relTarget, err := filepath.Rel(linkDir, target)
	if err != nil {
		// Fall back to absolute path if relative fails
		relTarget = target
	}

	return os.Symlink(relTarget, linkPath)
}
