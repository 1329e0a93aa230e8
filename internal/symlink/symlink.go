// Package symlink wraps the platform-specific pieces of creating and
// inspecting the links the reconciler materializes into install paths.
package symlink

import (
	"os"
	"path/filepath"
)

// Manager handles symlink operations
type Manager struct{}

// New creates a new symlink manager
func New() *Manager {
	return &Manager{}
}

// Info contains information about a path that may be a symlink
type Info struct {
	Path      string
	Target    string
	Exists    bool
	IsSymlink bool
	IsBroken  bool
}

// Create creates a symlink at linkPath pointing to target
func (m *Manager) Create(linkPath, target string) error {
	return createSymlink(linkPath, target)
}

// Remove removes a symlink (not its target)
func (m *Manager) Remove(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrInvalid}
	}
	return os.Remove(path)
}

// Inspect returns information about a path without following errors on
// absent paths: a missing path yields Exists=false, not an error.
func (m *Manager) Inspect(path string) (*Info, error) {
	info := &Info{Path: path}

	linfo, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return nil, err
	}

	info.Exists = true
	info.IsSymlink = linfo.Mode()&os.ModeSymlink != 0

	if info.IsSymlink {
		target, err := os.Readlink(path)
		if err != nil {
			return nil, err
		}
		// Resolve relative symlinks against the link's directory
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		info.Target = target

		if _, err := os.Stat(path); os.IsNotExist(err) {
			info.IsBroken = true
		}
	}

	return info, nil
}

// PointsTo reports whether path is a symlink resolving to expectedTarget.
func (m *Manager) PointsTo(path, expectedTarget string) (bool, error) {
	info, err := m.Inspect(path)
	if err != nil {
		return false, err
	}
	if !info.Exists || !info.IsSymlink {
		return false, nil
	}

	absTarget, err := filepath.Abs(info.Target)
	if err != nil {
		return false, err
	}
	absExpected, err := filepath.Abs(expectedTarget)
	if err != nil {
		return false, err
	}
	return absTarget == absExpected, nil
}
