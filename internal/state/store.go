// Package state persists which packages the engine manages at each
// install path. One JSON file per path, replaced wholesale on every
// operation; an absent file means "nothing managed here".
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mode is how a package was (or should be) materialized on disk.
type Mode string

const (
	ModeSymlink Mode = "symlink"
	ModeCopy    Mode = "copy"
)

// ManagedPackage is one engine-owned package at an install path.
type ManagedPackage struct {
	Name          string `json:"name"`
	PackageID     string `json:"packageId,omitempty"`
	SourceID      string `json:"sourceId,omitempty"`
	InstallMode   Mode   `json:"installMode"`
	EffectiveMode Mode   `json:"effectiveMode"`
	Orphaned      bool   `json:"orphaned"`
}

// InstallState is the full managed-package record for one install path.
type InstallState struct {
	InstallPath     string           `json:"installPath"`
	ManagedPackages []ManagedPackage `json:"managedPackages"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Find returns the managed record with the given name, or nil.
func (s *InstallState) Find(name string) *ManagedPackage {
	for i := range s.ManagedPackages {
		if s.ManagedPackages[i].Name == name {
			return &s.ManagedPackages[i]
		}
	}
	return nil
}

// Store reads and writes install state files under one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load returns the state for an install path. A missing file yields an
// empty state, not an error.
func (s *Store) Load(installPath string) (*InstallState, error) {
	data, err := os.ReadFile(s.fileFor(installPath))
	if err != nil {
		if os.IsNotExist(err) {
			return &InstallState{InstallPath: installPath}, nil
		}
		return nil, err
	}

	var st InstallState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse install state for %s: %w", installPath, err)
	}
	st.InstallPath = installPath
	return &st, nil
}

// Save replaces the state for st.InstallPath wholesale.
func (s *Store) Save(st *InstallState) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	st.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.fileFor(st.InstallPath), data, 0644)
}

// fileFor derives a stable filename from the install path. Hashing
// sidesteps separator and length issues across platforms.
func (s *Store) fileFor(installPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(installPath)))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:8])+".json")
}
