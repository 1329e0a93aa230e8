package config

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved paths for agenthub operations
type Paths struct {
	DataDir    string // ~/.agenthub (agenthub data directory)
	SourcesDir string // ~/.agenthub/sources (working copies, one per source)
	StateDir   string // ~/.agenthub/state (install state files)
	CacheDir   string // ~/.agenthub/cache (catalog caches)
	SecretsDir string // ~/.agenthub/secrets (credential store)
}

// ResolvePaths determines all agenthub paths. AGENTHUB_DIR overrides the
// data directory root, which keeps tests and side-by-side installs apart.
func ResolvePaths() (*Paths, error) {
	dataDir := os.Getenv("AGENTHUB_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(home, ".agenthub")
	}

	return &Paths{
		DataDir:    dataDir,
		SourcesDir: filepath.Join(dataDir, "sources"),
		StateDir:   filepath.Join(dataDir, "state"),
		CacheDir:   filepath.Join(dataDir, "cache"),
		SecretsDir: filepath.Join(dataDir, "secrets"),
	}, nil
}

// SourceDir returns the working copy directory for a source
func (p *Paths) SourceDir(sourceID string) string {
	return filepath.Join(p.SourcesDir, sourceID)
}

// RegistryFile returns the path of the source registry file
func (p *Paths) RegistryFile() string {
	return filepath.Join(p.DataDir, "sources.toml")
}

// SettingsFile returns the path of the daemon settings file
func (p *Paths) SettingsFile() string {
	return filepath.Join(p.DataDir, "agenthub.toml")
}

// EnsureDirs creates the agenthub directory tree
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.SourcesDir, p.StateDir, p.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	// Secrets directory is restricted to the owner
	return os.MkdirAll(p.SecretsDir, 0700)
}
