package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agenthub-dev/agenthub/internal/config"
)

func TestNewAtWiresEverything(t *testing.T) {
	dir := t.TempDir()
	paths := &config.Paths{
		DataDir:    dir,
		SourcesDir: filepath.Join(dir, "sources"),
		StateDir:   filepath.Join(dir, "state"),
		CacheDir:   filepath.Join(dir, "cache"),
		SecretsDir: filepath.Join(dir, "secrets"),
	}
	settings := &config.Settings{
		ListenAddr:        "127.0.0.1:0",
		CatalogCacheTTL:   time.Minute,
		HeartbeatInterval: 15 * time.Second,
		TicketTTL:         30 * time.Second,
	}

	a, err := NewAt(paths, settings, filepath.Join(dir, "home"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAt: %v", err)
	}

	if a.Registry == nil || a.Syncer == nil || a.Builder == nil || a.States == nil ||
		a.Resolver == nil || a.Bus == nil || a.Tickets == nil || a.Engine == nil || a.Secrets == nil {
		t.Error("NewAt left a component nil")
	}

	// The directory tree and the seeded registry exist after wiring.
	for _, d := range []string{paths.SourcesDir, paths.StateDir, paths.CacheDir, paths.SecretsDir} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("missing %s: %v", d, err)
		}
	}
	if _, err := os.Stat(paths.RegistryFile()); err != nil {
		t.Errorf("registry file not seeded: %v", err)
	}
	if len(a.Registry.List()) == 0 {
		t.Error("registry has no seeded sources")
	}
}
