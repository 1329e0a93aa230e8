package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testPaths(t *testing.T) *Paths {
	t.Helper()
	dir := t.TempDir()
	return &Paths{
		DataDir:    dir,
		SourcesDir: filepath.Join(dir, "sources"),
		StateDir:   filepath.Join(dir, "state"),
		CacheDir:   filepath.Join(dir, "cache"),
		SecretsDir: filepath.Join(dir, "secrets"),
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(testPaths(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.ListenAddr != "127.0.0.1:7850" {
		t.Errorf("ListenAddr = %q", s.ListenAddr)
	}
	if s.CatalogCacheTTL != 5*time.Minute {
		t.Errorf("CatalogCacheTTL = %v", s.CatalogCacheTTL)
	}
	if s.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v", s.HeartbeatInterval)
	}
	if s.TicketTTL != 30*time.Second {
		t.Errorf("TicketTTL = %v", s.TicketTTL)
	}
	if s.SharedSecret != "" {
		t.Errorf("SharedSecret = %q, want unset", s.SharedSecret)
	}
}

func TestLoadSettingsFromFile(t *testing.T) {
	p := testPaths(t)
	content := `listen_addr = "127.0.0.1:9000"
shared_secret = "s3cret"
log_level = "debug"
catalog_cache_ttl = "1m"
heartbeat_interval = "2s"
`
	if err := os.WriteFile(p.SettingsFile(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(p)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.ListenAddr != "127.0.0.1:9000" || s.SharedSecret != "s3cret" || s.LogLevel != "debug" {
		t.Errorf("settings = %+v", s)
	}
	if s.CatalogCacheTTL != time.Minute {
		t.Errorf("CatalogCacheTTL = %v", s.CatalogCacheTTL)
	}
	// Below the floor: clamped, not honored.
	if s.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v, want floored to 5s", s.HeartbeatInterval)
	}
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("AGENTHUB_SHARED_SECRET", "from-env")

	s, err := LoadSettings(testPaths(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.SharedSecret != "from-env" {
		t.Errorf("SharedSecret = %q, want env value", s.SharedSecret)
	}
}

func TestLoadSettingsMalformedFile(t *testing.T) {
	p := testPaths(t)
	if err := os.WriteFile(p.SettingsFile(), []byte("listen_addr = [broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(p); err == nil {
		t.Error("LoadSettings accepted a malformed file")
	}
}

func TestValidateForServe(t *testing.T) {
	s := &Settings{}
	if err := s.ValidateForServe(); err == nil {
		t.Error("ValidateForServe passed without a shared secret")
	}
	s.SharedSecret = "x"
	if err := s.ValidateForServe(); err != nil {
		t.Errorf("ValidateForServe: %v", err)
	}
}
