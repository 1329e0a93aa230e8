package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetTokenRoundtrip(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Set("acme", "super-secret-token"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !s.Has("acme") {
		t.Error("Has(acme) = false after Set")
	}

	got, err := s.Token("acme")
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != "super-secret-token" {
		t.Errorf("Token = %q, want original", got)
	}
}

func TestSecretNotStoredInPlainText(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Set("acme", "super-secret-token"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, credFileName))
	if err != nil {
		t.Fatalf("read credential file: %v", err)
	}
	if strings.Contains(string(data), "super-secret-token") {
		t.Error("credential file contains the plain-text secret")
	}
}

func TestDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Set("acme", "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete("acme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Has("acme") {
		t.Error("Has(acme) = true after Delete")
	}
	if _, err := s.Token("acme"); err != ErrNotFound {
		t.Errorf("Token after Delete: err = %v, want ErrNotFound", err)
	}
	// Deleting again is a no-op, not an error
	if err := s.Delete("acme"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestRedactedRef(t *testing.T) {
	s := NewStore(t.TempDir())
	if ref := s.RedactedRef("acme"); ref != "" {
		t.Errorf("RedactedRef without credential = %q, want empty", ref)
	}
	if err := s.Set("acme", "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ref := s.RedactedRef("acme")
	if strings.Contains(ref, "tok") {
		t.Errorf("RedactedRef = %q leaks the secret", ref)
	}
	if ref == "" {
		t.Error("RedactedRef empty after Set")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Set("acme", "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for _, name := range []string{credFileName, keyFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("%s permissions = %o, want 0600", name, perm)
		}
	}
}
