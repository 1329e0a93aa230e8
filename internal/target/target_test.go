package target

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/agenthub-dev/agenthub/internal/source"
)

func TestResolveUserScope(t *testing.T) {
	r := NewResolverAt("/home/alice")

	got, err := r.Resolve([]string{"claude", "codex"}, source.KindSkill, ScopeUser, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Resolve returned %d targets, want 2", len(got))
	}
	want := filepath.Join("/home/alice", ".claude", "skills")
	if got[0].InstallPath != want {
		t.Errorf("claude install path = %q, want %q", got[0].InstallPath, want)
	}
	if got[0].Scope != ScopeUser {
		t.Errorf("scope = %q, want user", got[0].Scope)
	}
}

func TestResolveProjectScope(t *testing.T) {
	r := NewResolverAt("/home/alice")

	got, err := r.Resolve([]string{"claude"}, source.KindSkill, ScopeProject, "/work/proj")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join("/work/proj", ".claude", "skills")
	if got[0].InstallPath != want {
		t.Errorf("install path = %q, want %q", got[0].InstallPath, want)
	}
	if got[0].ProjectPath != "/work/proj" {
		t.Errorf("projectPath = %q, want /work/proj", got[0].ProjectPath)
	}
}

func TestResolveProjectScopeRequiresAbsolutePath(t *testing.T) {
	r := NewResolverAt("/home/alice")

	for _, path := range []string{"", "relative/path"} {
		if _, err := r.Resolve([]string{"claude"}, source.KindSkill, ScopeProject, path); !errors.Is(err, ErrProjectPathRequired) {
			t.Errorf("Resolve(projectPath=%q): err = %v, want ErrProjectPathRequired", path, err)
		}
	}
}

func TestResolveFiltersKindIncapableTargets(t *testing.T) {
	r := NewResolverAt("/home/alice")

	// codex and cursor host no hooks, so they drop out silently.
	got, err := r.Resolve([]string{"claude", "codex", "cursor"}, source.KindHook, ScopeUser, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || got[0].Target != "claude" {
		t.Errorf("Resolve = %+v, want only claude", got)
	}
}

func TestResolveUnknownTarget(t *testing.T) {
	r := NewResolverAt("/home/alice")
	if _, err := r.Resolve([]string{"claude", "emacs"}, source.KindSkill, ScopeUser, ""); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("err = %v, want ErrUnknownTarget", err)
	}
}

func TestResolveInvalidScope(t *testing.T) {
	r := NewResolverAt("/home/alice")
	if _, err := r.Resolve(nil, source.KindSkill, Scope("global"), ""); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("err = %v, want ErrInvalidScope", err)
	}
}

func TestResolveEmptyNamesMeansAllTargets(t *testing.T) {
	r := NewResolverAt("/home/alice")
	got, err := r.Resolve(nil, source.KindSkill, ScopeUser, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != len(Names()) {
		t.Errorf("Resolve(nil) returned %d targets, want %d", len(got), len(Names()))
	}
}
