// Package target maps (tool, scope, projectPath) to the concrete
// directory packages are installed into.
package target

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agenthub-dev/agenthub/internal/source"
)

// Scope is where an installation lives.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
)

// Errors a resolve can produce. The engine surfaces them as validation
// failures before anything is attempted.
var (
	ErrUnknownTarget       = fmt.Errorf("unknown target")
	ErrInvalidScope        = fmt.Errorf("scope must be user or project")
	ErrProjectPathRequired = fmt.Errorf("project scope requires an absolute projectPath")
)

// Target describes one tool environment that can host installed
// packages. userDir/projectDir are relative to home / the project root.
type Target struct {
	Name  string
	kinds map[source.Kind]dirs
}

type dirs struct {
	userDir    string
	projectDir string
}

// Supports reports whether the target can host the given kind.
func (t *Target) Supports(kind source.Kind) bool {
	_, ok := t.kinds[kind]
	return ok
}

// Built-in targets. Hooks only exist where the hosting tool actually
// executes them.
var known = []*Target{
	{
		Name: "claude",
		kinds: map[source.Kind]dirs{
			source.KindSkill: {userDir: ".claude/skills", projectDir: ".claude/skills"},
			source.KindHook:  {userDir: ".claude/hooks", projectDir: ".claude/hooks"},
		},
	},
	{
		Name: "codex",
		kinds: map[source.Kind]dirs{
			source.KindSkill: {userDir: ".codex/skills", projectDir: ".codex/skills"},
		},
	},
	{
		Name: "cursor",
		kinds: map[source.Kind]dirs{
			source.KindSkill: {userDir: ".cursor/skills", projectDir: ".cursor/skills"},
		},
	},
	{
		Name: "opencode",
		kinds: map[source.Kind]dirs{
			source.KindSkill: {userDir: ".opencode/skills", projectDir: ".opencode/skills"},
			source.KindHook:  {userDir: ".opencode/hooks", projectDir: ".opencode/hooks"},
		},
	},
}

// Names returns all built-in target names.
func Names() []string {
	names := make([]string, len(known))
	for i, t := range known {
		names[i] = t.Name
	}
	return names
}

// Resolved is one concrete installation destination.
type Resolved struct {
	Target      string `json:"target"`
	InstallPath string `json:"installPath"`
	Scope       Scope  `json:"scope"`
	ProjectPath string `json:"projectPath,omitempty"`
}

// Resolver turns target names into install paths. The home directory is
// injectable so tests never touch the real one.
type Resolver struct {
	home string
}

// NewResolver builds a resolver rooted at the current user's home.
func NewResolver() (*Resolver, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Resolver{home: home}, nil
}

// NewResolverAt builds a resolver with an explicit home root.
func NewResolverAt(home string) *Resolver {
	return &Resolver{home: home}
}

// Resolve maps the requested target names to install paths for a kind
// and scope. Targets that cannot host the kind are excluded, not
// errored; callers must treat an empty result as "no eligible targets".
// An empty names list means all built-in targets.
func (r *Resolver) Resolve(names []string, kind source.Kind, scope Scope, projectPath string) ([]Resolved, error) {
	switch scope {
	case ScopeUser:
	case ScopeProject:
		if projectPath == "" || !filepath.IsAbs(projectPath) {
			return nil, ErrProjectPathRequired
		}
	default:
		return nil, ErrInvalidScope
	}

	if len(names) == 0 {
		names = Names()
	}

	var out []Resolved
	for _, name := range names {
		t := lookup(name)
		if t == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
		}
		d, ok := t.kinds[kind]
		if !ok {
			continue
		}

		res := Resolved{Target: t.Name, Scope: scope}
		if scope == ScopeUser {
			res.InstallPath = filepath.Join(r.home, filepath.FromSlash(d.userDir))
		} else {
			res.InstallPath = filepath.Join(projectPath, filepath.FromSlash(d.projectDir))
			res.ProjectPath = projectPath
		}
		out = append(out, res)
	}
	return out, nil
}

func lookup(name string) *Target {
	for _, t := range known {
		if t.Name == name {
			return t
		}
	}
	return nil
}
