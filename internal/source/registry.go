package source

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/agenthub-dev/agenthub/internal/redact"
	"github.com/agenthub-dev/agenthub/internal/secrets"
)

// RegistryVersion is the current registry file format version
const RegistryVersion = 1

// The built-in official source, seeded on first load. Not removable.
const (
	officialID   = "agenthub"
	officialName = "Agenthub Official"
	officialRepo = "https://github.com/agenthub-dev/packages"
)

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// Registry is the durable set of registered sources, persisted as one
// TOML file. Sources keep registration order, which also decides
// bare-name resolution in the catalog.
type Registry struct {
	path  string
	creds *secrets.Store

	mu      sync.Mutex
	sources []*Source
}

// registryFile is the on-disk format. An array keeps registration order,
// which a TOML table would lose.
type registryFile struct {
	Version int       `toml:"version"`
	Sources []*Source `toml:"sources"`
}

// LoadRegistry reads the registry file, seeding the official source when
// the file does not exist yet.
func LoadRegistry(path string, creds *secrets.Store) (*Registry, error) {
	r := &Registry{path: path, creds: creds}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.sources = []*Source{officialSource()}
			if err := r.save(); err != nil {
				return nil, err
			}
			return r, nil
		}
		return nil, err
	}

	var f registryFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	r.sources = f.Sources

	if r.findLocked(officialID) == nil {
		r.sources = append([]*Source{officialSource()}, r.sources...)
		if err := r.save(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func officialSource() *Source {
	return &Source{
		ID:        officialID,
		Name:      officialName,
		RepoURL:   officialRepo,
		Transport: TransportHTTPS,
		Official:  true,
		Removable: false,
		Skills:    &Mirror{Root: "skills", Enabled: true},
		Hooks:     &Mirror{Root: "hooks", Enabled: true},
	}
}

// Register validates the spec, stores the token in the credential store
// and persists the new source. The token never lands in the registry
// file itself.
func (r *Registry) Register(spec RegisterSpec) (*Source, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findLocked(spec.ID) != nil {
		return nil, &SourceError{Op: "register", Source: spec.ID, Err: ErrExists}
	}

	src := &Source{
		ID:        spec.ID,
		Name:      spec.Name,
		RepoURL:   spec.RepoURL,
		Transport: spec.Transport,
		Removable: true,
	}
	if src.Name == "" {
		src.Name = spec.ID
	}
	if src.Transport == "" {
		src.Transport = TransportHTTPS
	}
	if spec.SkillsRoot != "" {
		src.Skills = &Mirror{Root: spec.SkillsRoot, Enabled: true}
	}
	if spec.HooksRoot != "" {
		src.Hooks = &Mirror{Root: spec.HooksRoot, Enabled: true}
	}

	if spec.Token != "" {
		if err := r.creds.Set(spec.ID, spec.Token); err != nil {
			return nil, &SourceError{Op: "register", Source: spec.ID, Err: err}
		}
		src.CredentialRef = r.creds.RedactedRef(spec.ID)
	}

	r.sources = append(r.sources, src)
	if err := r.save(); err != nil {
		return nil, err
	}
	return src, nil
}

// Update applies a partial update to a source.
func (r *Registry) Update(id string, spec UpdateSpec) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.findLocked(id)
	if src == nil {
		return nil, &SourceError{Op: "update", Source: id, Err: ErrNotFound}
	}

	if spec.Name != nil {
		src.Name = *spec.Name
	}
	if spec.RepoURL != nil {
		if err := validateRepoURL(*spec.RepoURL); err != nil {
			return nil, &SourceError{Op: "update", Source: id, Err: err}
		}
		src.RepoURL = *spec.RepoURL
	}
	if spec.Transport != nil {
		if *spec.Transport != TransportHTTPS && *spec.Transport != TransportSSH {
			return nil, &SourceError{Op: "update", Source: id, Err: ErrInvalidSpec}
		}
		src.Transport = *spec.Transport
	}
	if spec.SkillsRoot != nil {
		if src.Skills == nil {
			src.Skills = &Mirror{Enabled: true}
		}
		src.Skills.Root = *spec.SkillsRoot
	}
	if spec.HooksRoot != nil {
		if src.Hooks == nil {
			src.Hooks = &Mirror{Enabled: true}
		}
		src.Hooks.Root = *spec.HooksRoot
	}
	if spec.Enabled != nil {
		if src.Skills != nil {
			src.Skills.Enabled = *spec.Enabled
		}
		if src.Hooks != nil {
			src.Hooks.Enabled = *spec.Enabled
		}
	}
	if spec.SkillsEnabled != nil && src.Skills != nil {
		src.Skills.Enabled = *spec.SkillsEnabled
	}
	if spec.HooksEnabled != nil && src.Hooks != nil {
		src.Hooks.Enabled = *spec.HooksEnabled
	}
	if spec.Token != nil {
		if *spec.Token == "" {
			if err := r.creds.Delete(id); err != nil {
				return nil, &SourceError{Op: "update", Source: id, Err: err}
			}
			src.CredentialRef = ""
		} else {
			if err := r.creds.Set(id, *spec.Token); err != nil {
				return nil, &SourceError{Op: "update", Source: id, Err: err}
			}
			src.CredentialRef = r.creds.RedactedRef(id)
		}
	}

	if err := r.save(); err != nil {
		return nil, err
	}
	return src, nil
}

// Remove deletes a removable source, its credential and returns the
// removed record. The working copy is the caller's to clean up.
func (r *Registry) Remove(id string) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.findLocked(id)
	if src == nil {
		return nil, &SourceError{Op: "remove", Source: id, Err: ErrNotFound}
	}
	if !src.Removable {
		return nil, &SourceError{Op: "remove", Source: id, Err: ErrNotRemovable}
	}

	for i, s := range r.sources {
		if s.ID == id {
			r.sources = append(r.sources[:i], r.sources[i+1:]...)
			break
		}
	}
	if err := r.creds.Delete(id); err != nil {
		return nil, &SourceError{Op: "remove", Source: id, Err: err}
	}
	if err := r.save(); err != nil {
		return nil, err
	}
	return src, nil
}

// Get returns a source by id.
func (r *Registry) Get(id string) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.findLocked(id)
	if src == nil {
		return nil, &SourceError{Op: "get", Source: id, Err: ErrNotFound}
	}
	return src, nil
}

// List returns all sources in registration order.
func (r *Registry) List() []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// EnabledFor returns sources with an enabled mirror for kind, in
// registration order.
func (r *Registry) EnabledFor(kind Kind) []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Source
	for _, s := range r.sources {
		if s.EnabledFor(kind) {
			out = append(out, s)
		}
	}
	return out
}

// Views returns the merged single-row presentation of every source.
func (r *Registry) Views() []View {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]View, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, r.viewLocked(s))
	}
	return out
}

// ViewOf returns the merged presentation of one source.
func (r *Registry) ViewOf(id string) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.findLocked(id)
	if src == nil {
		return View{}, &SourceError{Op: "get", Source: id, Err: ErrNotFound}
	}
	return r.viewLocked(src), nil
}

func (r *Registry) viewLocked(s *Source) View {
	v := View{
		ID:            s.ID,
		Name:          s.Name,
		RepoURL:       s.RepoURL,
		Transport:     s.Transport,
		Official:      s.Official,
		Enabled:       s.Enabled(),
		Removable:     s.Removable,
		HasCredential: r.creds.Has(s.ID),
		CredentialRef: s.CredentialRef,
	}
	// Merged sync view: newest mirror wins, first error surfaces.
	for _, m := range []*Mirror{s.Skills, s.Hooks} {
		if m == nil {
			continue
		}
		if m.LastSyncAt.After(timeOrZero(v.LastSyncAt)) {
			t := m.LastSyncAt
			v.LastSyncAt = &t
			v.Revision = m.Revision
		}
		if v.LastError == "" {
			v.LastError = m.LastError
		}
	}
	if s.Skills != nil {
		v.SkillsRoot = s.Skills.Root
	}
	if s.Hooks != nil {
		v.HooksRoot = s.Hooks.Root
	}
	return v
}

// RecordSync updates a source's mirror bookkeeping after a sync attempt.
// On failure the previous revision survives so the last-known-good copy
// stays addressable.
func (r *Registry) RecordSync(id, revision string, syncErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.findLocked(id)
	if src == nil {
		return &SourceError{Op: "record sync", Source: id, Err: ErrNotFound}
	}

	now := time.Now()
	for _, m := range []*Mirror{src.Skills, src.Hooks} {
		if m == nil {
			continue
		}
		if syncErr != nil {
			m.LastError = redact.Error(syncErr)
			continue
		}
		m.Revision = revision
		m.LastSyncAt = now
		m.LastError = ""
	}
	return r.save()
}

func (r *Registry) findLocked(id string) *Source {
	for _, s := range r.sources {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(registryFile{Version: RegistryVersion, Sources: r.sources})
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0644)
}

func validateSpec(spec RegisterSpec) error {
	if !slugRe.MatchString(spec.ID) {
		return &SourceError{Op: "register", Source: spec.ID,
			Err: fmt.Errorf("%w: id must be a lowercase slug", ErrInvalidSpec)}
	}
	if err := validateRepoURL(spec.RepoURL); err != nil {
		return &SourceError{Op: "register", Source: spec.ID, Err: err}
	}
	if spec.SkillsRoot == "" && spec.HooksRoot == "" {
		return &SourceError{Op: "register", Source: spec.ID,
			Err: fmt.Errorf("%w: at least one of skillsRoot/hooksRoot required", ErrInvalidSpec)}
	}
	if spec.Transport != "" && spec.Transport != TransportHTTPS && spec.Transport != TransportSSH {
		return &SourceError{Op: "register", Source: spec.ID,
			Err: fmt.Errorf("%w: transport must be https or ssh", ErrInvalidSpec)}
	}
	return nil
}

func validateRepoURL(url string) error {
	if url == "" {
		return fmt.Errorf("%w: repoUrl required", ErrInvalidSpec)
	}
	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "git@") ||
		strings.HasPrefix(url, "ssh://") || strings.HasPrefix(url, "file://") {
		return nil
	}
	return fmt.Errorf("%w: unsupported repoUrl %q", ErrInvalidSpec, url)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
