// Package source manages the registry of content-providing repositories
// and their local working copies. A repository registers once and gets a
// single canonical Source with up to two capability mirrors (skills,
// hooks) that share identity and credentials but keep independent
// enablement and sync bookkeeping.
package source

import "time"

// Kind is a catalog content kind a source can publish.
type Kind string

const (
	KindSkill Kind = "skill"
	KindHook  Kind = "hook"
)

// Kinds lists all content kinds in canonical order.
func Kinds() []Kind {
	return []Kind{KindSkill, KindHook}
}

// Transport is how a source repository is fetched.
type Transport string

const (
	TransportHTTPS Transport = "https"
	TransportSSH   Transport = "ssh"
)

// Mirror is the per-kind slice of a source: where the content lives in
// the repository and how its last sync went.
type Mirror struct {
	Root       string    `toml:"root"` // content root inside the repo, e.g. "skills"
	Enabled    bool      `toml:"enabled"`
	Revision   string    `toml:"revision,omitempty"`
	LastSyncAt time.Time `toml:"last_sync_at,omitempty"`
	LastError  string    `toml:"last_error,omitempty"`
}

// Source is one registered repository.
type Source struct {
	ID            string    `toml:"id"`
	Name          string    `toml:"name"`
	RepoURL       string    `toml:"repo_url"`
	Transport     Transport `toml:"transport"`
	Official      bool      `toml:"official"`
	Removable     bool      `toml:"removable"`
	CredentialRef string    `toml:"credential_ref,omitempty"`

	Skills *Mirror `toml:"skills,omitempty"`
	Hooks  *Mirror `toml:"hooks,omitempty"`
}

// Mirror returns the mirror for a kind, or nil if the source does not
// publish that kind.
func (s *Source) Mirror(kind Kind) *Mirror {
	switch kind {
	case KindSkill:
		return s.Skills
	case KindHook:
		return s.Hooks
	}
	return nil
}

// EnabledFor reports whether the source publishes kind and that mirror
// is enabled.
func (s *Source) EnabledFor(kind Kind) bool {
	m := s.Mirror(kind)
	return m != nil && m.Enabled
}

// Enabled is the merged enablement flag: OR across mirrors.
func (s *Source) Enabled() bool {
	return s.EnabledFor(KindSkill) || s.EnabledFor(KindHook)
}

// View is the merged single-row presentation of a source used by list
// endpoints: one entry per repository regardless of mirror count.
type View struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	RepoURL       string     `json:"repoUrl"`
	Transport     Transport  `json:"transport"`
	Official      bool       `json:"official"`
	Enabled       bool       `json:"enabled"`
	Removable     bool       `json:"removable"`
	HasCredential bool       `json:"hasCredential"`
	CredentialRef string     `json:"credentialRef,omitempty"`
	SkillsRoot    string     `json:"skillsRoot,omitempty"`
	HooksRoot     string     `json:"hooksRoot,omitempty"`
	Revision      string     `json:"revision,omitempty"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// RegisterSpec is the input for registering a new source. At least one
// of SkillsRoot/HooksRoot must be set.
type RegisterSpec struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RepoURL    string    `json:"repoUrl"`
	Transport  Transport `json:"transport"`
	SkillsRoot string    `json:"skillsRoot,omitempty"`
	HooksRoot  string    `json:"hooksRoot,omitempty"`
	Token      string    `json:"token,omitempty"`
}

// UpdateSpec is a partial update; nil fields are left untouched.
type UpdateSpec struct {
	Name          *string    `json:"name,omitempty"`
	RepoURL       *string    `json:"repoUrl,omitempty"`
	Transport     *Transport `json:"transport,omitempty"`
	Enabled       *bool      `json:"enabled,omitempty"`       // both mirrors
	SkillsEnabled *bool      `json:"skillsEnabled,omitempty"` // skills mirror only
	HooksEnabled  *bool      `json:"hooksEnabled,omitempty"`  // hooks mirror only
	SkillsRoot    *string    `json:"skillsRoot,omitempty"`
	HooksRoot     *string    `json:"hooksRoot,omitempty"`
	Token         *string    `json:"token,omitempty"` // empty string deletes
}

// SyncResult is what a successful sync reports back.
type SyncResult struct {
	Revision  string `json:"revision"`
	LocalPath string `json:"localPath"`
}

// AuthResult is the outcome of a credential check against the remote.
type AuthResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
