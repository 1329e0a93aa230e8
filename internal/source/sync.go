package source

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agenthub-dev/agenthub/internal/config"
	"github.com/agenthub-dev/agenthub/internal/events"
	"github.com/agenthub-dev/agenthub/internal/secrets"
)

// Syncer fetches and updates source working copies. Syncs of different
// sources may run in parallel; syncs of the same source are serialized
// so a working copy is never mutated by two fetches at once.
type Syncer struct {
	paths    *config.Paths
	registry *Registry
	creds    *secrets.Store
	git      *Git
	bus      *events.Bus
	log      zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSyncer creates a Syncer.
func NewSyncer(paths *config.Paths, registry *Registry, creds *secrets.Store, git *Git, bus *events.Bus, log zerolog.Logger) *Syncer {
	return &Syncer{
		paths:    paths,
		registry: registry,
		creds:    creds,
		git:      git,
		bus:      bus,
		log:      log.With().Str("component", "syncer").Logger(),
		locks:    map[string]*sync.Mutex{},
	}
}

// Sync brings a source's working copy up to date and records the result
// in the registry. On failure the prior working copy and revision are
// left untouched: sync never destroys a last-known-good copy.
func (s *Syncer) Sync(ctx context.Context, src *Source) (*SyncResult, error) {
	lock := s.sourceLock(src.ID)
	lock.Lock()
	defer lock.Unlock()

	token, err := s.token(src)
	if err != nil {
		return nil, &SourceError{Op: "sync", Source: src.ID, Err: err}
	}

	dir := s.paths.SourceDir(src.ID)
	revision, gitErr := s.git.CloneOrUpdate(ctx, src.RepoURL, dir, token)
	if gitErr != nil {
		syncErr := newSyncError(src.ID, "fetch", gitErr)
		if recErr := s.registry.RecordSync(src.ID, "", syncErr); recErr != nil {
			s.log.Error().Err(recErr).Str("source", src.ID).Msg("record sync failure")
		}
		s.log.Warn().Str("source", src.ID).Str("error", syncErr.Detail).Msg("sync failed")
		s.bus.Emit(events.ChannelSource, "source.sync_failed", map[string]any{
			"sourceId": src.ID,
			"error":    syncErr.Detail,
		}, "")
		return nil, syncErr
	}

	if err := s.registry.RecordSync(src.ID, revision, nil); err != nil {
		return nil, err
	}
	s.log.Info().Str("source", src.ID).Str("revision", revision).Msg("source synced")
	s.bus.Emit(events.ChannelSource, "source.synced", map[string]any{
		"sourceId": src.ID,
		"revision": revision,
	}, "")
	return &SyncResult{Revision: revision, LocalPath: dir}, nil
}

// AuthCheck probes the remote with the source's stored credential. Run
// right after registration or a credential update so a bad token fails
// fast instead of surfacing at the next catalog build.
func (s *Syncer) AuthCheck(ctx context.Context, src *Source) AuthResult {
	token, err := s.token(src)
	if err != nil {
		return AuthResult{OK: false, Message: "credential unavailable"}
	}
	if err := s.git.LsRemote(ctx, src.RepoURL, token); err != nil {
		return AuthResult{OK: false, Message: newSyncError(src.ID, "ls-remote", err).Detail}
	}
	return AuthResult{OK: true, Message: "authentication ok"}
}

// LocalPath returns a source's working copy directory if one exists.
func (s *Syncer) LocalPath(src *Source) (string, bool) {
	dir := s.paths.SourceDir(src.ID)
	if _, err := os.Stat(dir); err != nil {
		return "", false
	}
	return dir, true
}

// RemoveWorkingCopy deletes a source's working copy, used when the
// source itself is removed.
func (s *Syncer) RemoveWorkingCopy(src *Source) error {
	lock := s.sourceLock(src.ID)
	lock.Lock()
	defer lock.Unlock()
	return os.RemoveAll(s.paths.SourceDir(src.ID))
}

func (s *Syncer) token(src *Source) (string, error) {
	if src.CredentialRef == "" {
		return "", nil
	}
	token, err := s.creds.Token(src.ID)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			// Ref points at a deleted credential; sync anonymously.
			return "", nil
		}
		return "", err
	}
	return token, nil
}

func (s *Syncer) sourceLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}
