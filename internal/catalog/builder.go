package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agenthub-dev/agenthub/internal/source"
)

// Fetcher is the slice of the source syncer the builder needs.
type Fetcher interface {
	Sync(ctx context.Context, src *source.Source) (*source.SyncResult, error)
	LocalPath(src *source.Source) (string, bool)
}

// Builder produces catalogs from enabled sources and keeps one cached
// snapshot per kind. A new catalog replaces the cached one atomically
// only once fully built; readers never see a partial build.
type Builder struct {
	registry *source.Registry
	fetcher  Fetcher
	cacheDir string
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cache  map[source.Kind]*Catalog
	loaded map[source.Kind]bool // disk cache probed
}

// NewBuilder creates a Builder. ttl is how long a cached catalog is
// served without rebuilding.
func NewBuilder(registry *source.Registry, fetcher Fetcher, cacheDir string, ttl time.Duration, log zerolog.Logger) *Builder {
	return &Builder{
		registry: registry,
		fetcher:  fetcher,
		cacheDir: cacheDir,
		ttl:      ttl,
		log:      log.With().Str("component", "catalog").Logger(),
		now:      time.Now,
		cache:    map[source.Kind]*Catalog{},
		loaded:   map[source.Kind]bool{},
	}
}

// Build returns the catalog for a kind. A fresh cached catalog is served
// as-is unless forceRefresh is set; a failed rebuild falls back to the
// last good catalog with stale=true. Build only errors when there is
// neither a buildable source nor any cached catalog.
func (b *Builder) Build(ctx context.Context, kind source.Kind, forceRefresh bool) (*Catalog, error) {
	b.mu.Lock()
	b.loadDiskCacheLocked(kind)
	if c := b.cache[kind]; c != nil && !forceRefresh {
		if age := b.now().Sub(c.GeneratedAt); age < b.ttl {
			snap := b.snapshotLocked(c, false, "")
			b.mu.Unlock()
			return snap, nil
		}
	}
	b.mu.Unlock()

	built, err := b.rebuild(ctx, kind, forceRefresh)
	if err != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c := b.cache[kind]; c != nil {
			b.log.Warn().Str("kind", string(kind)).Err(err).Msg("serving stale catalog")
			return b.snapshotLocked(c, true, err.Error()), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev := b.cache[kind]; prev != nil {
		built.Version = prev.Version + 1
	} else {
		built.Version = 1
	}
	b.cache[kind] = built
	b.writeDiskCacheLocked(kind, built)
	return b.snapshotLocked(built, false, ""), nil
}

// Cached returns the current cached catalog without triggering a build.
func (b *Builder) Cached(kind source.Kind) (*Catalog, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadDiskCacheLocked(kind)
	c := b.cache[kind]
	if c == nil {
		return nil, false
	}
	return b.snapshotLocked(c, false, ""), true
}

func (b *Builder) rebuild(ctx context.Context, kind source.Kind, resync bool) (*Catalog, error) {
	srcs := b.registry.EnabledFor(kind)

	if resync {
		var g errgroup.Group
		for _, src := range srcs {
			g.Go(func() error {
				if _, err := b.fetcher.Sync(ctx, src); err != nil {
					// Recorded as lastError by the syncer; the
					// last-known-good copy still feeds the build.
					b.log.Warn().Str("source", src.ID).Msg("refresh failed, using existing copy")
				}
				return nil
			})
		}
		g.Wait()
	}

	cat := &Catalog{
		GeneratedAt: b.now(),
		Kind:        kind,
		Entries:     []Entry{},
		Sources:     b.registry.Views(),
	}

	failed := 0
	for _, src := range srcs {
		entries, err := b.buildSource(ctx, src, kind)
		if err != nil {
			failed++
			cat.Warnings = append(cat.Warnings,
				fmt.Sprintf("source %s: %v", src.ID, err))
			continue
		}
		cat.Entries = append(cat.Entries, entries...)
	}

	if len(srcs) > 0 && failed == len(srcs) {
		return nil, fmt.Errorf("all %d sources failed to build", failed)
	}
	return cat, nil
}

// buildSource reads one source's content root for a kind. A missing root
// just yields no entries; the source may publish only the other kind.
func (b *Builder) buildSource(ctx context.Context, src *source.Source, kind source.Kind) ([]Entry, error) {
	dir, ok := b.fetcher.LocalPath(src)
	if !ok {
		res, err := b.fetcher.Sync(ctx, src)
		if err != nil {
			return nil, err
		}
		dir = res.LocalPath
	}

	mirror := src.Mirror(kind)
	root := filepath.Join(dir, filepath.FromSlash(mirror.Root))
	dirents, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	byName := map[string]Entry{}
	var names []string
	for _, de := range dirents {
		if !de.IsDir() || de.Name()[0] == '.' {
			continue
		}
		pkgDir := filepath.Join(root, de.Name())
		m, err := readManifest(pkgDir, kind)
		if err != nil {
			b.log.Warn().Str("source", src.ID).Str("dir", de.Name()).Err(err).Msg("bad manifest, skipping")
			continue
		}
		name := m.Name
		if name == "" {
			name = de.Name()
		}

		entry := Entry{
			PackageID:   src.ID + "/" + name,
			SourceID:    src.ID,
			Name:        name,
			Description: m.Description,
			Category:    resolveCategory(m.Category, name),
			Resources:   listResources(pkgDir),
			Version:     m.Version,
			LocalPath:   pkgDir,
		}
		if info, err := os.Stat(pkgDir); err == nil {
			t := info.ModTime()
			entry.UpdatedAt = &t
		}

		// Two package dirs may declare the same manifest name; the
		// newest version wins.
		if prev, ok := byName[name]; ok {
			if !newerVersion(entry.Version, prev.Version) {
				continue
			}
		} else {
			names = append(names, name)
		}
		byName[name] = entry
	}

	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, byName[name])
	}
	return entries, nil
}

// newerVersion reports whether a is a strictly newer semver than b.
// Unparseable versions lose to parseable ones.
func newerVersion(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA != nil:
		return false
	case errB != nil:
		return true
	default:
		return va.GreaterThan(vb)
	}
}

// snapshotLocked copies the cached catalog with per-read staleness
// fields filled in. Entries are shared read-only.
func (b *Builder) snapshotLocked(c *Catalog, stale bool, reason string) *Catalog {
	snap := *c
	age := b.now().Sub(c.GeneratedAt)
	snap.CacheAgeSeconds = int(age.Seconds())
	snap.NextRefreshAt = c.GeneratedAt.Add(b.ttl)
	snap.Stale = stale || age >= b.ttl
	if stale {
		snap.StaleReason = reason
	} else if snap.Stale {
		snap.StaleReason = "cache expired"
	}
	return &snap
}

func (b *Builder) cacheFile(kind source.Kind) string {
	return filepath.Join(b.cacheDir, fmt.Sprintf("catalog-%s.json", kind))
}

func (b *Builder) loadDiskCacheLocked(kind source.Kind) {
	if b.loaded[kind] {
		return
	}
	b.loaded[kind] = true

	data, err := os.ReadFile(b.cacheFile(kind))
	if err != nil {
		return
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		b.log.Warn().Str("kind", string(kind)).Err(err).Msg("discarding corrupt catalog cache")
		return
	}
	b.cache[kind] = &c
}

func (b *Builder) writeDiskCacheLocked(kind source.Kind, c *Catalog) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(b.cacheDir, 0755); err != nil {
		return
	}
	if err := os.WriteFile(b.cacheFile(kind), data, 0644); err != nil {
		b.log.Warn().Err(err).Msg("write catalog cache")
	}
}
