package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agenthub-dev/agenthub/internal/secrets"
	"github.com/agenthub-dev/agenthub/internal/source"
)

// fakeFetcher serves pre-built working copy directories and counts sync
// attempts.
type fakeFetcher struct {
	mu    sync.Mutex
	dirs  map[string]string
	fail  map[string]error
	syncs int
}

func (f *fakeFetcher) Sync(ctx context.Context, src *source.Source) (*source.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	if err := f.fail[src.ID]; err != nil {
		return nil, err
	}
	dir, ok := f.dirs[src.ID]
	if !ok {
		return nil, errors.New("no working copy")
	}
	return &source.SyncResult{Revision: "abc123", LocalPath: dir}, nil
}

func (f *fakeFetcher) LocalPath(src *source.Source) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[src.ID] != nil {
		return "", false
	}
	dir, ok := f.dirs[src.ID]
	return dir, ok
}

func (f *fakeFetcher) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}

func (f *fakeFetcher) failSource(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = err
}

type builderFixture struct {
	registry *source.Registry
	fetcher  *fakeFetcher
	cacheDir string
}

// newBuilderFixture registers the source "acme" with packages dev and
// review, and disables the seeded official source so only fixture
// sources feed the build.
func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()
	dir := t.TempDir()
	creds := secrets.NewStore(filepath.Join(dir, "secrets"))
	reg, err := source.LoadRegistry(filepath.Join(dir, "sources.toml"), creds)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	off := false
	if _, err := reg.Update("agenthub", source.UpdateSpec{Enabled: &off}); err != nil {
		t.Fatalf("disable official source: %v", err)
	}
	if _, err := reg.Register(source.RegisterSpec{
		ID: "acme", RepoURL: "https://x/acme", SkillsRoot: "skills",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	copyDir := filepath.Join(dir, "copies", "acme")
	writeFile(t, filepath.Join(copyDir, "skills", "dev", "skill.yaml"),
		"name: dev\ndescription: Development workflow\nversion: 1.0.0\n")
	writeFile(t, filepath.Join(copyDir, "skills", "review", "SKILL.md"),
		"---\nname: review\n---\n# Review\n")

	return &builderFixture{
		registry: reg,
		fetcher: &fakeFetcher{
			dirs: map[string]string{"acme": copyDir},
			fail: map[string]error{},
		},
		cacheDir: filepath.Join(dir, "cache"),
	}
}

func (fx *builderFixture) builder(ttl time.Duration) *Builder {
	return NewBuilder(fx.registry, fx.fetcher, fx.cacheDir, ttl, zerolog.Nop())
}

func TestBuildProducesEntries(t *testing.T) {
	fx := newBuilderFixture(t)
	b := fx.builder(time.Minute)

	cat, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cat.Version != 1 || cat.Kind != source.KindSkill || cat.Stale {
		t.Errorf("catalog meta = version=%d kind=%s stale=%v", cat.Version, cat.Kind, cat.Stale)
	}
	if len(cat.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(cat.Entries))
	}
	dev := cat.Find("acme/dev", "", "")
	if dev == nil {
		t.Fatal("Find(acme/dev) = nil")
	}
	if dev.SourceID != "acme" || dev.Description != "Development workflow" || dev.Version != "1.0.0" {
		t.Errorf("entry = %+v", dev)
	}
	if dev.Category != CategoryRole {
		t.Errorf("Category = %q, want role from the name default", dev.Category)
	}
	if dev.LocalPath == "" {
		t.Error("entry missing LocalPath")
	}
	if len(dev.Resources) == 0 {
		t.Error("entry missing resources")
	}
}

func TestBuildServesFreshCacheWithoutResync(t *testing.T) {
	fx := newBuilderFixture(t)
	b := fx.builder(time.Minute)

	first, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := fx.fetcher.syncCount()

	second, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if fx.fetcher.syncCount() != before {
		t.Error("fresh cached Build hit the fetcher")
	}
	if second.Version != first.Version {
		t.Errorf("version changed on cached read: %d -> %d", first.Version, second.Version)
	}
}

func TestForceRefreshResyncsAndBumpsVersion(t *testing.T) {
	fx := newBuilderFixture(t)
	b := fx.builder(time.Minute)

	first, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := fx.fetcher.syncCount()

	second, err := b.Build(context.Background(), source.KindSkill, true)
	if err != nil {
		t.Fatalf("force Build: %v", err)
	}
	if fx.fetcher.syncCount() <= before {
		t.Error("force refresh did not resync")
	}
	if second.Version != first.Version+1 {
		t.Errorf("version = %d, want %d", second.Version, first.Version+1)
	}
}

func TestFailedRebuildServesStaleCatalog(t *testing.T) {
	fx := newBuilderFixture(t)
	b := fx.builder(time.Minute)

	if _, err := b.Build(context.Background(), source.KindSkill, false); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Expire the cache and break every source.
	b.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	fx.fetcher.failSource("acme", errors.New("network down"))

	cat, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build with broken sources: %v", err)
	}
	if !cat.Stale {
		t.Error("fallback catalog not marked stale")
	}
	if cat.StaleReason == "" {
		t.Error("stale catalog missing a reason")
	}
	if len(cat.Entries) != 2 {
		t.Errorf("stale catalog has %d entries, want the cached 2", len(cat.Entries))
	}
}

func TestBuildUnavailableWithoutCache(t *testing.T) {
	fx := newBuilderFixture(t)
	fx.fetcher.failSource("acme", errors.New("network down"))
	b := fx.builder(time.Minute)

	if _, err := b.Build(context.Background(), source.KindSkill, false); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestDiskCacheSurvivesRestart(t *testing.T) {
	fx := newBuilderFixture(t)
	b := fx.builder(time.Minute)
	if _, err := b.Build(context.Background(), source.KindSkill, false); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// A new builder over the same cache dir sees the snapshot without
	// touching any source.
	fx.fetcher.failSource("acme", errors.New("network down"))
	b2 := fx.builder(time.Minute)
	cat, ok := b2.Cached(source.KindSkill)
	if !ok {
		t.Fatal("Cached = false after restart")
	}
	if len(cat.Entries) != 2 {
		t.Errorf("restored catalog has %d entries, want 2", len(cat.Entries))
	}
}

func TestPartialSourceFailureWarnsAndContinues(t *testing.T) {
	fx := newBuilderFixture(t)
	if _, err := fx.registry.Register(source.RegisterSpec{
		ID: "broken", RepoURL: "https://x/broken", SkillsRoot: "skills",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	fx.fetcher.failSource("broken", errors.New("clone failed"))
	b := fx.builder(time.Minute)

	cat, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cat.Entries) != 2 {
		t.Errorf("got %d entries, want acme's 2", len(cat.Entries))
	}
	if len(cat.Warnings) == 0 {
		t.Error("no warning recorded for the broken source")
	}
}

func TestDuplicateManifestNamesNewestVersionWins(t *testing.T) {
	fx := newBuilderFixture(t)
	copyDir := fx.fetcher.dirs["acme"]
	writeFile(t, filepath.Join(copyDir, "skills", "dev-v2", "skill.yaml"),
		"name: dev\ndescription: Newer dev\nversion: 2.0.0\n")
	b := fx.builder(time.Minute)

	cat, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dev := cat.Find("acme/dev", "", "")
	if dev == nil {
		t.Fatal("Find(acme/dev) = nil")
	}
	if dev.Version != "2.0.0" {
		t.Errorf("Version = %q, want the newer 2.0.0", dev.Version)
	}
	if n := len(cat.Entries); n != 2 {
		t.Errorf("got %d entries, duplicate name not collapsed", n)
	}
}

func TestBareNameResolvesToEarliestRegisteredSource(t *testing.T) {
	fx := newBuilderFixture(t)
	otherDir := filepath.Join(t.TempDir(), "other")
	writeFile(t, filepath.Join(otherDir, "skills", "dev", "skill.yaml"), "name: dev\n")
	if _, err := fx.registry.Register(source.RegisterSpec{
		ID: "other", RepoURL: "https://x/other", SkillsRoot: "skills",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	fx.fetcher.dirs["other"] = otherDir
	b := fx.builder(time.Minute)

	cat, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e := cat.Find("", "", "dev")
	if e == nil {
		t.Fatal("Find(bare dev) = nil")
	}
	if e.SourceID != "acme" {
		t.Errorf("bare name resolved to %q, want the earlier-registered acme", e.SourceID)
	}
	if e2 := cat.Find("", "other", "dev"); e2 == nil || e2.SourceID != "other" {
		t.Errorf("sourceId-qualified lookup = %+v", e2)
	}
}

func TestMissingContentRootYieldsNoEntries(t *testing.T) {
	fx := newBuilderFixture(t)
	if err := os.RemoveAll(filepath.Join(fx.fetcher.dirs["acme"], "skills")); err != nil {
		t.Fatal(err)
	}
	b := fx.builder(time.Minute)

	cat, err := b.Build(context.Background(), source.KindSkill, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cat.Entries) != 0 {
		t.Errorf("entries = %v, want none", cat.Entries)
	}
	if len(cat.Warnings) != 0 {
		t.Errorf("missing root warned: %v", cat.Warnings)
	}
}
