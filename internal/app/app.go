// Package app wires the agenthub components together. Both the CLI and
// the daemon build the same App; nothing in here is a global.
package app

import (
	"github.com/rs/zerolog"

	"github.com/agenthub-dev/agenthub/internal/catalog"
	"github.com/agenthub-dev/agenthub/internal/config"
	"github.com/agenthub-dev/agenthub/internal/engine"
	"github.com/agenthub-dev/agenthub/internal/events"
	"github.com/agenthub-dev/agenthub/internal/secrets"
	"github.com/agenthub-dev/agenthub/internal/source"
	"github.com/agenthub-dev/agenthub/internal/state"
	"github.com/agenthub-dev/agenthub/internal/symlink"
	"github.com/agenthub-dev/agenthub/internal/target"
)

// App holds one fully wired engine instance and its collaborators.
type App struct {
	Paths    *config.Paths
	Settings *config.Settings
	Log      zerolog.Logger

	Secrets  *secrets.Store
	Registry *source.Registry
	Syncer   *source.Syncer
	Builder  *catalog.Builder
	States   *state.Store
	Resolver *target.Resolver
	Bus      *events.Bus
	Tickets  *events.TicketStore
	Engine   *engine.Engine
}

// New resolves paths, loads settings and constructs every component.
func New(log zerolog.Logger) (*App, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(paths)
	if err != nil {
		return nil, err
	}

	resolver, err := target.NewResolver()
	if err != nil {
		return nil, err
	}

	return build(paths, settings, resolver, log)
}

// NewAt is New with explicit paths, settings and home, for tests.
func NewAt(paths *config.Paths, settings *config.Settings, home string, log zerolog.Logger) (*App, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	return build(paths, settings, target.NewResolverAt(home), log)
}

func build(paths *config.Paths, settings *config.Settings, resolver *target.Resolver, log zerolog.Logger) (*App, error) {
	creds := secrets.NewStore(paths.SecretsDir)

	registry, err := source.LoadRegistry(paths.RegistryFile(), creds)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(settings.HeartbeatInterval, log)
	tickets := events.NewTicketStore(settings.TicketTTL)
	syncer := source.NewSyncer(paths, registry, creds, source.NewGit(), bus, log)
	builder := catalog.NewBuilder(registry, syncer, paths.CacheDir, settings.CatalogCacheTTL, log)
	states := state.NewStore(paths.StateDir)

	eng := engine.New(registry, builder, states, resolver, symlink.New(), bus, paths.SourcesDir, log)

	return &App{
		Paths:    paths,
		Settings: settings,
		Log:      log,
		Secrets:  creds,
		Registry: registry,
		Syncer:   syncer,
		Builder:  builder,
		States:   states,
		Resolver: resolver,
		Bus:      bus,
		Tickets:  tickets,
		Engine:   eng,
	}, nil
}
