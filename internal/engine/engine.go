package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agenthub-dev/agenthub/internal/catalog"
	"github.com/agenthub-dev/agenthub/internal/events"
	"github.com/agenthub-dev/agenthub/internal/source"
	"github.com/agenthub-dev/agenthub/internal/state"
	"github.com/agenthub-dev/agenthub/internal/symlink"
	"github.com/agenthub-dev/agenthub/internal/target"
)

// Linker is the slice of the symlink manager the engine needs, kept as
// an interface so tests can simulate platforms without symlink support.
type Linker interface {
	Create(linkPath, targetPath string) error
	Remove(path string) error
	Inspect(path string) (*symlink.Info, error)
}

// Engine is the reconciler. All durable state flows through the
// injected stores; the engine itself only holds per-path locks.
type Engine struct {
	registry   *source.Registry
	builder    *catalog.Builder
	states     *state.Store
	resolver   *target.Resolver
	links      Linker
	bus        *events.Bus
	log        zerolog.Logger
	sourcesDir string

	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

// New creates an Engine. sourcesDir is the root of all source working
// copies; a symlink is only considered engine-owned if it resolves
// under it.
func New(registry *source.Registry, builder *catalog.Builder, states *state.Store,
	resolver *target.Resolver, links Linker, bus *events.Bus, sourcesDir string, log zerolog.Logger) *Engine {
	return &Engine{
		registry:   registry,
		builder:    builder,
		states:     states,
		resolver:   resolver,
		links:      links,
		bus:        bus,
		log:        log.With().Str("component", "engine").Logger(),
		sourcesDir: sourcesDir,
		pathLocks:  map[string]*sync.Mutex{},
	}
}

// Apply runs one reconciliation operation across all resolved targets.
// Targets are processed concurrently and independently; a failing
// target populates its own report's errors and never aborts the batch.
func (e *Engine) Apply(ctx context.Context, op Operation, req Request) (*OperationReport, error) {
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	resolved, err := e.resolver.Resolve(req.Targets, req.Kind, req.Scope, req.ProjectPath)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if len(resolved) == 0 {
		return nil, &ValidationError{Msg: fmt.Sprintf("no eligible targets for kind %s", req.Kind)}
	}
	resolved = dedupeByPath(resolved)

	cat, err := e.builder.Build(ctx, req.Kind, false)
	if err != nil {
		// Uninstalls only need the catalog for the drift scan; adds
		// cannot proceed without one.
		if op != OpUninstall {
			return nil, err
		}
		if !errors.Is(err, catalog.ErrUnavailable) {
			return nil, err
		}
		cat = &catalog.Catalog{Kind: req.Kind}
	}

	report := &OperationReport{
		OperationID: uuid.NewString(),
		Operation:   op,
	}
	e.bus.Emit(events.ChannelOperation, "operation.started", map[string]any{
		"operation": op,
		"kind":      req.Kind,
		"targets":   len(resolved),
	}, report.OperationID)

	var (
		repMu   sync.Mutex
		reports = make([]TargetReport, 0, len(resolved))
	)
	var g errgroup.Group
	for _, res := range resolved {
		g.Go(func() error {
			tr := e.reconcileTarget(ctx, op, req, res, cat, report.OperationID)
			repMu.Lock()
			reports = append(reports, tr)
			repMu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Deterministic report order regardless of completion order.
	for _, res := range resolved {
		for i := range reports {
			if reports[i].InstallPath == res.InstallPath {
				report.Reports = append(report.Reports, reports[i])
				break
			}
		}
	}

	e.bus.Emit(events.ChannelOperation, "operation.completed", report, report.OperationID)
	return report, nil
}

func validateRequest(op Operation, req Request) error {
	switch op {
	case OpInstall, OpUninstall, OpSync:
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown operation %q", op)}
	}
	switch req.Mode {
	case state.ModeSymlink, state.ModeCopy, "":
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown mode %q", req.Mode)}
	}
	if (op == OpInstall || op == OpUninstall) && len(req.Selection) == 0 {
		return &ValidationError{Msg: "selection must not be empty"}
	}
	return nil
}

// dedupeByPath drops resolved targets repeating an install path, such
// as a request naming the same target twice, so each path is reconciled
// and reported exactly once.
func dedupeByPath(resolved []target.Resolved) []target.Resolved {
	seen := map[string]bool{}
	out := resolved[:0]
	for _, res := range resolved {
		if seen[res.InstallPath] {
			continue
		}
		seen[res.InstallPath] = true
		out = append(out, res)
	}
	return out
}

// pathLock serializes all work on one install path. Reconciliation of
// different paths may interleave freely.
func (e *Engine) pathLock(installPath string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.pathLocks[installPath]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.pathLocks[installPath] = l
	return l
}
