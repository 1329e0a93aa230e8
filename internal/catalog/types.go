// Package catalog builds the merged package catalog from all enabled
// source working copies. Package ids are recomputed on every build and
// never persisted.
package catalog

import (
	"errors"
	"time"

	"github.com/agenthub-dev/agenthub/internal/source"
)

// ErrUnavailable means no catalog could be built and no cached one
// exists. It is the only hard failure a catalog read can produce.
var ErrUnavailable = errors.New("catalog unavailable: no source reachable and no cache")

// Entry is one installable package in a generated catalog.
type Entry struct {
	PackageID   string     `json:"packageId"` // sourceId + "/" + name
	SourceID    string     `json:"sourceId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Resources   []string   `json:"resources,omitempty"`
	Version     string     `json:"version,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`

	// LocalPath is the package directory inside the source working
	// copy; the reconciler links or copies from here.
	LocalPath string `json:"localPath,omitempty"`
}

// Catalog is one generated, versioned snapshot for a single kind.
type Catalog struct {
	GeneratedAt     time.Time     `json:"generatedAt"`
	Version         int           `json:"version"`
	Kind            source.Kind   `json:"kind"`
	Entries         []Entry       `json:"entries"`
	Sources         []source.View `json:"sources"`
	Stale           bool          `json:"stale"`
	StaleReason     string        `json:"staleReason,omitempty"`
	CacheAgeSeconds int           `json:"cacheAgeSeconds"`
	NextRefreshAt   time.Time     `json:"nextRefreshAt"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// Find resolves a selection to an entry. Resolution order: explicit
// packageId, then sourceId+name, then bare name. Bare names that exist
// in several sources resolve to the earliest-registered one, which is
// the order entries are built in.
func (c *Catalog) Find(packageID, sourceID, name string) *Entry {
	if packageID != "" {
		for i := range c.Entries {
			if c.Entries[i].PackageID == packageID {
				return &c.Entries[i]
			}
		}
		return nil
	}
	for i := range c.Entries {
		e := &c.Entries[i]
		if sourceID != "" {
			if e.SourceID == sourceID && e.Name == name {
				return e
			}
			continue
		}
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Names returns the set of package names in the catalog, used by the
// reconciler's drift scan.
func (c *Catalog) Names() map[string]bool {
	names := make(map[string]bool, len(c.Entries))
	for i := range c.Entries {
		names[c.Entries[i].Name] = true
	}
	return names
}
