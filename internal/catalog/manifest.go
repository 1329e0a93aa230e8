package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/agenthub-dev/agenthub/internal/source"
)

// Manifest is the package metadata a source publishes alongside its
// content. Skills carry it as skill.yaml or as YAML frontmatter in
// SKILL.md; hooks as hook.yaml.
type Manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Version     string `yaml:"version"`
}

var frontmatterDelim = []byte("---")

// readManifest loads the manifest for one package directory. A missing
// manifest is not fatal: the directory name stands in for the name and
// everything else stays empty.
func readManifest(dir string, kind source.Kind) (*Manifest, error) {
	candidates := []string{"skill.yaml", "skill.yml", "SKILL.md"}
	if kind == source.KindHook {
		candidates = []string{"hook.yaml", "hook.yml", "HOOK.md"}
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		if filepath.Ext(name) == ".md" {
			data, err = extractFrontmatter(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}

		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &m, nil
	}

	return &Manifest{Name: filepath.Base(dir)}, nil
}

// extractFrontmatter returns the YAML between the leading "---" fence
// pair of a markdown document.
func extractFrontmatter(data []byte) ([]byte, error) {
	trimmed := bytes.TrimLeft(data, "\uFEFF \t\r\n")
	if !bytes.HasPrefix(trimmed, frontmatterDelim) {
		return nil, fmt.Errorf("no frontmatter")
	}
	rest := trimmed[len(frontmatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontmatterDelim...))
	if end < 0 {
		return nil, fmt.Errorf("unterminated frontmatter")
	}
	return rest[:end], nil
}

// listResources returns the file names inside a package directory,
// relative to it, depth-first.
func listResources(dir string) []string {
	var resources []string
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		resources = append(resources, filepath.ToSlash(rel))
		return nil
	})
	return resources
}
