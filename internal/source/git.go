package source

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// runner executes a git invocation and returns combined output. Swapped
// out in tests.
type runner func(ctx context.Context, dir string, args ...string) (string, error)

func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Never let git block on an interactive credential prompt.
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_SSH_COMMAND=ssh -oBatchMode=yes",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Git drives the git CLI for source working copies.
type Git struct {
	run runner
}

// NewGit returns a Git backed by the git executable.
func NewGit() *Git {
	return &Git{run: execGit}
}

// CloneOrUpdate ensures dir holds an up-to-date shallow working copy of
// url and returns the checked-out revision. An existing copy is fetched
// and hard-reset; a fresh one is cloned with depth 1.
func (g *Git) CloneOrUpdate(ctx context.Context, url, dir, token string) (string, error) {
	authURL := injectToken(url, token)

	if _, err := os.Stat(dir + "/.git"); err == nil {
		if _, err := g.run(ctx, dir, "fetch", "--depth", "1", authURL); err != nil {
			return "", err
		}
		if _, err := g.run(ctx, dir, "reset", "--hard", "FETCH_HEAD"); err != nil {
			return "", err
		}
	} else {
		if _, err := g.run(ctx, "", "clone", "--depth", "1", authURL, dir); err != nil {
			return "", err
		}
	}
	return g.Revision(ctx, dir)
}

// Revision returns the HEAD commit of a working copy.
func (g *Git) Revision(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// LsRemote probes the remote with the given credentials. It is the
// cheapest round trip that exercises both transport and auth.
func (g *Git) LsRemote(ctx context.Context, url, token string) error {
	_, err := g.run(ctx, "", "ls-remote", "--heads", injectToken(url, token))
	return err
}

// injectToken embeds a token into an https URL as userinfo. SSH URLs are
// left alone; their auth rides on the agent.
func injectToken(url, token string) string {
	if token == "" || !strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://x-access-token:" + token + "@" + strings.TrimPrefix(url, "https://")
}
