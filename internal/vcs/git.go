// Package vcs wraps the git CLI for the fetch side of a game build.
package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

var allowedSchemes = map[string]bool{
	"https": true,
	"git":   true,
}

// Git runs git subcommands through os/exec. All failures come back as
// errors carrying the captured git output, never panics.
type Git struct {
	logger *slog.Logger
}

// New creates a Git adapter.
func New(logger *slog.Logger) *Git {
	return &Git{logger: logger.With("component", "vcs")}
}

// CheckURL rejects repository URLs whose scheme git should never see.
func CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("repository URL %q does not parse: %w", raw, err)
	}
	if !allowedSchemes[u.Scheme] {
		return fmt.Errorf("unsupported scheme %q in %q (want https or git)", u.Scheme, raw)
	}
	return nil
}

// Clone clones repoURL into dir. The scheme is checked before git runs.
func (g *Git) Clone(ctx context.Context, repoURL, dir string) error {
	if err := CheckURL(repoURL); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "git", "clone", repoURL, dir)
	// a batch build must never hang on a credential prompt
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %s: %w", strings.TrimSpace(string(out)), err)
	}
	g.logger.Debug("cloned", "repo", repoURL, "dir", dir)
	return nil
}

// Checkout switches dir to the given branch or ref.
func (g *Git) Checkout(ctx context.Context, dir, ref string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "checkout", ref)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout %s: %s: %w", ref, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// LatestRevision returns the commit id at HEAD of dir.
func (g *Git) LatestRevision(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
