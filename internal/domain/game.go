package domain

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var gameIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// recognizedHosts lists the forges catalogs usually point at. Anything else
// still validates; the caller gets a warning so typos surface early without
// locking out self-hosted repositories.
var recognizedHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
	"codeberg.org":  true,
	"git.sr.ht":     true,
}

// BuildStep is one build command, split into program and arguments ahead of
// execution so a malformed step fails validation instead of spawn.
type BuildStep struct {
	Raw     string
	Program string
	Args    []string
}

// ParseStep splits a raw command line on whitespace. Quoting is not
// interpreted; steps that need shell features should invoke sh -c themselves.
func ParseStep(raw string) (BuildStep, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return BuildStep{}, fmt.Errorf("empty build step")
	}
	return BuildStep{Raw: raw, Program: fields[0], Args: fields[1:]}, nil
}

// ValidationError reports a spec that cannot be built. Phase names the stage
// the bad field would have blocked, so outcomes can attribute it.
type ValidationError struct {
	Field string
	Phase Phase
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// GameSpec describes one game to fetch and build. Specs are plain values:
// construct, Validate once, then treat as read-only.
type GameSpec struct {
	ID         string
	Name       string
	Tagline    string
	License    string
	RepoURL    string
	Branch     string
	BuildSteps []string
	IndexFile  string
	Mobile     bool
	Desktop    bool
}

// Validate checks the spec's structural invariants and parses its build
// steps. It returns the parsed steps along with non-fatal warnings. The
// error, when non-nil, is a *ValidationError.
func (g GameSpec) Validate() ([]BuildStep, []string, error) {
	if g.ID == "" {
		return nil, nil, &ValidationError{Field: "id", Phase: PhaseClone, Msg: "must not be empty"}
	}
	if !gameIDRegex.MatchString(g.ID) {
		return nil, nil, &ValidationError{
			Field: "id",
			Phase: PhaseClone,
			Msg:   fmt.Sprintf("%q is not a valid id (want lowercase letters, digits, hyphens)", g.ID),
		}
	}

	u, err := url.Parse(g.RepoURL)
	if err != nil {
		return nil, nil, &ValidationError{Field: "repo", Phase: PhaseClone, Msg: fmt.Sprintf("%q does not parse as a URL", g.RepoURL)}
	}
	switch u.Scheme {
	case "https", "git":
	default:
		return nil, nil, &ValidationError{
			Field: "repo",
			Phase: PhaseClone,
			Msg:   fmt.Sprintf("unsupported scheme %q (want https or git)", u.Scheme),
		}
	}
	if u.Host == "" {
		return nil, nil, &ValidationError{Field: "repo", Phase: PhaseClone, Msg: "URL has no host"}
	}

	var warnings []string
	if !recognizedHosts[u.Host] {
		warnings = append(warnings, fmt.Sprintf("unrecognized repository host %q", u.Host))
	}
	if g.Name == "" {
		warnings = append(warnings, "no display name, pages will show the id")
	}

	if g.IndexFile != "" {
		clean := path.Clean(g.IndexFile)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, nil, &ValidationError{
				Field: "index",
				Phase: PhaseBuild,
				Msg:   fmt.Sprintf("%q escapes the game directory", g.IndexFile),
			}
		}
	}

	steps := make([]BuildStep, 0, len(g.BuildSteps))
	for i, raw := range g.BuildSteps {
		step, err := ParseStep(raw)
		if err != nil {
			return nil, nil, &ValidationError{
				Field: "build",
				Phase: PhaseBuild,
				Msg:   fmt.Sprintf("step %d: %v", i+1, err),
			}
		}
		steps = append(steps, step)
	}
	return steps, warnings, nil
}

// DisplayName returns the name to show on pages, falling back to the id.
func (g GameSpec) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// Index returns the entry page path relative to the game's directory.
func (g GameSpec) Index() string {
	if g.IndexFile != "" {
		return path.Clean(g.IndexFile)
	}
	return "index.html"
}

// Platforms renders the mobile/desktop flags as badge labels.
func (g GameSpec) Platforms() []string {
	var p []string
	if g.Desktop {
		p = append(p, "desktop")
	}
	if g.Mobile {
		p = append(p, "mobile")
	}
	return p
}
