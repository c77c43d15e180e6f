package site

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openarcade/gameshelf/internal/domain"
)

// GameView is one successfully built game as the index page shows it.
type GameView struct {
	ID        string
	Name      string
	Tagline   string
	License   string
	Platforms []string
	Href      string
	Revision  string
	Duration  time.Duration
}

// Page is the root template payload.
type Page struct {
	Title       string
	GeneratedAt time.Time
	Summary     string
	Games       []GameView
}

// Views filters a report down to its successful outcomes, preserving report
// order. Failed and skipped games never reach the page.
func Views(specs map[string]domain.GameSpec, r *domain.BatchReport) []GameView {
	views := make([]GameView, 0, r.Succeeded)
	for _, out := range r.Outcomes {
		if out.Kind != domain.OutcomeSuccess {
			continue
		}
		spec, ok := specs[out.GameID]
		if !ok {
			continue
		}
		views = append(views, GameView{
			ID:        spec.ID,
			Name:      spec.DisplayName(),
			Tagline:   spec.Tagline,
			License:   spec.License,
			Platforms: spec.Platforms(),
			Href:      "./" + spec.ID + "/" + spec.Index(),
			Revision:  shortRevision(out.Revision),
			Duration:  out.Duration.Round(time.Millisecond),
		})
	}
	return views
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// Generator renders the index page into an output root.
type Generator struct {
	title        string
	overridePath string
	logger       *slog.Logger
}

// New creates a generator. overridePath optionally names a template file that
// replaces the embedded one.
func New(title, overridePath string, logger *slog.Logger) *Generator {
	if title == "" {
		title = "gameshelf"
	}
	return &Generator{
		title:        title,
		overridePath: overridePath,
		logger:       logger.With("component", "site"),
	}
}

var indexTemplate = template.Must(template.ParseFS(embeddedFS, "index.tmpl"))

func (g *Generator) template() (*template.Template, error) {
	if g.overridePath == "" {
		return indexTemplate, nil
	}
	data, err := os.ReadFile(g.overridePath)
	if err != nil {
		return nil, fmt.Errorf("read template override: %w", err)
	}
	tmpl, err := template.New(filepath.Base(g.overridePath)).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("compile template override: %w", err)
	}
	return tmpl, nil
}

// Generate renders index.html for the given report into outputRoot. The page
// is rendered to memory first so a template error leaves any existing index
// untouched.
func (g *Generator) Generate(outputRoot string, r *domain.BatchReport, views []GameView) error {
	tmpl, err := g.template()
	if err != nil {
		return err
	}

	page := Page{
		Title:       g.title,
		GeneratedAt: r.FinishedAt,
		Summary:     r.Summary(),
		Games:       views,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		return fmt.Errorf("render index: %w", err)
	}

	target := filepath.Join(outputRoot, "index.html")
	if err := os.WriteFile(target, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	g.logger.Info("index generated", "path", target, "games", len(views))
	return nil
}
