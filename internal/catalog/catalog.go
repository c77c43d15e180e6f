package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openarcade/gameshelf/internal/domain"
)

// Entry is one game as written in games.yaml. The mapping key supplies the id.
type Entry struct {
	Name    string   `yaml:"name"`
	Tagline string   `yaml:"tagline,omitempty"`
	License string   `yaml:"license,omitempty"`
	Repo    string   `yaml:"repo"`
	Branch  string   `yaml:"branch,omitempty"`
	Build   []string `yaml:"build,omitempty"`
	Index   string   `yaml:"index,omitempty"`
	Mobile  bool     `yaml:"mobile,omitempty"`
	Desktop bool     `yaml:"desktop,omitempty"`
}

// Catalog is the parsed games.yaml. IDs keeps the file's entry order, which
// downstream reports preserve.
type Catalog struct {
	Source string
	IDs    []string
	Games  map[string]domain.GameSpec
}

type fileFormat struct {
	Games yaml.Node `yaml:"games"`
}

// Load reads the catalog at path. When the file does not exist the embedded
// default catalog is returned, with Source set to "embedded".
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Embedded()
		}
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	cat, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	cat.Source = path
	return cat, nil
}

// Embedded parses the catalog compiled into the binary.
func Embedded() (*Catalog, error) {
	cat, err := parse(embeddedCatalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: embedded: %w", err)
	}
	cat.Source = "embedded"
	return cat, nil
}

// parse decodes the games mapping while keeping the key order of the file.
// Per-spec validation is left to the caller; a spec that fails Validate still
// loads here so a batch can report it as a failed job instead of refusing the
// whole catalog.
func parse(data []byte) (*Catalog, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, err
	}
	if ff.Games.Kind == 0 {
		return nil, fmt.Errorf("no games mapping")
	}
	if ff.Games.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("games must be a mapping of id to entry")
	}

	cat := &Catalog{Games: make(map[string]domain.GameSpec, len(ff.Games.Content)/2)}
	for i := 0; i+1 < len(ff.Games.Content); i += 2 {
		keyNode := ff.Games.Content[i]
		valNode := ff.Games.Content[i+1]

		id := keyNode.Value
		if id == "" {
			return nil, fmt.Errorf("line %d: empty game id", keyNode.Line)
		}
		if _, dup := cat.Games[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate game id %q", keyNode.Line, id)
		}

		var entry Entry
		if err := valNode.Decode(&entry); err != nil {
			return nil, fmt.Errorf("game %q: %w", id, err)
		}

		cat.IDs = append(cat.IDs, id)
		cat.Games[id] = domain.GameSpec{
			ID:         id,
			Name:       entry.Name,
			Tagline:    entry.Tagline,
			License:    entry.License,
			RepoURL:    entry.Repo,
			Branch:     entry.Branch,
			BuildSteps: entry.Build,
			IndexFile:  entry.Index,
			Mobile:     entry.Mobile,
			Desktop:    entry.Desktop,
		}
	}
	return cat, nil
}

// Len returns the number of games in the catalog.
func (c *Catalog) Len() int {
	return len(c.IDs)
}

// Ordered returns the specs in the order they appear in the file.
func (c *Catalog) Ordered() []domain.GameSpec {
	specs := make([]domain.GameSpec, 0, len(c.IDs))
	for _, id := range c.IDs {
		specs = append(specs, c.Games[id])
	}
	return specs
}
