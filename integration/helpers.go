//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"testing"
)

// TempDBPath returns a fresh sqlite path under a test temp directory.
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "history.db")
}

// WriteCatalog writes a games.yaml with the given contents and returns its path.
func WriteCatalog(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	return path
}

// WriteConfig writes a gameshelf config pointing at the given catalog plus
// temp output and database paths, and returns the config path. The output
// root sits next to the config, see OutputRoot.
func WriteConfig(t *testing.T, catalogPath string) string {
	t.Helper()
	dir := t.TempDir()

	config := `[general]
output_root = "` + filepath.Join(dir, "site") + `"
database_path = "` + filepath.Join(dir, "history.db") + `"
catalog = "` + catalogPath + `"
concurrency = 2

[site]
title = "integration arcade"

[notifications]
desktop = false
`

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// OutputRoot returns the output_root a WriteConfig config points at.
func OutputRoot(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "site")
}
