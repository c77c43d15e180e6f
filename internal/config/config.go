package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LocalConfigName is the per-project config file discovered by walking up
// from the working directory.
const LocalConfigName = ".gameshelf.toml"

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Site          SiteConfig          `toml:"site"`
	Notifications NotificationsConfig `toml:"notifications"`
	Serve         ServeConfig         `toml:"serve"`
	Schedule      ScheduleConfig      `toml:"schedule"`
}

// GeneralConfig holds build settings
type GeneralConfig struct {
	OutputRoot   string `toml:"output_root"`
	Concurrency  int    `toml:"concurrency"` // 0 means one worker per CPU
	DatabasePath string `toml:"database_path"`
	Catalog      string `toml:"catalog"`
}

// SiteConfig holds page generation settings
type SiteConfig struct {
	Title    string `toml:"title"`
	Template string `toml:"template"` // optional override for the embedded template
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// ServeConfig holds the serve-mode HTTP settings
type ServeConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ScheduleConfig holds the periodic rebuild schedule
type ScheduleConfig struct {
	Cron string `toml:"cron"` // empty disables scheduled rebuilds
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			OutputRoot:   "site",
			Concurrency:  0,
			DatabasePath: filepath.Join(home, ".local", "share", "gameshelf", "history.db"),
			Catalog:      "games.yaml",
		},
		Site: SiteConfig{
			Title: "gameshelf",
		},
		Serve: ServeConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.OutputRoot = ExpandPath(cfg.General.OutputRoot)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.Catalog = ExpandPath(cfg.General.Catalog)
	cfg.Site.Template = ExpandPath(cfg.Site.Template)

	return cfg, nil
}

// LoadWithLocalFallback loads an explicit path when given, otherwise a
// discovered local config, otherwise the user config.
func LoadWithLocalFallback(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig walks up from the working directory looking for
// .gameshelf.toml. Returns "" when none is found.
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gameshelf", "config.toml")
}
