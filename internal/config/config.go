// Package config handles global promptvars configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"github.com/aidanlsb/promptvars/internal/source"
)

// DefaultConcurrency bounds concurrent variable resolution when unset.
const DefaultConcurrency = 4

// Config represents the global promptvars configuration.
type Config struct {
	// Database is the SQLite file the resolver reads. "~" expands to the
	// home directory. Defaults to DefaultDatabasePath.
	Database string `toml:"database"`

	// LogLevel is a zap level name: debug, info, warn or error.
	LogLevel string `toml:"log_level"`

	// Concurrency bounds how many variables of one template resolve at once.
	Concurrency int `toml:"concurrency"`

	// Context is the default resolution context; CLI flags override it.
	Context source.Context `toml:"context"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown rendering.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent" json:"accent,omitempty"`

	// CodeTheme sets the Glamour/Chroma theme used for rendered markdown code blocks.
	CodeTheme string `toml:"code_theme" json:"code_theme,omitempty"`
}

// DatabasePath returns the configured database path with "~" expanded.
func (c *Config) DatabasePath() string {
	if strings.TrimSpace(c.Database) == "" {
		return DefaultDatabasePath()
	}
	return expandHome(c.Database)
}

// Workers returns the resolution concurrency, defaulting when unset.
func (c *Config) Workers() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}

// Level parses LogLevel. An empty level means info.
func (c *Config) Level() (zapcore.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(c.LogLevel))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &Config{}, nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if _, err := config.Level(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/promptvars/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "promptvars", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "promptvars", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// DefaultDatabasePath is ~/.local/share/promptvars/promptvars.db, or a file in
// the working directory when no home directory is known.
func DefaultDatabasePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "promptvars", "promptvars.db")
	}
	return "promptvars.db"
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

const defaultConfig = `# promptvars configuration

# SQLite database the resolver reads (see "pvar seed").
# database = "~/.local/share/promptvars/promptvars.db"

# debug, info, warn or error
# log_level = "info"

# Variables of one template resolved at once.
# concurrency = 4

# Default resolution context. --user, --project and --workspace override it.
# [context]
# user_id = "U1"
# project_id = "P1"
# workspace_id = "W1"

# Optional UI accent color for headers in terminal output.
# Supports ANSI color codes (0-255) or hex (#RRGGBB).
# [ui]
# accent = "39"
# code_theme = "monokai"
`

// CreateDefault creates a default config file if it doesn't exist.
func CreateDefault() (string, error) {
	return CreateDefaultAt(DefaultPath())
}

// CreateDefaultAt creates a default config file at configPath if it doesn't
// exist.
func CreateDefaultAt(configPath string) (string, error) {
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil // Already exists
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}
