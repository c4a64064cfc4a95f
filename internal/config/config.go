// Package config loads foundry's runtime configuration from YAML with
// environment overrides and validates it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Backend modes.
const (
	ModeLocal = "local"
	ModeHTTP  = "http"
)

// Environment overrides.
const (
	EnvDataDir = "FOUNDRY_DATA_DIR"
	EnvAPIURL  = "FOUNDRY_API_URL"
	EnvProject = "FOUNDRY_PROJECT"
)

// FileName is the config file name inside the data directory.
const FileName = "config.yaml"

// Config is foundry's runtime configuration.
type Config struct {
	// DataDir holds the SQLite database and the default config file.
	DataDir string `yaml:"data_dir" validate:"required"`
	// DefaultProject is opened implicitly by the MCP tools.
	DefaultProject string `yaml:"default_project"`
	// Backend selects the coordinator's backend: the local store or a
	// remote foundry API.
	Backend string `yaml:"backend" validate:"oneof=local http"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	API  APIConfig  `yaml:"api"`
	Undo UndoConfig `yaml:"undo"`
}

// APIConfig covers both sides of the HTTP API.
type APIConfig struct {
	// BaseURL is the remote API used when Backend is "http".
	BaseURL string        `yaml:"base_url" validate:"required_if=Mode http,omitempty,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	// Listen is the address `foundry api` serves on.
	Listen string `yaml:"listen" validate:"required,hostname_port"`

	// Mode mirrors Config.Backend for the required_if rule.
	Mode string `yaml:"-"`
}

// UndoConfig sets how long moves and deletes can be undone.
type UndoConfig struct {
	Move   time.Duration `yaml:"move" validate:"gt=0"`
	Delete time.Duration `yaml:"delete" validate:"gt=0"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:  filepath.Join(home, ".foundry"),
		Backend:  ModeLocal,
		LogLevel: "info",
		API: APIConfig{
			BaseURL: "http://127.0.0.1:7420",
			Timeout: 10 * time.Second,
			Listen:  "127.0.0.1:7420",
		},
		Undo: UndoConfig{
			Move:   5 * time.Second,
			Delete: 10 * time.Second,
		},
	}
}

// DefaultPath is the config file location when none is given.
func DefaultPath() string {
	dir := os.Getenv(EnvDataDir)
	if dir == "" {
		dir = Default().DataDir
	}
	return filepath.Join(dir, FileName)
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
		c.Backend = ModeHTTP
	}
	if v := os.Getenv(EnvProject); v != "" {
		c.DefaultProject = v
	}
}

var validate = validator.New()

// Validate checks field constraints and returns every violation at once.
func (c *Config) Validate() error {
	c.API.Mode = c.Backend
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

// SlogLevel maps LogLevel onto a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
