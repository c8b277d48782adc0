// Package config loads the casetrack configuration from ~/.casetrack/config.yaml,
// a .env file in the working directory and CASETRACK_* environment variables,
// in increasing order of precedence.
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
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/casetrack/cli/internal/uscis"
)

// Environment variables.
const (
	EnvConfig   = "CASETRACK_CONFIG"
	EnvHome     = "CASETRACK_HOME"
	EnvLogLevel = "CASETRACK_LOG_LEVEL"
	EnvStorage  = "CASETRACK_STORAGE"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageBadger = "badger"
)

// Notifier kinds.
const (
	NotifierDesktop  = "desktop"
	NotifierTerminal = "terminal"
)

type Config struct {
	DataDir  string `yaml:"data_dir" validate:"required"`
	Storage  string `yaml:"storage" validate:"oneof=file badger"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Notifier string `yaml:"notifier" validate:"oneof=desktop terminal"`

	API      APIConfig      `yaml:"api"`
	SelfTest SelfTestConfig `yaml:"selftest"`
	Daemon   DaemonConfig   `yaml:"daemon"`
}

type APIConfig struct {
	SandboxTokenURL    string        `yaml:"sandbox_token_url" validate:"url"`
	SandboxBaseURL     string        `yaml:"sandbox_base_url" validate:"url"`
	ProductionTokenURL string        `yaml:"production_token_url" validate:"url"`
	ProductionBaseURL  string        `yaml:"production_base_url" validate:"url"`
	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type SelfTestConfig struct {
	ProbeInterval    time.Duration `yaml:"probe_interval" validate:"gte=0"`
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff" validate:"gte=0"`
}

type DaemonConfig struct {
	Interval    time.Duration `yaml:"interval" validate:"gt=0"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) Config {
	e := uscis.DefaultEndpoints()
	return Config{
		DataDir:  dataDir,
		Storage:  StorageFile,
		LogLevel: "info",
		Notifier: NotifierDesktop,
		API: APIConfig{
			SandboxTokenURL:    e.SandboxTokenURL,
			SandboxBaseURL:     e.SandboxBaseURL,
			ProductionTokenURL: e.ProductionTokenURL,
			ProductionBaseURL:  e.ProductionBaseURL,
		},
		SelfTest: SelfTestConfig{
			ProbeInterval:    time.Second,
			RateLimitBackoff: 2 * time.Second,
		},
		Daemon: DaemonConfig{
			Interval: 24 * time.Hour,
		},
	}
}

// DefaultDataDir is ~/.casetrack, or $CASETRACK_HOME when set.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".casetrack"), nil
}

// Path resolves the config file location: path, then $CASETRACK_CONFIG,
// then <data dir>/config.yaml.
func Path(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env, nil
	}
	dataDir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "config.yaml"), nil
}

// Load reads the configuration. path overrides $CASETRACK_CONFIG, which
// overrides <data dir>/config.yaml. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	dataDir, err := DefaultDataDir()
	if err != nil {
		return Config{}, err
	}
	cfg := Default(dataDir)

	path, err = Path(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvHome); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvStorage); v != "" {
		c.Storage = strings.ToLower(v)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Write saves c as YAML at path, creating the directory if needed.
func (c Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// StorePath is where the selected storage backend keeps its data.
func (c Config) StorePath() string {
	if c.Storage == StorageBadger {
		return filepath.Join(c.DataDir, "badger")
	}
	return filepath.Join(c.DataDir, "store.json")
}

// Level maps LogLevel onto slog.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Endpoints returns the upstream URLs.
func (c Config) Endpoints() uscis.Endpoints {
	return uscis.Endpoints{
		SandboxTokenURL:    c.API.SandboxTokenURL,
		SandboxBaseURL:     c.API.SandboxBaseURL,
		ProductionTokenURL: c.API.ProductionTokenURL,
		ProductionBaseURL:  c.API.ProductionBaseURL,
	}
}
