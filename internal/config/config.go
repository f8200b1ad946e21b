package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config holds the core's runtime configuration: the server's bind
// address and auth, and the persistence backend to use.
type Config struct {
	Hostname    string `yaml:"hostname"`
	Port        int    `yaml:"port"`
	BearerToken string `yaml:"bearerToken"`
	DataDir     string `yaml:"dataDir"`
	// Store selects the persistence backend: "memory", "file", or "sqlite".
	Store string `yaml:"store"`
	// LogLevel parses via logging.ParseLevel ("debug", "info", "warn", "error").
	LogLevel string `yaml:"logLevel"`
}

// Default returns the configuration used when no file or env var
// overrides anything.
func Default() *Config {
	return &Config{
		Hostname: "127.0.0.1",
		Port:     4096,
		DataDir:  GetPaths().StoragePath(),
		Store:    "file",
		LogLevel: "info",
	}
}

// Load reads configuration in priority order: defaults, then an optional
// config file at path (YAML, with JSONC-style comments tolerated via
// tidwall/jsonc before parsing), then an optional .env file alongside it,
// then AGENTCORE_* environment variables, which win over everything.
//
// path may be empty, in which case only env vars are applied over the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
		_ = godotenv.Load(path + ".env")
	}
	_ = godotenv.Load(".env")

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadFile reads a YAML (optionally JSONC-commented) config file and
// merges its fields onto cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// jsonc.ToJSON is a no-op on input that's already valid JSON/YAML
	// scalars, and strips // and /* */ comments when present -- this lets
	// the same loader accept a YAML file or a commented JSON file.
	clean := jsonc.ToJSON(data)

	var fileCfg Config
	if err := yaml.Unmarshal(clean, &fileCfg); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	merge(cfg, &fileCfg)
	return nil
}

// merge overlays non-zero fields of src onto dst.
func merge(dst, src *Config) {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.BearerToken != "" {
		dst.BearerToken = src.BearerToken
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.Store != "" {
		dst.Store = src.Store
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
}

// applyEnvOverrides applies AGENTCORE_* environment variables, the
// highest-priority configuration source.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTCORE_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("AGENTCORE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("AGENTCORE_BEARER_TOKEN"); v != "" {
		cfg.BearerToken = v
	}
	if v := os.Getenv("AGENTCORE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("AGENTCORE_STORE"); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	if v := os.Getenv("AGENTCORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
