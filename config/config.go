// Package config holds process-level settings for the permiplan binary.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// PERMIPLAN_* environment variables. Command-line flags are applied last by
// cmd/server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen      = "127.0.0.1:8080"
	DefaultDBPath      = "./permiplan.db"
	DefaultEnvironment = "development"
	DefaultLogLevel    = "info"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the API.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file. ":memory:" keeps everything in RAM.
	DBPath string `yaml:"db_path"`

	// Environment is "development" or "production". Development logs to a
	// console writer, anything else logs JSON.
	Environment string `yaml:"environment"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// AllowedOrigins lists the CORS origins allowed to call the API.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         DefaultListen,
		DBPath:         DefaultDBPath,
		Environment:    DefaultEnvironment,
		LogLevel:       DefaultLogLevel,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Normalize fills in missing values so that partially-filled files still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = DefaultConfig().AllowedOrigins
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Load reads the YAML file at path, if any, and applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PERMIPLAN_* environment variables.
func (c *Config) ApplyEnv() {
	c.Listen = getEnv("PERMIPLAN_LISTEN", c.Listen)
	c.DBPath = getEnv("PERMIPLAN_DB_PATH", c.DBPath)
	c.Environment = getEnv("PERMIPLAN_ENV", c.Environment)
	c.LogLevel = getEnv("PERMIPLAN_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("PERMIPLAN_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
