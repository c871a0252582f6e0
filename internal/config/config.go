// Package config loads marqdb settings from an optional YAML file, merged
// under command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory when
// no explicit path is given.
const DefaultFileName = "marqdb.yaml"

// Config holds the tunables of the marqdb binary.
type Config struct {
	// Path of the database file; ":memory:" opens an in-memory database.
	Path string `yaml:"path"`
	// CachePages is the buffer pool capacity in frames (0 = built-in default).
	CachePages int `yaml:"cache_pages"`
	// Prompt shown by the REPL.
	Prompt string `yaml:"prompt"`
	// Echo statements before executing them.
	Echo bool `yaml:"echo"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Path:   "test.db",
		Prompt: "marqdb> ",
	}
}

// Load reads the config file at path into the defaults. A missing file at
// the default location is not an error; an explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.CachePages < 0 {
		return Config{}, fmt.Errorf("parse %s: cache_pages must be >= 0", path)
	}
	if cfg.Path == "" {
		cfg.Path = Default().Path
	}
	if cfg.Prompt == "" {
		cfg.Prompt = Default().Prompt
	}
	return cfg, nil
}
