package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AIRC"

// Path returns the config file used when none is given: $AIRC_CONFIG or
// ~/.airc/config.yaml.
func Path() string {
	if explicit := os.Getenv("AIRC_CONFIG"); explicit != "" {
		return explicit
	}
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads the YAML file at path on top of the defaults and applies
// AIRC_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	for name, backend := range cfg.Backends {
		if backend.Type == "" {
			backend.Type = name
			cfg.Backends[name] = backend
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return err
	}
	if err := envconfig.Process(envPrefix+"_MEMORY", &cfg.Memory); err != nil {
		return err
	}
	if err := envconfig.Process(envPrefix+"_STORAGE", &cfg.Storage); err != nil {
		return err
	}
	for name, backend := range cfg.Backends {
		if err := envconfig.Process(envName(name), &backend); err != nil {
			return err
		}
		cfg.Backends[name] = backend
	}
	return nil
}

// Schema describes the config file format.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
