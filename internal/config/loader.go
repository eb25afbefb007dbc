package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config.yaml"

// Load builds the configuration from a YAML file with environment overrides;
// environment values win over the file, which wins over struct defaults.
// CONFIG_PATH names the file; when unset, ./config.yaml is tried and quietly
// skipped if absent, leaving environment plus defaults. A CONFIG_PATH that
// points at a missing file is an error.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	switch _, statErr := os.Stat(path); {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	case explicit:
		return nil, fmt.Errorf("config: file %s: %w", path, statErr)
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}
