// internal/config/loader.go
//
// Loading order for the server and the CLI:
//   1. .env in the working directory is copied into the environment (missing is fine).
//   2. A YAML file, when one is found, fills the struct.
//   3. Environment variables override it; env-default tags fill the rest.
//   4. Validate runs last.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// defaultConfigFile is read only if it exists.
const defaultConfigFile = "./config.yaml"

// Load builds the Config for this process.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path, found, err := configFile()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if found {
		// ReadConfig applies the environment on top of the file.
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

// configFile picks the YAML file to read. CONFIG_PATH must point at an
// existing file; without it the default file is optional.
func configFile() (string, bool, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", false, fmt.Errorf("config: CONFIG_PATH: %w", err)
		}
		return path, true, nil
	}
	if _, err := os.Stat(defaultConfigFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("config: %s: %w", defaultConfigFile, err)
	}
	return defaultConfigFile, true, nil
}
