// internal/config/config.go
//
// Runtime configuration for the bingo server and CLI.
// Values come from (highest priority first): environment, an optional YAML
// file, and the env-default tags below. A .env file in the working
// directory is loaded into the environment first.

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Env        string           `yaml:"env"         env:"APP_ENV" env-default:"development"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Store      StoreConfig      `yaml:"store"`
	Daily      DailyConfig      `yaml:"daily"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"             env-default:"5175"`
	ClientOrigin    string        `yaml:"client_origin"    env:"CLIENT_ORIGIN"    env-default:"http://localhost:5173"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"REQUEST_TIMEOUT"  env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY" env-default:"false"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl"  env:"SESSION_TOKEN_TTL" env-default:"24h"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Driver     string `yaml:"driver"      env:"STORE_DRIVER" env-default:"memory"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"  env-default:"./data/bingo.db"`
}

// DailyConfig holds the daily card salt.
type DailyConfig struct {
	Salt string `yaml:"salt" env:"DAILY_SALT" env-default:"meeting-bingo"`
}

// TranscribeConfig holds the streaming recognizer settings used by the CLI.
type TranscribeConfig struct {
	APIKey     string `yaml:"api_key"     env:"DEEPGRAM_API_KEY"`
	Endpoint   string `yaml:"endpoint"    env:"TRANSCRIBE_ENDPOINT"    env-default:"wss://api.deepgram.com/v1/listen"`
	Model      string `yaml:"model"       env:"TRANSCRIBE_MODEL"       env-default:"nova-3"`
	Language   string `yaml:"language"    env:"TRANSCRIBE_LANGUAGE"    env-default:"en-US"`
	SampleRate int    `yaml:"sample_rate" env:"TRANSCRIBE_SAMPLE_RATE" env-default:"16000"`
}

// devSecret signs tokens in development when JWT_SECRET is unset.
const devSecret = "dev-only-insecure-secret"

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// Secret returns the token signing key.
func (c *Config) Secret() []byte {
	if c.Auth.JWTSecret == "" && c.IsDevelopment() {
		return []byte(devSecret)
	}
	return []byte(c.Auth.JWTSecret)
}

// Validate checks cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite", c.Store.Driver))
	}
	if c.Auth.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("auth.jwt_secret is required outside development"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	if c.Transcribe.SampleRate <= 0 {
		errs = append(errs, errors.New("transcribe.sample_rate must be positive"))
	}
	return errors.Join(errs...)
}
