// Package config loads service settings from the environment.
//
// Values come from, in increasing precedence: built-in defaults, a .env file
// in the working directory, process environment variables and finally command
// line flags applied by the caller.
package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

// Config holds the API server settings.
type Config struct {
	// ModelsDir is the directory holding the trained artifacts.
	ModelsDir string `env:"CROPADVISOR_MODELS_DIR"`
	// Address is the interface to listen on.
	Address string `env:"CROPADVISOR_ADDRESS"`
	Port    int    `env:"PORT,strict"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL"`

	ReadTimeout     time.Duration `env:"CROPADVISOR_READ_TIMEOUT,strict"`
	WriteTimeout    time.Duration `env:"CROPADVISOR_WRITE_TIMEOUT,strict"`
	ShutdownTimeout time.Duration `env:"CROPADVISOR_SHUTDOWN_TIMEOUT,strict"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		ModelsDir:       "models",
		Address:         "0.0.0.0",
		Port:            5000,
		LogLevel:        "info",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Load reads the given .env files (or ./.env when none is named) and decodes
// the environment over the defaults. A missing ./.env is not an error; a
// missing file that was named explicitly is.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, "load .env")
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, errors.Wrapf(err, "load %v", envFiles)
	}

	cfg := Default()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, errors.Wrap(err, "decode environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.ModelsDir == "" {
		return errors.NewValidationError("models_dir", "must not be empty", c.ModelsDir)
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.NewValidationError("port", "must be in [1, 65535]", c.Port)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return errors.NewValidationError(name, "must be positive", d)
		}
	}
	return nil
}

// Level returns the parsed log level. Call Validate first.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// ListenAddr returns host:port for net.Listen.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}
