// File: utils/config.go
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by LoadConfig.
const EnvPrefix = "CLINIC"

var ErrUsage = errors.New("usage: clinic <doctors> <patients>")

// Config holds all configurable simulation parameters.
type Config struct {
	// Population (positional arguments, not environment)
	Doctors  int `ignored:"true"` // Also the nurse count; nurses and doctors are paired 1:1
	Patients int `ignored:"true"`

	// Assignment
	Seed int64 `envconfig:"SEED" default:"0"` // 0 seeds from the clock

	// Surface
	Listen          string        `envconfig:"LISTEN"`                        // Address of the live feed server, empty disables it
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"2s"` // Grace period for actors at teardown

	// Logging
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEV" default:"true"`
}

// DefaultConfig returns a Config struct with default values.
func DefaultConfig() Config {
	return Config{
		Doctors:         1,
		Patients:        0,
		Seed:            0,
		ShutdownTimeout: 2 * time.Second,
		LogLevel:        "info",
		LogDevelopment:  true,
	}
}

// LoadConfig reads CLINIC_* environment variables on top of the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ParseArgs fills the population from the two positional arguments.
func (c *Config) ParseArgs(args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	doctors, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("doctors %q: %w", args[0], err)
	}
	patients, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("patients %q: %w", args[1], err)
	}
	c.Doctors = doctors
	c.Patients = patients
	return c.Validate()
}

// Validate checks the population bounds.
func (c Config) Validate() error {
	if c.Doctors < 1 {
		return fmt.Errorf("doctors must be at least 1, got %d", c.Doctors)
	}
	if c.Patients < 0 {
		return fmt.Errorf("patients must not be negative, got %d", c.Patients)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
