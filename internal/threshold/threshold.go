// Package threshold holds the global cost ceilings the cost monitor classifies against.
package threshold

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Period selects which ledger window a threshold applies to
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Levels are the USD totals at which a ledger window changes status.
// Lower bounds are inclusive.
type Levels struct {
	Warning  float64 `yaml:"warning" json:"warning" validate:"gt=0"`
	Critical float64 `yaml:"critical" json:"critical" validate:"gtfield=Warning"`
	Shutdown float64 `yaml:"shutdown" json:"shutdown" validate:"gtfield=Critical"`
}

// Config holds thresholds for both ledger windows
type Config struct {
	Daily   Levels `yaml:"daily" json:"daily" validate:"required"`
	Monthly Levels `yaml:"monthly" json:"monthly" validate:"required"`
}

// Default returns the built-in thresholds
func Default() *Config {
	return &Config{
		Daily: Levels{
			Warning:  10,
			Critical: 25,
			Shutdown: 50,
		},
		Monthly: Levels{
			Warning:  200,
			Critical: 500,
			Shutdown: 1000,
		},
	}
}

// For returns the levels for a period. Unknown periods get the daily levels.
func (c *Config) For(period Period) Levels {
	if period == PeriodMonthly {
		return c.Monthly
	}
	return c.Daily
}

// Load reads thresholds from a YAML file. An empty path returns the defaults.
// Values omitted from the file keep their default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse thresholds YAML %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate thresholds %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that each window is strictly ascending
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
