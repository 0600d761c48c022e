// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in date-index keys.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator plus the grade
//     table invariants.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads, populates, and validates the process configuration.
func Load() (*Config, error) {
	time.Local = time.UTC

	// Missing .env is the normal case outside local dev.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	g := cfg.Grades
	if len(g.Thresholds) == 0 || len(g.Thresholds) != len(g.Letters) {
		return fmt.Errorf("invalid grade table: %d thresholds for %d letters",
			len(g.Thresholds), len(g.Letters))
	}
	for i := 1; i < len(g.Thresholds); i++ {
		if g.Thresholds[i] >= g.Thresholds[i-1] {
			return fmt.Errorf("grade thresholds must be strictly descending, got %v", g.Thresholds)
		}
	}
	if g.FloorLetter == "" {
		return fmt.Errorf("grade floor letter must not be empty")
	}

	return nil
}
