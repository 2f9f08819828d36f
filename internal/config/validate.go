package config

import (
	"errors"
	"fmt"
)

// Validate checks the structural validity of a Config. All problems are
// reported at once so a broken file needs one fix pass, not several.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Storage.Driver {
	case "memory":
	case "sqlite":
		if cfg.Storage.Path == "" {
			errs = append(errs, errors.New("config: storage.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage driver %q (supported: memory, sqlite)", cfg.Storage.Driver))
	}

	for name, limit := range cfg.Limits {
		if limit.Requests < 0 {
			errs = append(errs, fmt.Errorf("config: limits.%s.requests must be non-negative, got %d", name, limit.Requests))
		}
		if limit.Requests > 0 && limit.Window <= 0 {
			errs = append(errs, fmt.Errorf("config: limits.%s.window must be positive", name))
		}
	}

	if cfg.Context.MaxMessages < 0 {
		errs = append(errs, errors.New("config: context.max_messages must be non-negative"))
	}
	if cfg.Context.MaxTokens < 0 {
		errs = append(errs, errors.New("config: context.max_tokens must be non-negative"))
	}
	if cfg.Summarization.Threshold < 0 {
		errs = append(errs, errors.New("config: summarization.threshold must be non-negative"))
	}
	if cfg.Maintenance.PruneInterval < 0 || cfg.Maintenance.MaxIdle < 0 {
		errs = append(errs, errors.New("config: maintenance durations must be non-negative"))
	}

	return errors.Join(errs...)
}
