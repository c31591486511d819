package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Type-specific origin and filter sections are maps and are checked here
// only for presence; their fields are validated by the factories that
// decode them.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Origin.Type == "http" {
		base, _ := cfg.Origin.HTTP["base_url"].(string)
		if base == "" {
			return fmt.Errorf("origin.http.base_url: required when origin.type is http")
		}
	}

	if cfg.Filesystem.PollInterval > cfg.Filesystem.WaitTimeout {
		return fmt.Errorf("filesystem.poll_interval (%s) must not exceed filesystem.wait_timeout (%s)",
			cfg.Filesystem.PollInterval, cfg.Filesystem.WaitTimeout)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		return fmt.Errorf("metrics.port: required when metrics are enabled")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
