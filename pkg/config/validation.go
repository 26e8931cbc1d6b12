package config

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
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
	marker, err := hex.DecodeString(cfg.Server.Marker)
	if err != nil {
		return fmt.Errorf("server.marker: %q is not valid hex: %w", cfg.Server.Marker, err)
	}
	if len(marker) == 0 {
		return errors.New("server.marker: must not be empty")
	}

	if cfg.Sessions.Archive.Enabled {
		if !cfg.Sessions.Enabled {
			return errors.New("sessions.archive: archiving requires sessions.enabled")
		}

		var s3cfg s3ArchiveOptions
		if err := mapstructure.Decode(cfg.Sessions.Archive.S3, &s3cfg); err != nil {
			return fmt.Errorf("sessions.archive.s3: %w", err)
		}
		if s3cfg.Bucket == "" {
			return errors.New("sessions.archive.s3: bucket is required")
		}
		if s3cfg.Region == "" {
			return errors.New("sessions.archive.s3: region is required")
		}
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
