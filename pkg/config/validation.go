package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tags cover the declarative constraints; validateCustomRules covers
// cross-field rules that cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The canonical and mirror trees must never collapse into one directory:
	// the mirror-follows-canonical invariant is meaningless otherwise.
	data := filepath.Clean(cfg.Storage.DataRoot)
	mirror := filepath.Clean(cfg.Storage.MirrorRoot)
	if data == mirror {
		return fmt.Errorf("storage: data_root and mirror_root must be distinct (both %q)", data)
	}

	if cfg.Auth.Type == "badger" && len(cfg.Auth.Badger) == 0 {
		return fmt.Errorf("auth: type is %q but no badger section is configured", cfg.Auth.Type)
	}
	if cfg.Archive.Type == "s3" && len(cfg.Archive.S3) == 0 {
		return fmt.Errorf("archive: type is %q but no s3 section is configured", cfg.Archive.Type)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
