package sightline

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared package-wide; it caches parsed struct tags.
var validate = validator.New()

// validateStruct runs tag-based validation and converts the first violation
// into a typed ValidationError naming the offending field.
func validateStruct(target interface{}) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}

	var violations validator.ValidationErrors
	if errors.As(err, &violations) && len(violations) > 0 {
		violation := violations[0]

		return &ValidationError{
			Field:   violation.Namespace(),
			Message: fmt.Sprintf("failed %q constraint", violation.Tag()),
		}
	}

	return fmt.Errorf("validating input: %w", err)
}

// Validate checks the configuration's shape: the endpoint must be present
// and numeric knobs must not be negative. Credential sanity is left to the
// client constructors, which know which combinations they accept.
func (c *Config) Validate() error {
	err := validateStruct(c)
	if err == nil {
		return nil
	}

	var violation *ValidationError
	if errors.As(err, &violation) {
		return &ConfigurationError{Field: violation.Field, Message: violation.Message}
	}

	return err
}
