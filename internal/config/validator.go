package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers Warden-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateAuditOutput accepts "stdout" or "file://<absolute-dir>".
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()
	if output == "stdout" {
		return true
	}
	if strings.HasPrefix(output, "file://") {
		dir := strings.TrimPrefix(output, "file://")
		return dir != "" && filepath.IsAbs(dir)
	}
	return false
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return errors.New("storage.path is required for the sqlite driver")
	}

	for field, value := range map[string]string{
		"planner.timeout":             c.Planner.Timeout,
		"evaluation.staleness_window": c.Evaluation.StalenessWindow,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", field, value)
		}
	}
	return nil
}

// PlannerTimeout returns the parsed planner timeout. Call after Validate.
func (c *Config) PlannerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Planner.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// StalenessWindow returns the parsed staleness window. Call after Validate.
func (c *Config) StalenessWindow() time.Duration {
	d, err := time.ParseDuration(c.Evaluation.StalenessWindow)
	if err != nil {
		return 72 * time.Hour
	}
	return d
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout' or 'file://<absolute-dir>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
