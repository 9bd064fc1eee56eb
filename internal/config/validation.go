package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/charon-kb/charon/internal/domain"
)

var validate = validator.New()

// ValidationError is a single field-level problem.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors holds every problem found in a config.
type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "invalid config"
	}
	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return "invalid config: " + strings.Join(messages, "; ")
}

// Validate checks struct tags and the shortcut/remap syntax.
func (c CharonConfig) Validate() error {
	errs := &ValidationErrors{}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, e := range fieldErrs {
			errs.Errors = append(errs.Errors, ValidationError{
				Field:   e.Namespace(),
				Message: formatValidationMessage(e),
			})
		}
	}

	if _, err := domain.ParseKeyShortcut(c.ModeToggle); err != nil && c.ModeToggle != "" {
		errs.Errors = append(errs.Errors, ValidationError{Field: "mode_toggle", Message: err.Error()})
	}
	if _, err := c.Remaps(); err != nil {
		errs.Errors = append(errs.Errors, ValidationError{Field: "key_remap", Message: err.Error()})
	}

	if len(errs.Errors) > 0 {
		return errs
	}
	return nil
}

// Toggle returns the parsed mode toggle shortcut.
func (c CharonConfig) Toggle() (domain.KeyShortcut, error) {
	return domain.ParseKeyShortcut(c.ModeToggle)
}

// Remaps returns the key remap table as HID key codes.
func (c CharonConfig) Remaps() (map[domain.HidKeyCode]domain.HidKeyCode, error) {
	out := make(map[domain.HidKeyCode]domain.HidKeyCode, len(c.KeyRemap))
	for from, to := range c.KeyRemap {
		fk, ok := domain.KeyByName(from)
		if !ok {
			return nil, fmt.Errorf("unknown key %q", from)
		}
		tk, ok := domain.KeyByName(to)
		if !ok {
			return nil, fmt.Errorf("unknown key %q", to)
		}
		out[fk] = tk
	}
	return out, nil
}

func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	default:
		return fmt.Sprintf("failed %q check", e.Tag())
	}
}
