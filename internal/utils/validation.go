package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/localnerve/memebase/internal/types"
)

var (
	validate    = validator.New(validator.WithRequiredStructEnabled())
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)
)

func init() {
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return IsSlug(fl.Field().String())
	})
}

// IsSlug reports whether s is a lowercase, dash or underscore separated slug
func IsSlug(s string) bool {
	return len(s) <= 191 && slugPattern.MatchString(s)
}

// ValidateStruct validates a struct based on its validation tags.
// Failures come back as a 400 AppError of the given type.
func ValidateStruct(s interface{}, errorType string) error {
	if err := validate.Struct(s); err != nil {
		return types.BadRequest(formatValidationError(err), errorType)
	}
	return nil
}

// ValidateVar validates a single value against a tag, e.g. "email"
func ValidateVar(v interface{}, tag string) bool {
	return validate.Var(v, tag) == nil
}

func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return strings.Join(messages, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "slug":
		return fmt.Sprintf("%s must be a lowercase slug", field)
	case "excludesall":
		return fmt.Sprintf("%s must not contain any of %q", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
