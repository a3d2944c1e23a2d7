// Package validation provides structured validation error handling
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Error represents a validation error with field-specific details
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors represents multiple validation errors
type Errors []Error

// Error implements the error interface
func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}

	var messages []string
	for _, err := range ve {
		if err.Field != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
		} else {
			messages = append(messages, err.Message)
		}
	}

	return strings.Join(messages, "; ")
}

// Add adds a validation error
func (ve *Errors) Add(field, message string) {
	*ve = append(*ve, Error{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors
func (ve Errors) HasErrors() bool {
	return len(ve) > 0
}

// ValidateRequired checks if a value is not empty
func ValidateRequired(value string, fieldName string) *Error {
	if strings.TrimSpace(value) == "" {
		return &Error{
			Field:   fieldName,
			Message: "is required",
		}
	}
	return nil
}

// ValidateMaxLength checks if a string doesn't exceed the maximum length
func ValidateMaxLength(value string, maxLength int, fieldName string) *Error {
	if utf8.RuneCountInString(value) > maxLength {
		return &Error{
			Field:   fieldName,
			Message: fmt.Sprintf("must not exceed %d characters", maxLength),
		}
	}
	return nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator. Field names in errors come from
// json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Struct validates v against its validate tags and returns Errors on failure.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return "is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must not have more than %s items", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
