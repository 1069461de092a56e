// Package validator validates the request bodies of the API. It wraps
// go-playground/validator with the custom rules of the service and turns
// validation failures into field level messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lysco/checkout-backend/internal"
)

// ValidationError represents an individual validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationErrors is a slice of ValidationError.
type ValidationErrors []ValidationError

// Error returns a string representation of the validation errors.
func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return sb.String()
}

// HasTag reports whether any of the errors was raised by the given rule.
func (ve ValidationErrors) HasTag(tag string) bool {
	for _, err := range ve {
		if err.Tag == tag {
			return true
		}
	}
	return false
}

// Validator is a wrapper around the go-playground/validator package.
type Validator struct {
	validator *validator.Validate
}

// New creates a new Validator instance. Field names in the errors are the
// JSON names of the fields.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Register custom validation functions
	_ = v.RegisterValidation("phone", validatePhone)
	_ = v.RegisterValidation("stripeid", validateStripeID)

	return &Validator{
		validator: v,
	}
}

// Validate validates a struct. Rule violations are returned as
// ValidationErrors, any other failure as is.
func (v *Validator) Validate(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	validationErrors := make(ValidationErrors, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fieldPath(fieldErr),
			Tag:     fieldErr.Tag(),
			Message: getErrorMessage(fieldErr),
		})
	}
	return validationErrors
}

// fieldPath returns the path of the field without the name of the root
// struct, e.g. "oneTimeItems[0].amount".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// validatePhone validates a phone number.
func validatePhone(fl validator.FieldLevel) bool {
	// If the field is empty, it's valid (use required tag if it's required)
	if fl.Field().String() == "" {
		return true
	}
	_, err := internal.SanitizePhoneNumber(fl.Field().String())
	return err == nil
}

// validateStripeID validates that the value is a Stripe object id with the
// prefix given as parameter, e.g. `validate:"stripeid=pm"`.
func validateStripeID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	prefix := fl.Param() + "_"
	return strings.HasPrefix(value, prefix) && len(value) > len(prefix) &&
		!strings.ContainsAny(value, " \t\r\n")
}

// getErrorMessage returns a human-readable error message for a validation error.
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("Must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", err.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", err.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", err.Param())
	case "url":
		return "Invalid URL format"
	case "phone":
		return "Invalid phone number format"
	case "stripeid":
		return fmt.Sprintf("Invalid identifier, expected the %s_ prefix", err.Param())
	default:
		return fmt.Sprintf("Invalid value: %s", err.Tag())
	}
}
