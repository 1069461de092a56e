package stripe

import (
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v81"
)

// StripeError represents a Stripe-specific error
type StripeError struct {
	Code    string
	Message string
	Err     error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Is matches any StripeError with the same code.
func (e *StripeError) Is(target error) bool {
	t, ok := target.(*StripeError)
	return ok && t.Code == e.Code
}

// With returns a copy of the error with the detail appended to the message.
func (e *StripeError) With(detail string) *StripeError {
	return &StripeError{
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, detail),
		Err:     e.Err,
	}
}

// Common Stripe errors
var (
	ErrInvoiceNotFound      = &StripeError{Code: "invoice_not_found", Message: "subscription has no latest invoice"}
	ErrPaymentIntentMissing = &StripeError{Code: "payment_intent_missing", Message: "invoice has no payment intent"}
	ErrInvalidConfiguration = &StripeError{Code: "invalid_configuration", Message: "invalid stripe configuration"}
	ErrAPICallFailed        = &StripeError{Code: "api_call_failed", Message: "stripe API call failed"}
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	return &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsAlreadyExists reports whether err carries the gateway
// resource_already_exists error code, returned for example when a payment
// method is already attached to the customer.
func IsAlreadyExists(err error) bool {
	var apiErr *stripeapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == stripeapi.ErrorCodeResourceAlreadyExists
	}
	return false
}
