package checkout

import "fmt"

var (
	// ErrMissingFields is returned when the email, the payment method or the
	// user of an order is missing.
	ErrMissingFields = fmt.Errorf("missing required fields")
	// ErrInvalidItems is returned when an item of an order is incomplete.
	ErrInvalidItems = fmt.Errorf("invalid checkout items")
	// ErrInvalidAmount is returned when the amount of a payment is not
	// positive.
	ErrInvalidAmount = fmt.Errorf("amount must be greater than zero")
	// ErrProfileLink is returned when the profile could not be linked to the
	// customer and the link is required.
	ErrProfileLink = fmt.Errorf("cannot link profile to customer")
	// ErrInvalidIntent is returned when a payment intent comes back without
	// the expected fields.
	ErrInvalidIntent = fmt.Errorf("invalid payment intent")
	// ErrNoRenderer is returned when an invoice is requested from a notifier
	// built without renderer.
	ErrNoRenderer = fmt.Errorf("no invoice renderer configured")
)
