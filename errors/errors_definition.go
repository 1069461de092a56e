// Package errors provides custom error types and definitions for the application.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 405, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If you notice there's a gap, DON'T fill in the gap, that code was used in the past for some
// error (not anymore) and shouldn't be reused.
var (
	// Validation errors (400)
	ErrEmailMalformed         = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid email format")}
	ErrMalformedBody          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMissingCheckoutFields  = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing required fields")}
	ErrInvalidCheckoutItems   = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid checkout items")}
	ErrInvalidAmount          = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("amount must be greater than zero")}
	ErrMissingStripeCustomer  = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing stripeCustomerId")}
	ErrInvalidDocumentRequest = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid document notification request")}
	ErrInvalidContactRequest  = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid contact request")}
	ErrInvalidPhoneNumber     = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid phone number")}
	ErrInvalidRefundRequest   = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid refund request")}
	ErrInvalidRequestFields   = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid request fields")}
	ErrInvalidInvoiceRequest  = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing email or invoice items")}

	// Routing errors
	ErrMethodNotAllowed = Error{Code: 40501, HTTPstatus: http.StatusMethodNotAllowed, Err: fmt.Errorf("method not allowed"), LogLevel: "info"}
	ErrRouteNotFound    = Error{Code: 40401, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("route not found"), LogLevel: "info"}

	// Server errors (500)
	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("failed to marshal server response")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrProfileStoreFailed         = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("profile store operation failed")}
	ErrNotificationFailure        = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("notification could not be queued")}
	ErrStripeError                = Error{Code: 50005, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("payment processing failed")}
	ErrPortalSessionFailed        = Error{Code: 50006, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("failed to create portal session")}
	ErrRefundFailed               = Error{Code: 50007, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("failed to refund payment")}
	ErrBillingDataFailed          = Error{Code: 50008, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("failed to fetch stripe data")}
	ErrInvoiceRenderFailed        = Error{Code: 50009, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("failed to render invoice")}
	ErrServiceUnavailable         = Error{Code: 50301, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("service unavailable")}
)
