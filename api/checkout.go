package api

import (
	stderrors "errors"
	"net/http"

	"github.com/lysco/checkout-backend/api/apicommon"
	"github.com/lysco/checkout-backend/checkout"
	"github.com/lysco/checkout-backend/errors"
)

// createPaymentIntentHandler runs the checkout of the request and returns
// the payment handles the client confirms. With requestOnlyClientSecret it
// only creates a payment intent of the total and returns its client secret.
func (a *API) createPaymentIntentHandler(r *http.Request) (any, error) {
	req := &apicommon.CheckoutRequest{}
	if err := decode(r, req); err != nil {
		return nil, err
	}
	if req.RequestOnlyClientSecret {
		secret, err := a.checkout.ClientSecretOnly(r.Context(), req.Total)
		if err != nil {
			if stderrors.Is(err, checkout.ErrInvalidAmount) {
				return nil, errors.ErrInvalidAmount
			}
			return nil, errors.ErrStripeError.WithErr(err)
		}
		return &apicommon.ClientSecretResponse{ClientSecret: secret}, nil
	}
	if err := a.validate(req, errors.ErrInvalidCheckoutItems, map[string]errors.Error{
		"required": errors.ErrMissingCheckoutFields,
	}); err != nil {
		return nil, err
	}

	result, err := a.checkout.Checkout(r.Context(), req.Order())
	if err != nil {
		switch {
		case stderrors.Is(err, checkout.ErrMissingFields):
			return nil, errors.ErrMissingCheckoutFields.WithErr(err)
		case stderrors.Is(err, checkout.ErrInvalidItems):
			return nil, errors.ErrInvalidCheckoutItems.WithErr(err)
		case stderrors.Is(err, checkout.ErrProfileLink):
			return nil, errors.ErrProfileStoreFailed.WithErr(err)
		default:
			return nil, errors.ErrStripeError.WithErr(err)
		}
	}
	return result, nil
}
