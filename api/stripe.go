package api

import (
	"net/http"

	"github.com/lysco/checkout-backend/api/apicommon"
	"github.com/lysco/checkout-backend/errors"
	"go.vocdoni.io/dvote/log"
)

// createPortalSessionHandler opens a billing portal session for the
// customer and returns its URL.
func (a *API) createPortalSessionHandler(r *http.Request) (any, error) {
	req := &apicommon.CustomerRequest{}
	if err := decode(r, req); err != nil {
		return nil, err
	}
	if err := a.validate(req, errors.ErrInvalidRequestFields, map[string]errors.Error{
		"required": errors.ErrMissingStripeCustomer,
	}); err != nil {
		return nil, err
	}
	session, err := a.gateway.CreatePortalSession(r.Context(), req.StripeCustomerID, req.ReturnURL)
	if err != nil {
		return nil, errors.ErrPortalSessionFailed.WithErr(err)
	}
	return &apicommon.PortalSessionResponse{URL: session.URL}, nil
}

// refundPaymentHandler refunds the whole payment intent and queues the
// cancellation emails. Email failures are logged, the refund is done.
func (a *API) refundPaymentHandler(r *http.Request) (any, error) {
	req := &apicommon.RefundRequest{}
	if err := decode(r, req); err != nil {
		return nil, err
	}
	if err := a.validate(req, errors.ErrInvalidRefundRequest, map[string]errors.Error{
		"email": errors.ErrEmailMalformed,
	}); err != nil {
		return nil, err
	}
	refund, err := a.gateway.CreateRefund(r.Context(), req.PaymentIntentID)
	if err != nil {
		return nil, errors.ErrRefundFailed.WithErr(err)
	}
	log.Infow("payment refunded", "paymentIntent", req.PaymentIntentID, "refund", refund.ID, "status", refund.Status)

	if a.notifier == nil {
		log.Warnw("no notifier configured, refund emails not sent", "refund", refund.ID)
	} else if _, err := a.notifier.RefundIssued(refundData(req)); err != nil {
		log.Warnw("refund emails not queued", "refund", refund.ID, "error", err)
	}
	return &apicommon.RefundResponse{
		Success:  true,
		RefundID: refund.ID,
		Status:   string(refund.Status),
	}, nil
}

// billingDataHandler returns the subscriptions and the last invoices of the
// customer.
func (a *API) billingDataHandler(r *http.Request) (any, error) {
	req := &apicommon.CustomerRequest{}
	if err := decode(r, req); err != nil {
		return nil, err
	}
	if err := a.validate(req, errors.ErrInvalidRequestFields, map[string]errors.Error{
		"required": errors.ErrMissingStripeCustomer,
	}); err != nil {
		return nil, err
	}
	if a.billing == nil {
		return nil, errors.ErrServiceUnavailable.With("billing data not available")
	}
	data, err := a.billing.CustomerData(r.Context(), req.StripeCustomerID)
	if err != nil {
		return nil, errors.ErrBillingDataFailed.WithErr(err)
	}
	return data, nil
}
