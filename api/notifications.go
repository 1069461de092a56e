package api

import (
	stderrors "errors"
	"net/http"

	"github.com/lysco/checkout-backend/api/apicommon"
	"github.com/lysco/checkout-backend/checkout"
	"github.com/lysco/checkout-backend/errors"
	"github.com/lysco/checkout-backend/internal"
	"github.com/lysco/checkout-backend/notifications/mailtemplates"
)

// documentNotificationHandler queues the email announcing a new document to
// a user.
func (a *API) documentNotificationHandler(r *http.Request) (any, error) {
	req := &apicommon.DocumentNotificationRequest{}
	if err := decode(r, req); err != nil {
		return nil, err
	}
	if err := a.validate(req, errors.ErrInvalidDocumentRequest, map[string]errors.Error{
		"email": errors.ErrEmailMalformed,
	}); err != nil {
		return nil, err
	}
	if a.notifier == nil {
		return nil, errors.ErrServiceUnavailable.With("notifications not available")
	}
	id, err := a.notifier.DocumentAvailable(req.Email, req.FileName, req.FileURL)
	if err != nil {
		return nil, errors.ErrNotificationFailure.WithErr(err)
	}
	return &apicommon.QueuedResponse{Queued: true, ID: id.String()}, nil
}

// contactHandler forwards a contact message, or a quote request when the
// request has no subject, to the responsible address.
func (a *API) contactHandler(r *http.Request) (any, error) {
	req := &apicommon.ContactRequest{}
	if err := decode(r, req); err != nil {
		return nil, err
	}
	if err := a.validate(req, errors.ErrInvalidContactRequest, map[string]errors.Error{
		"phone": errors.ErrInvalidPhoneNumber,
	}); err != nil {
		return nil, err
	}
	if a.notifier == nil {
		return nil, errors.ErrServiceUnavailable.With("notifications not available")
	}

	var queueErr error
	resp := &apicommon.ContactResponse{Status: "success"}
	if req.IsQuote() {
		phone, err := internal.SanitizePhoneNumber(req.Phone)
		if err != nil {
			return nil, errors.ErrInvalidPhoneNumber.WithErr(err)
		}
		id, err := a.notifier.QuoteRequest(mailtemplates.QuoteData{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Email:       req.Email,
			Phone:       phone,
			Company:     req.Company,
			ServiceType: req.ServiceType,
			Budget:      req.Budget,
			Message:     req.Message,
		})
		resp.ID, queueErr = id.String(), err
	} else {
		id, err := a.notifier.ContactMessage(mailtemplates.ContactData{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Subject:   req.Subject,
			Message:   req.Message,
		})
		resp.ID, queueErr = id.String(), err
	}
	if queueErr != nil {
		return nil, errors.ErrNotificationFailure.WithErr(queueErr)
	}
	return resp, nil
}

func refundData(req *apicommon.RefundRequest) mailtemplates.RefundData {
	return mailtemplates.RefundData{
		UserEmail:       req.UserEmail,
		ReservationDate: req.ReservationDate,
		ReservationType: req.ReservationType,
		PaymentIntentID: req.PaymentIntentID,
	}
}

// sendInvoiceHandler renders the invoice of the given lines and emails it to
// the client, the responsible address in copy.
func (a *API) sendInvoiceHandler(r *http.Request) (any, error) {
	req := &apicommon.SendInvoiceRequest{}
	if err := decode(r, req); err != nil {
		return nil, err
	}
	if err := a.validate(req, errors.ErrInvalidInvoiceRequest, map[string]errors.Error{
		"email": errors.ErrEmailMalformed,
	}); err != nil {
		return nil, err
	}
	if a.notifier == nil {
		return nil, errors.ErrServiceUnavailable.With("notifications not available")
	}
	id, number, err := a.notifier.InvoiceRequested(r.Context(), req.FullName, req.Order())
	switch {
	case stderrors.Is(err, checkout.ErrNoRenderer):
		return nil, errors.ErrServiceUnavailable.With("invoices not available")
	case err != nil && number == "":
		return nil, errors.ErrInvoiceRenderFailed.WithErr(err)
	case err != nil:
		return nil, errors.ErrNotificationFailure.WithErr(err)
	}
	return &apicommon.SendInvoiceResponse{Success: true, ID: id.String(), InvoiceNumber: number}, nil
}
