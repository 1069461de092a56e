package api

import (
	stderrors "errors"
	"net/http"

	"github.com/lysco/checkout-backend/api/apicommon"
	"github.com/lysco/checkout-backend/errors"
	"github.com/lysco/checkout-backend/validator"
)

// handlerFunc handles a request and returns the body of the response.
type handlerFunc func(r *http.Request) (any, error)

// handle adapts a handlerFunc to http. It is the only place where the
// errors of a request are written.
func (a *API) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r)
		if err != nil {
			writeError(w, err)
			return
		}
		apicommon.HTTPWriteJSON(w, resp)
	}
}

// writeError writes err as an API error. Errors not defined by the errors
// package are internal errors.
func writeError(w http.ResponseWriter, err error) {
	var apiErr errors.Error
	if stderrors.As(err, &apiErr) {
		apiErr.Write(w)
		return
	}
	errors.ErrGenericInternalServerError.WithErr(err).Write(w)
}

// decode reads the JSON body of the request into dst, rejecting unknown
// fields.
func decode(r *http.Request, dst any) error {
	if err := validator.DecodeJSON(r.Body, dst); err != nil {
		return errors.ErrMalformedBody.WithErr(err)
	}
	return nil
}

// validate checks dst. Violations of a rule listed in byTag are reported
// with its error, any other violation with invalid. The field errors are
// attached to the response.
func (a *API) validate(dst any, invalid errors.Error, byTag map[string]errors.Error) error {
	err := a.validator.Validate(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.ErrGenericInternalServerError.WithErr(err)
	}
	for tag, tagErr := range byTag {
		if verrs.HasTag(tag) {
			return tagErr.With(verrs.Error()).WithData(verrs)
		}
	}
	return invalid.With(verrs.Error()).WithData(verrs)
}
