package api

import (
	"net/http"

	"github.com/lysco/checkout-backend/errors"
)

const (
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "Content-Type"
)

// optionsHandler answers the preflight requests of the POST routes without
// running any handler logic.
func optionsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
	w.WriteHeader(http.StatusOK)
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", corsAllowMethods)
	errors.ErrMethodNotAllowed.Write(w)
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	errors.ErrRouteNotFound.Write(w)
}
