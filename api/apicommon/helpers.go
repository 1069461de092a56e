package apicommon

import (
	"encoding/json"
	"net/http"

	"github.com/lysco/checkout-backend/errors"
	"go.vocdoni.io/dvote/log"
)

// HTTPWriteJSON helper function allows to write a JSON response. The body is
// marshaled before the status is sent, a marshal failure is answered with
// ErrMarshalingServerJSONFailed.
func HTTPWriteJSON(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errors.ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}
