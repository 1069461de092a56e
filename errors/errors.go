package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.vocdoni.io/dvote/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error
// code and the HTTP status that should be returned to the client.
type Error struct {
	Err        error  // Original error
	Code       int    // Error code
	HTTPstatus int    // HTTP status code to return
	LogLevel   string // Log level for 4xx responses (defaults to "debug")
	Data       any    // Optional data to include in the error response
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus
// is ignored.
//
// Example output: {"error":"missing required fields","code":40005}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Error string `json:"error"`
			Code  int    `json:"code"`
			Data  any    `json:"data,omitempty"`
		}{
			Error: e.Err.Error(),
			Code:  e.Code,
			Data:  e.Data,
		})
}

// Error returns the message contained inside the Error.
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error so errors.Is can match the definitions of
// this package after With, Withf or WithErr were applied.
func (e Error) Unwrap() error {
	return e.Err
}

// Write serializes the error as JSON, sets the HTTP status and logs it. 5xx
// responses are always logged as errors, 4xx responses use LogLevel.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if e.HTTPstatus >= http.StatusInternalServerError {
		log.Errorw(e.Err, fmt.Sprintf("API error response [%d] (code: %d)", e.HTTPstatus, e.Code))
	} else {
		logMsg := fmt.Sprintf("API error response [%d]: %s (code: %d)", e.HTTPstatus, e.Error(), e.Code)
		switch e.LogLevel {
		case "info":
			log.Infow(logMsg)
		case "warn":
			log.Warnw(logMsg)
		default:
			log.Debugw(logMsg)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(append(msg, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// Withf returns a copy of Error with the Sprintf formatted string appended at
// the end of e.Err.
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// With returns a copy of Error with the string appended at the end of e.Err.
func (e Error) With(s string) Error {
	cp := e
	cp.Err = fmt.Errorf("%w: %s", e.Err, s)
	return cp
}

// WithErr returns a copy of Error with err.Error() appended at the end of
// e.Err.
func (e Error) WithErr(err error) Error {
	if err == nil {
		return e
	}
	return e.With(err.Error())
}

// WithData returns a copy of Error carrying data in the response body.
func (e Error) WithData(data any) Error {
	cp := e
	cp.Data = data
	return cp
}
