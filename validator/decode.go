package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxBodySize is the largest request body accepted by DecodeJSON.
const MaxBodySize = 1 << 20

// ErrTrailingData is returned when the body holds more than one JSON value.
var ErrTrailingData = errors.New("unexpected data after the JSON body")

// DecodeJSON decodes a single JSON object from r into dst. Unknown fields
// and type mismatches are rejected instead of being ignored or defaulted.
func DecodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}
