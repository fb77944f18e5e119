package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxBodySize bounds request bodies read by DecodeJSON.
const MaxBodySize = 1 << 20

// DecodeJSON strictly decodes a single JSON object from the request body
// into v. Failures are returned as HTTPError values ready for JSONError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return ErrUnsupportedMediaType.WithMessage("expected application/json body")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return ErrRequestTooLarge.WithMessage(fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			return ErrBadRequest.WithMessage("empty body")
		default:
			return ErrBadRequest.WithMessage("invalid JSON: " + err.Error())
		}
	}

	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return ErrBadRequest.WithMessage("unexpected data after JSON object")
	}
	return nil
}
