package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apierrors "github.com/CedrosPay/cardpay/internal/errors"
)

const maxBodyBytes = 64 << 10

// errEmptyBody is returned by decodeJSON for a request without a body.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON decodes a JSON request body into the destination struct.
// The reader will be closed after decoding.
func decodeJSON(r io.ReadCloser, dest any) error {
	defer r.Close()
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// readEnvelope decodes the body and writes the error response itself when decoding fails.
// It reports whether the handler should continue. Decoder messages stay in the logs.
func readEnvelope(w http.ResponseWriter, r *http.Request, dest any) bool {
	err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), dest)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, errEmptyBody):
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "request body is required")
	case errors.As(err, &tooLarge):
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeRequestTooLarge, "request body is too large", "max_bytes", maxBodyBytes)
	case errors.As(err, &typeErr) && strings.HasSuffix(typeErr.Field, "card_number"):
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeInvalidCardNumber, "card_number must be a string of 15 digits", "field", typeErr.Field)
	case errors.As(err, &typeErr):
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeInvalidField, "field has the wrong type", "field", typeErr.Field)
	default:
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "malformed JSON body")
	}
	return false
}
