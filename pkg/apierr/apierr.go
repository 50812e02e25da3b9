// Package apierr maps the core error taxonomy onto HTTP status codes and
// the JSON error envelope returned to clients.
package apierr

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	zerr "github.com/forgehost/lfs-gateway/errors"
)

// Body is the JSON shape of every non-2xx response body. DocumentationURL
// and RequestID may be empty strings but are always present.
type Body struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
	RequestID        string `json:"request_id"`
}

// StatusFor maps an error from the core's taxonomy to the HTTP status
// code the boundary should respond with. Unrecognized errors map to 500.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, zerr.ErrInvalidOid),
		errors.Is(err, zerr.ErrInvalidAction),
		errors.Is(err, zerr.ErrMissingField),
		errors.Is(err, zerr.ErrBadJSON),
		errors.Is(err, zerr.ErrBadDigest):
		return http.StatusUnprocessableEntity

	case errors.Is(err, zerr.ErrMissingCredentials),
		errors.Is(err, zerr.ErrBadPassword),
		errors.Is(err, zerr.ErrExpiredToken),
		errors.Is(err, zerr.ErrTokenMissing):
		return http.StatusUnauthorized

	case errors.Is(err, zerr.ErrNoPrivilege):
		return http.StatusForbidden

	case errors.Is(err, zerr.ErrUnknownRepo), errors.Is(err, zerr.ErrBlobMissing):
		return http.StatusNotFound

	case errors.Is(err, zerr.ErrWrongMethod):
		return http.StatusMethodNotAllowed

	case errors.Is(err, zerr.ErrUnsupportedMediaType):
		return http.StatusNotAcceptable

	case errors.Is(err, zerr.ErrUnknownOperation):
		return http.StatusNotImplemented

	default:
		return http.StatusInternalServerError
	}
}

// Write encodes err as the JSON error envelope with the status StatusFor
// maps it to, tagging the response with requestID for correlation with
// server logs.
func Write(w http.ResponseWriter, err error, requestID string) {
	status := StatusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	body := Body{
		Message:          message,
		DocumentationURL: "",
		RequestID:        requestID,
	}

	WriteStatus(w, status, body)
}

// WriteStatus writes body as JSON with the given explicit status, for
// call sites that already know their status code (e.g. a 404 that isn't
// backed by a sentinel error).
func WriteStatus(w http.ResponseWriter, status int, body Body) {
	data, marshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(body)
	if marshalErr != nil {
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/vnd.git-lfs+json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
