package apierr_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/apierr"
)

func TestStatusForMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{zerr.ErrInvalidOid, http.StatusUnprocessableEntity},
		{zerr.ErrBadDigest, http.StatusUnprocessableEntity},
		{zerr.ErrBadPassword, http.StatusUnauthorized},
		{zerr.ErrNoPrivilege, http.StatusForbidden},
		{zerr.ErrBlobMissing, http.StatusNotFound},
		{zerr.ErrWrongMethod, http.StatusMethodNotAllowed},
		{zerr.ErrUnsupportedMediaType, http.StatusNotAcceptable},
		{zerr.ErrUnknownOperation, http.StatusNotImplemented},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, apierr.StatusFor(c.err))
	}
}

func TestStatusForUnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, apierr.StatusFor(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestWriteAlwaysIncludesAllEnvelopeFields(t *testing.T) {
	rec := httptest.NewRecorder()
	apierr.Write(rec, zerr.ErrBlobMissing, "req-1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message"`)
	assert.Contains(t, rec.Body.String(), `"documentation_url"`)
	assert.Contains(t, rec.Body.String(), `"request_id":"req-1"`)
}

func TestWriteHidesInternalErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	apierr.Write(rec, assertError{}, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
