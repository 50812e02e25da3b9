package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddlewareStampsHeaderAndContext(t *testing.T) {
	var seen string

	router := mux.NewRouter()
	router.Use(RequestIDMiddleware())
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDEmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, "", RequestID(req))
}

func TestBasicAuthUsernameAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, "", basicAuthUsername(req))
}

func TestBasicAuthUsernamePresent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.SetBasicAuth("alice", "secret")

	assert.Equal(t, "alice", basicAuthUsername(req))
}

func TestRepoFromVarsTrimsSlashes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = mux.SetURLVars(req, map[string]string{"repo": "/org/project/"})

	assert.Equal(t, "org/project", repoFromVars(req))
}

func TestStatusWriterDefaultsToOKOnWriteWithoutExplicitHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	stwr := &statusWriter{ResponseWriter: rec}

	n, err := stwr.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, stwr.status)
	assert.Equal(t, 5, stwr.length)
}

func TestStatusWriterRecordsExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	stwr := &statusWriter{ResponseWriter: rec}

	stwr.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, stwr.status)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
