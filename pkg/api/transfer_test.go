package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehost/lfs-gateway/pkg/token"
)

func TestHandleUploadThenDownloadRoundTrips(t *testing.T) {
	srv, tok := newTestServer(t, "org/repo")

	content := []byte("hello world")

	uploadReq := httptest.NewRequest(http.MethodPut, "/org/repo/info/lfs/objects/upload?oid="+testOid+"&size=11", bytes.NewReader(content))
	uploadReq.SetBasicAuth(tok.User, tok.Password)

	uploadRec := httptest.NewRecorder()
	srv.Router.ServeHTTP(uploadRec, uploadReq)
	require.Equal(t, http.StatusOK, uploadRec.Code)

	downloadReq := httptest.NewRequest(http.MethodGet, "/org/repo/info/lfs/objects/download?oid="+testOid, nil)
	downloadReq.SetBasicAuth(tok.User, tok.Password)

	downloadRec := httptest.NewRecorder()
	srv.Router.ServeHTTP(downloadRec, downloadReq)
	require.Equal(t, http.StatusOK, downloadRec.Code)
	assert.Equal(t, content, downloadRec.Body.Bytes())
	assert.Equal(t, "11", downloadRec.Header().Get("Content-Length"))
}

func TestHandleUploadRejectsSizeMismatch(t *testing.T) {
	srv, tok := newTestServer(t, "org/repo")

	req := httptest.NewRequest(http.MethodPut, "/org/repo/info/lfs/objects/upload?oid="+testOid+"&size=999", bytes.NewReader([]byte("hello world")))
	req.SetBasicAuth(tok.User, tok.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	repoStore, err := srv.Store.Repo("org/repo")
	require.NoError(t, err)
	exists, err := repoStore.Exists(testOid, -1)
	require.NoError(t, err)
	assert.False(t, exists, "a size-mismatched upload must never be published")
}

func TestHandleUploadRejectsInvalidOid(t *testing.T) {
	srv, tok := newTestServer(t, "org/repo")

	req := httptest.NewRequest(http.MethodPut, "/org/repo/info/lfs/objects/upload?oid=not-an-oid", bytes.NewReader([]byte("x")))
	req.SetBasicAuth(tok.User, tok.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleUploadDeniedWithoutPrivilege(t *testing.T) {
	srv, _ := newTestServer(t, "org/repo")

	bystander, err := srv.Tokens.LoadOrCreate("bob")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/org/repo/info/lfs/objects/upload?oid="+testOid, bytes.NewReader([]byte("x")))
	req.SetBasicAuth(bystander.User, bystander.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleDownloadMissingBlobIs404(t *testing.T) {
	srv, tok := newTestServer(t, "org/repo")

	req := httptest.NewRequest(http.MethodGet, "/org/repo/info/lfs/objects/download?oid="+testOid, nil)
	req.SetBasicAuth(tok.User, tok.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDownloadDeniedLooksLikeMissingRepoToBystander(t *testing.T) {
	srv, _ := newTestServer(t, "org/repo")

	bystander, err := srv.Tokens.LoadOrCreate("bob")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/org/repo/info/lfs/objects/download?oid="+testOid, nil)
	req.SetBasicAuth(bystander.User, bystander.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleVerifySucceedsOnlyAfterUpload(t *testing.T) {
	srv, tok := newTestServer(t, "org/repo")

	verifyBody, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(verifyRequest{Oid: testOid, Size: 11})
	require.NoError(t, err)

	verifyReq := httptest.NewRequest(http.MethodPost, "/org/repo/info/lfs/objects/verify", bytes.NewReader(verifyBody))
	verifyReq.SetBasicAuth(tok.User, tok.Password)

	before := httptest.NewRecorder()
	srv.Router.ServeHTTP(before, verifyReq)
	assert.Equal(t, http.StatusNotFound, before.Code)

	uploadReq := httptest.NewRequest(http.MethodPut, "/org/repo/info/lfs/objects/upload?oid="+testOid+"&size=11", bytes.NewReader([]byte("hello world")))
	uploadReq.SetBasicAuth(tok.User, tok.Password)
	uploadRec := httptest.NewRecorder()
	srv.Router.ServeHTTP(uploadRec, uploadReq)
	require.Equal(t, http.StatusOK, uploadRec.Code)

	verifyReq2 := httptest.NewRequest(http.MethodPost, "/org/repo/info/lfs/objects/verify", bytes.NewReader(verifyBody))
	verifyReq2.SetBasicAuth(tok.User, tok.Password)
	after := httptest.NewRecorder()
	srv.Router.ServeHTTP(after, verifyReq2)
	assert.Equal(t, http.StatusOK, after.Code)
}

func TestHandleVerifyRejectsMalformedBody(t *testing.T) {
	srv, tok := newTestServer(t, "org/repo")

	req := httptest.NewRequest(http.MethodPost, "/org/repo/info/lfs/objects/verify", bytes.NewReader([]byte("not json")))
	req.SetBasicAuth(tok.User, tok.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleVerifyRequiresUploadPrivilege(t *testing.T) {
	srv, _ := newTestServer(t, "org/repo")

	downloadOnly, err := srv.Tokens.LoadOrCreate("reader")
	require.NoError(t, err)
	require.NoError(t, downloadOnly.AddPrivilege("org/repo", token.ActionDownload))
	require.NoError(t, srv.Tokens.Save(downloadOnly))

	verifyBody, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(verifyRequest{Oid: testOid, Size: 11})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/org/repo/info/lfs/objects/verify", bytes.NewReader(verifyBody))
	req.SetBasicAuth(downloadOnly.User, downloadOnly.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleUploadDiscardsBodyOnDisconnect(t *testing.T) {
	srv, tok := newTestServer(t, "org/repo")

	req := httptest.NewRequest(http.MethodPut, "/org/repo/info/lfs/objects/upload?oid="+testOid, io.NopCloser(errReader{}))
	req.SetBasicAuth(tok.User, tok.Password)

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	repoStore, err := srv.Store.Repo("org/repo")
	require.NoError(t, err)
	exists, err := repoStore.Exists(testOid, -1)
	require.NoError(t, err)
	assert.False(t, exists)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}
