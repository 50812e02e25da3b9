package api

import (
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/apierr"
	"github.com/forgehost/lfs-gateway/pkg/oid"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

const uploadChunkSize = 1 << 10 // 1 KiB, matches the streaming budget the protocol assumes.

func (s *Server) setupTransferRoutes() {
	s.Router.HandleFunc("/{repo:.+}/info/lfs/objects/upload", s.handleUpload).Methods(http.MethodPut)
	s.Router.HandleFunc("/{repo:.+}/info/lfs/objects/download", s.handleDownload).Methods(http.MethodGet)
	s.Router.HandleFunc("/{repo:.+}/info/lfs/objects/verify", s.handleVerify).Methods(http.MethodPost)
}

// handleUpload streams the request body into the BlobStore in bounded
// chunks, so memory use never scales with object size.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	repo := repoFromVars(r)

	repoStore, err := s.Store.Repo(repo)
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	oidStr := r.URL.Query().Get("oid")
	if err := oid.Check(oidStr); err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	declaredSize, err := parseSize(r.URL.Query().Get("size"))
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	tok, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if !s.authorize(w, r, tok, repo, token.ActionUpload) {
		return
	}

	writer, err := repoStore.OpenWrite(oidStr)
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	defer writer.Close() //nolint: errcheck

	buf := make([]byte, uploadChunkSize)

	if _, err := io.CopyBuffer(writer, r.Body, buf); err != nil {
		_ = writer.Cancel()
		apierr.Write(w, err, RequestID(r))

		return
	}

	if declaredSize >= 0 && writer.Size() != declaredSize {
		_ = writer.Cancel()
		apierr.Write(w, zerr.ErrBadDigest, RequestID(r))

		return
	}

	if err := writer.Commit(); err != nil {
		_ = writer.Cancel()
		apierr.Write(w, err, RequestID(r))

		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleDownload streams the blob body to the client, disabling
// intermediate buffering and setting Content-Length when size is known.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	repo := repoFromVars(r)

	repoStore, err := s.Store.Repo(repo)
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	oidStr := r.URL.Query().Get("oid")
	if err := oid.Check(oidStr); err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	tok, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if !s.authorize(w, r, tok, repo, token.ActionDownload) {
		return
	}

	reader, err := repoStore.OpenRead(oidStr)
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	defer reader.Close() //nolint: errcheck

	if size, err := repoStore.Size(oidStr); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	_, _ = io.Copy(w, reader)
}

type verifyRequest struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
}

// handleVerify confirms the BlobStore holds exactly size bytes for oid,
// the last step a client takes after a successful upload.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	repo := repoFromVars(r)

	repoStore, err := s.Store.Repo(repo)
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	tok, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if !s.authorize(w, r, tok, repo, token.ActionUpload) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16)) //nolint:mnd
	if err != nil {
		apierr.Write(w, zerr.ErrBadJSON, RequestID(r))

		return
	}

	var req verifyRequest

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &req); err != nil {
		apierr.Write(w, zerr.ErrBadJSON, RequestID(r))

		return
	}

	if err := oid.Check(req.Oid); err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	exists, err := repoStore.Exists(req.Oid, req.Size)
	if err != nil || !exists {
		apierr.Write(w, zerr.ErrBlobMissing, RequestID(r))

		return
	}

	w.WriteHeader(http.StatusOK)
}
