package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/apierr"
	"github.com/forgehost/lfs-gateway/pkg/oid"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

const (
	mediaType       = "application/vnd.git-lfs+json"
	batchPathSuffix = "/info/lfs/objects/batch"
)

type batchObject struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
}

type batchRequest struct {
	Operation string        `json:"operation"`
	Objects   []batchObject `json:"objects"`
}

type actionEntry struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresAt string            `json:"expires_at,omitempty"`
}

type objectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type responseObject struct {
	Oid     string                 `json:"oid"`
	Size    int64                  `json:"size"`
	Actions map[string]actionEntry `json:"actions,omitempty"`
	Error   *objectError           `json:"error,omitempty"`
}

type batchResponse struct {
	Transfer string           `json:"transfer"`
	Objects  []responseObject `json:"objects"`
}

func (s *Server) setupBatchRoute() {
	s.Router.HandleFunc("/{repo:.+}"+batchPathSuffix, s.handleBatch).Methods(http.MethodPost)
}

// handleBatch implements the Batch API negotiation step: it authorizes
// the caller for the requested operation, consults the BlobStore for
// each object's current presence, and returns a per-object action plan.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept"), mediaType) {
		apierr.Write(w, zerr.ErrUnsupportedMediaType, RequestID(r))

		return
	}

	if !strings.Contains(r.Header.Get("Content-Type"), mediaType) {
		apierr.Write(w, zerr.ErrUnsupportedMediaType, RequestID(r))

		return
	}

	repo := repoFromVars(r)

	repoStore, err := s.Store.Repo(repo)
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20)) //nolint:mnd
	if err != nil || len(body) == 0 {
		apierr.Write(w, zerr.ErrBadJSON, RequestID(r))

		return
	}

	var req batchRequest

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &req); err != nil {
		apierr.Write(w, zerr.ErrBadJSON, RequestID(r))

		return
	}

	if req.Operation != token.ActionUpload && req.Operation != token.ActionDownload {
		apierr.Write(w, zerr.ErrUnknownOperation, RequestID(r))

		return
	}

	tok, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if !s.authorize(w, r, tok, repo, req.Operation) {
		return
	}

	objects := make([]responseObject, 0, len(req.Objects))

	for _, obj := range req.Objects {
		objects = append(objects, s.planObject(r, repoStore, tok, repo, req.Operation, obj))
	}

	resp := batchResponse{Transfer: "basic", Objects: objects}

	w.Header().Set("Content-Type", mediaType)
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(resp)
	if err != nil {
		apierr.Write(w, err, RequestID(r))

		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) planObject(
	r *http.Request,
	repoStore repoExister,
	tok *token.Token,
	repo, operation string,
	obj batchObject,
) responseObject {
	if oid.Check(obj.Oid) != nil {
		return responseObject{
			Oid: obj.Oid, Size: obj.Size,
			Error: &objectError{Code: http.StatusUnprocessableEntity, Message: "invalid oid"},
		}
	}

	if operation == token.ActionUpload {
		exists, err := repoStore.Exists(obj.Oid, obj.Size)
		if err == nil && exists {
			return responseObject{Oid: obj.Oid, Size: obj.Size}
		}

		return responseObject{
			Oid: obj.Oid, Size: obj.Size,
			Actions: map[string]actionEntry{
				"upload": s.actionFor(r, repo, "upload", obj, tok),
				"verify": s.actionFor(r, repo, "verify", obj, tok),
			},
		}
	}

	exists, err := repoStore.Exists(obj.Oid, obj.Size)
	if err != nil || !exists {
		return responseObject{
			Oid: obj.Oid, Size: obj.Size,
			Error: &objectError{Code: http.StatusNotFound, Message: "Object does not exist"},
		}
	}

	return responseObject{
		Oid: obj.Oid, Size: obj.Size,
		Actions: map[string]actionEntry{
			"download": s.actionFor(r, repo, "download", obj, tok),
		},
	}
}

// repoExister is the narrow slice of RepoStore's interface this file
// needs, kept separate so tests can stub it without a real filesystem.
type repoExister interface {
	Exists(oidStr string, size int64) (bool, error)
}

func (s *Server) actionFor(r *http.Request, repo, verb string, obj batchObject, tok *token.Token) actionEntry {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}

	href := fmt.Sprintf("%s://%s/%s/info/lfs/objects/%s?oid=%s&size=%d",
		scheme, r.Host, repo, verb, obj.Oid, obj.Size)

	return actionEntry{
		Href:      href,
		Header:    map[string]string{"Authorization": tok.AuthHeader()},
		ExpiresAt: tok.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
