package api

import (
	"errors"
	"net/http"
	"strconv"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/apierr"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

const lfsRealm = `Basic realm="Git LFS"`

// authenticate re-validates the request's Basic credentials against the
// TokenStore on every call -- the transfer layer is stateless, so there
// is no session to trust from a prior request. On failure it writes the
// 401 response itself (with the WWW-Authenticate/LFS-Authenticate
// headers the protocol requires) and returns ok=false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*token.Token, bool) {
	user, password, hasBasic := r.BasicAuth()
	if !hasBasic {
		s.failAuth(w, r, zerr.ErrMissingCredentials)

		return nil, false
	}

	tok, err := s.Tokens.Load(user, password)
	if err != nil {
		s.failAuth(w, r, err)

		return nil, false
	}

	return tok, true
}

func (s *Server) failAuth(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", lfsRealm)
	w.Header().Set("LFS-Authenticate", lfsRealm)

	if !errors.Is(err, zerr.ErrMissingCredentials) &&
		!errors.Is(err, zerr.ErrBadPassword) &&
		!errors.Is(err, zerr.ErrExpiredToken) &&
		!errors.Is(err, zerr.ErrTokenMissing) {
		err = zerr.ErrBadPassword
	}

	apierr.Write(w, err, RequestID(r))
}

// authorize checks tok against (repo, action), applying the policy that
// a download denial looks identical to a missing repository (404) while
// an upload denial is distinguishable (403).
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, tok *token.Token, repo, action string) bool {
	if tok.HasPrivilege(repo, action) {
		s.Audit.AccessDecision(tok.User, repo, action, true)

		return true
	}

	s.Audit.AccessDecision(tok.User, repo, action, false)

	if action == token.ActionUpload {
		apierr.Write(w, zerr.ErrNoPrivilege, RequestID(r))
	} else {
		apierr.Write(w, zerr.ErrUnknownRepo, RequestID(r))
	}

	return false
}

func parseSize(raw string) (int64, error) {
	if raw == "" {
		return -1, nil
	}

	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 {
		return 0, zerr.ErrMissingField
	}

	return size, nil
}
