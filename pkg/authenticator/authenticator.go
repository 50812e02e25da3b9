// Package authenticator implements the SSH-invoked credential hand-off:
// given a trusted transport's (user, repo, action) triple, it consults
// the AccessOracle, mints or refreshes a bearer token, and records the
// grant the HTTP layer will later check.
package authenticator

import (
	"fmt"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/log"
	"github.com/forgehost/lfs-gateway/pkg/oracle"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

// Credential is the JSON object written to stdout on success.
type Credential struct {
	Header    CredentialHeader `json:"header"`
	ExpiresAt string           `json:"expires_at"`
}

type CredentialHeader struct {
	Authorization string `json:"Authorization"`
}

// Authenticator wires a TokenStore, an AccessOracle, and the configured
// repository allowlist into the per-invocation protocol described by
// the CLI entrypoint.
type Authenticator struct {
	Tokens    *token.TokenStore
	Oracle    oracle.AccessOracle
	Allowlist map[string]struct{}
	Log       log.Logger
}

// New returns an Authenticator restricted to the repositories named in
// allowlist.
func New(tokens *token.TokenStore, accessOracle oracle.AccessOracle, allowlist []string, logger log.Logger) *Authenticator {
	allow := make(map[string]struct{}, len(allowlist))
	for _, r := range allowlist {
		allow[r] = struct{}{}
	}

	return &Authenticator{Tokens: tokens, Oracle: accessOracle, Allowlist: allow, Log: logger}
}

// Authorize runs the full load-or-create/revalidate/grant protocol for
// one (user, repo, action) invocation and returns the credential block
// to hand back to the calling transport, or an error identifying why
// access was refused.
func (a *Authenticator) Authorize(user, repo, action string) (*Credential, error) {
	if action != token.ActionDownload && action != token.ActionUpload {
		return nil, zerr.ErrInvalidAction
	}

	canonical := a.Oracle.PrepareRepoName(repo)

	if _, ok := a.Allowlist[canonical]; !ok {
		return nil, zerr.ErrUnknownRepo
	}

	tok, err := a.Tokens.LoadOrCreate(user)
	if err != nil {
		return nil, fmt.Errorf("load or create token: %w", err)
	}

	tok.Revalidate(a.Oracle, a.Tokens.TTL())

	if !a.Oracle.HasAccess(canonical, user, action) {
		tok.RemovePrivilege(canonical, action)

		if err := a.Tokens.Save(tok); err != nil {
			a.Log.Error().Err(err).Str("user", user).Msg("authenticator: failed to persist denied grant")
		}

		a.Log.Info().Str("user", user).Str("repo", canonical).Str("action", action).Msg("authenticator: access denied")

		return nil, zerr.ErrOracleDenied
	}

	if err := tok.AddPrivilege(canonical, action); err != nil {
		return nil, err
	}

	if err := a.Tokens.Save(tok); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	a.Log.Info().Str("user", user).Str("repo", canonical).Str("action", action).Msg("authenticator: access granted")

	return &Credential{
		Header:    CredentialHeader{Authorization: tok.AuthHeader()},
		ExpiresAt: tok.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}
