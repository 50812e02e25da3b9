// Package token implements the short-lived bearer-token mechanism that
// lets a trusted SSH-invoked authenticator hand off authority to later,
// stateless HTTP requests. Tokens persist one-file-per-user on disk and
// carry per-repository, per-action privilege grants.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"sort"
	"time"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/oracle"
)

const (
	ActionDownload = "download"
	ActionUpload   = "upload"

	passwordLength   = 24
	passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Token is a bearer credential for one user, with an attached set of
// (repo, action) privilege grants proven by a prior oracle check.
type Token struct {
	User       string
	Password   string
	Privileges map[string]map[string]struct{}
	ExpiresAt  time.Time
}

func validAction(action string) bool {
	return action == ActionDownload || action == ActionUpload
}

// NewToken mints a fresh token for user with a cryptographically random
// password and an expiry ttl in the future.
func NewToken(user string, ttl time.Duration) (*Token, error) {
	password, err := generatePassword(passwordLength)
	if err != nil {
		return nil, err
	}

	return &Token{
		User:       user,
		Password:   password,
		Privileges: map[string]map[string]struct{}{},
		ExpiresAt:  time.Now().Add(ttl),
	}, nil
}

// Expired reports whether the token's expiry has passed.
func (t *Token) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}

// CheckPassword compares password against the token's stored password in
// constant time, so a timing side channel cannot leak how many leading
// bytes matched.
func (t *Token) CheckPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(t.Password), []byte(password)) == 1
}

// AuthHeader derives the HTTP Basic authorization header value carrying
// this token's credentials.
func (t *Token) AuthHeader() string {
	raw := t.User + ":" + t.Password

	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// AddPrivilege grants (repo, action). Idempotent.
func (t *Token) AddPrivilege(repo, action string) error {
	if !validAction(action) {
		return zerr.ErrInvalidAction
	}

	if t.Privileges == nil {
		t.Privileges = map[string]map[string]struct{}{}
	}

	set, ok := t.Privileges[repo]
	if !ok {
		set = map[string]struct{}{}
		t.Privileges[repo] = set
	}

	set[action] = struct{}{}

	return nil
}

// RemovePrivilege revokes (repo, action). Idempotent; removes repo from
// the grant map entirely once its action set is empty.
func (t *Token) RemovePrivilege(repo, action string) {
	set, ok := t.Privileges[repo]
	if !ok {
		return
	}

	delete(set, action)

	if len(set) == 0 {
		delete(t.Privileges, repo)
	}
}

// HasPrivilege reports whether (repo, action) is currently granted. An
// unknown repo or action reports false, never an error.
func (t *Token) HasPrivilege(repo, action string) bool {
	set, ok := t.Privileges[repo]
	if !ok {
		return false
	}

	_, ok = set[action]

	return ok
}

// ExtendTTL pushes the token's expiry ttl into the future from now.
func (t *Token) ExtendTTL(ttl time.Duration) {
	t.ExpiresAt = time.Now().Add(ttl)
}

// Revalidate re-queries oracle for every currently granted (repo, action)
// pair, drops any grant the oracle no longer approves, and extends the
// token's TTL. Called by the authenticator on every invocation so a
// revoked repository permission eventually disappears from live tokens.
func (t *Token) Revalidate(accessOracle oracle.AccessOracle, ttl time.Duration) {
	for repo, actions := range t.Privileges {
		for action := range actions {
			if !accessOracle.HasAccess(repo, t.User, action) {
				delete(actions, action)
			}
		}

		if len(actions) == 0 {
			delete(t.Privileges, repo)
		}
	}

	t.ExtendTTL(ttl)
}

// generatePassword draws n characters uniformly from passwordAlphabet
// using a cryptographically secure random source.
func generatePassword(n int) (string, error) {
	alphabetSize := big.NewInt(int64(len(passwordAlphabet)))
	result := make([]byte, n)

	for i := range result {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}

		result[i] = passwordAlphabet[idx.Int64()]
	}

	return string(result), nil
}

// tokenRecord is the on-disk JSON shape: privileges serialize as
// repo -> sorted action list rather than a map of sets.
type tokenRecord struct {
	User       string              `json:"user"`
	Password   string              `json:"password"`
	Privileges map[string][]string `json:"privileges"`
	ExpiresAt  time.Time           `json:"expires_at"`
}

func (t *Token) toRecord() tokenRecord {
	rec := tokenRecord{
		User:       t.User,
		Password:   t.Password,
		ExpiresAt:  t.ExpiresAt,
		Privileges: make(map[string][]string, len(t.Privileges)),
	}

	for repo, actions := range t.Privileges {
		list := make([]string, 0, len(actions))
		for action := range actions {
			list = append(list, action)
		}

		sort.Strings(list)
		rec.Privileges[repo] = list
	}

	return rec
}

func (rec tokenRecord) toToken() *Token {
	t := &Token{
		User:       rec.User,
		Password:   rec.Password,
		ExpiresAt:  rec.ExpiresAt,
		Privileges: make(map[string]map[string]struct{}, len(rec.Privileges)),
	}

	for repo, actions := range rec.Privileges {
		set := make(map[string]struct{}, len(actions))
		for _, action := range actions {
			set[action] = struct{}{}
		}

		t.Privileges[repo] = set
	}

	return t
}
