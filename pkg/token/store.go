package token

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	jsoniter "github.com/json-iterator/go"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/log"
)

const (
	DefaultFilePerms = 0o600
	DefaultTTL       = 2 * time.Hour
	lockTimeout      = 10 * time.Second
)

// TokenStore persists, loads, refreshes, and invalidates bearer tokens,
// one JSON file per user underneath dir.
type TokenStore struct {
	dir       string
	ttl       time.Duration
	filePerms os.FileMode
	log       log.Logger
}

// New returns a TokenStore rooted at dir, minting tokens with the given
// default TTL.
func New(dir string, ttl time.Duration, logger log.Logger) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &TokenStore{
		dir:       dir,
		ttl:       ttl,
		filePerms: DefaultFilePerms,
		log:       logger,
	}
}

// SetFilePerms overrides the default token file permission mask.
func (s *TokenStore) SetFilePerms(perms os.FileMode) {
	s.filePerms = perms
}

// TTL returns the store's configured default token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

func (s *TokenStore) tokenPath(user string) string {
	return filepath.Join(s.dir, user)
}

func (s *TokenStore) lockPath(user string) string {
	return filepath.Join(s.dir, "."+user+".lock")
}

// withUserLock takes an inter-process file lock scoped to user for the
// duration of fn, guaranteeing a load-modify-store cycle issued by two
// racing authenticator invocations never loses one writer's update.
func (s *TokenStore) withUserLock(user string, fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	fl := flock.New(s.lockPath(user))

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return err
	}

	if !locked {
		return errors.New("token: timed out waiting for user lock")
	}

	defer fl.Unlock() //nolint: errcheck

	return fn()
}

// LoadOrCreate atomically returns a valid, non-expired token for user,
// minting one if absent or expired. An expired on-disk token is deleted
// before the new one is written.
func (s *TokenStore) LoadOrCreate(user string) (*Token, error) {
	var result *Token

	err := s.withUserLock(user, func() error {
		existing, readErr := s.readFile(user)

		switch {
		case readErr == nil && !existing.Expired():
			result = existing

			return nil
		case readErr == nil:
			if err := os.Remove(s.tokenPath(user)); err != nil && !os.IsNotExist(err) {
				return err
			}
		case !errors.Is(readErr, zerr.ErrTokenMissing):
			return readErr
		}

		fresh, err := NewToken(user, s.ttl)
		if err != nil {
			return err
		}

		if err := s.writeFile(fresh); err != nil {
			return err
		}

		result = fresh

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Load returns the on-disk token for user only if it exists, has not
// expired, and password matches exactly.
func (s *TokenStore) Load(user, password string) (*Token, error) {
	tok, err := s.readFile(user)
	if err != nil {
		return nil, err
	}

	if tok.Expired() {
		return nil, zerr.ErrExpiredToken
	}

	if !tok.CheckPassword(password) {
		return nil, zerr.ErrBadPassword
	}

	return tok, nil
}

// Save persists tok to disk under the per-user lock, using a
// write-to-tempfile-then-rename so concurrent readers never observe a
// half-written file.
func (s *TokenStore) Save(tok *Token) error {
	return s.withUserLock(tok.User, func() error {
		return s.writeFile(tok)
	})
}

// Delete removes the token file for user, if present.
func (s *TokenStore) Delete(user string) error {
	return s.withUserLock(user, func() error {
		err := os.Remove(s.tokenPath(user))
		if err != nil && os.IsNotExist(err) {
			return nil
		}

		return err
	})
}

func (s *TokenStore) readFile(user string) (*Token, error) {
	data, err := os.ReadFile(s.tokenPath(user))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, zerr.ErrTokenMissing
		}

		return nil, err
	}

	var rec tokenRecord

	if err := jsoniter.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return rec.toToken(), nil
}

func (s *TokenStore) writeFile(tok *Token) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(tok.toRecord(), "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+tok.User+"-*")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return err
	}

	if err := tmp.Chmod(s.filePerms); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return err
	}

	s.log.Debug().Str("user", tok.User).Msg("token: persisted")

	return os.Rename(tmpPath, s.tokenPath(tok.User))
}
