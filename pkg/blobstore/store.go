// Package blobstore implements the content-addressable blob persistence
// layer described by the BlobStore component: a filesystem-backed object
// store keyed by 64-hex-character SHA-256 OIDs, with a five-level fan-out
// directory layout, size-aware existence checks, and write-to-tempfile
// plus atomic rename semantics.
package blobstore

import (
	"io"
	"os"
	"path/filepath"

	zerr "github.com/forgehost/lfs-gateway/errors"
	"github.com/forgehost/lfs-gateway/pkg/log"
	"github.com/forgehost/lfs-gateway/pkg/oid"
)

const (
	DefaultDirPerms  = 0o755
	DefaultFilePerms = 0o644
)

// Store is the root of the blob hierarchy: one filesystem tree rooted at
// RootDir, namespaced per repository below it.
type Store struct {
	RootDir   string
	repoAllow map[string]struct{}
	dirPerms  os.FileMode
	filePerms os.FileMode
	log       log.Logger
}

// New returns a Store rooted at rootDir, accepting operations only for
// repositories named in allowlist.
func New(rootDir string, allowlist []string, logger log.Logger) *Store {
	allow := make(map[string]struct{}, len(allowlist))
	for _, r := range allowlist {
		allow[r] = struct{}{}
	}

	return &Store{
		RootDir:   rootDir,
		repoAllow: allow,
		dirPerms:  DefaultDirPerms,
		filePerms: DefaultFilePerms,
		log:       logger,
	}
}

// SetPerms overrides the default directory/file permission mask. Callers
// hardening a deployment pass 0o700/0o600.
func (s *Store) SetPerms(dirPerms, filePerms os.FileMode) {
	s.dirPerms = dirPerms
	s.filePerms = filePerms
}

// Repo scopes subsequent operations to repo. It fails if repo is empty
// or absent from the configured allowlist, which keeps a caller from
// ever turning a repository name into an arbitrary filesystem path.
func (s *Store) Repo(repo string) (*RepoStore, error) {
	if repo == "" {
		return nil, zerr.ErrUnknownRepo
	}

	if _, ok := s.repoAllow[repo]; !ok {
		return nil, zerr.ErrUnknownRepo
	}

	return &RepoStore{store: s, repo: repo}, nil
}

// RepoStore is a Store scoped to one repository.
type RepoStore struct {
	store *Store
	repo  string
}

// blobPath computes the five-level fan-out path for oid, bounding any
// single directory to 256 entries.
func (rs *RepoStore) blobPath(oid string) string {
	return filepath.Join(
		rs.store.RootDir, rs.repo,
		oid[0:2], oid[2:4], oid[4:6], oid[6:8], oid[8:10],
		oid,
	)
}

// Exists reports whether the blob for oid is present and, when size is
// non-negative, whether its stored length matches. A size mismatch is
// reported as non-existence rather than as an error: the caller should
// treat the object as needing re-upload, never as a hard failure.
func (rs *RepoStore) Exists(oidStr string, size int64) (bool, error) {
	if err := oid.Check(oidStr); err != nil {
		return false, err
	}

	info, err := os.Stat(rs.blobPath(oidStr))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	if size >= 0 && info.Size() != size {
		return false, nil
	}

	return true, nil
}

// OpenWrite creates intermediate directories as needed and returns a
// streaming handle. The handle buffers writes in a tempfile in the same
// directory as the final blob; only Commit makes the bytes visible to
// readers, via atomic rename.
func (rs *RepoStore) OpenWrite(oidStr string) (*Writer, error) {
	if err := oid.Check(oidStr); err != nil {
		return nil, err
	}

	finalPath := rs.blobPath(oidStr)
	dir := filepath.Dir(finalPath)

	if err := os.MkdirAll(dir, rs.store.dirPerms); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, ".upload-"+oidStr+"-*")
	if err != nil {
		return nil, err
	}

	if err := tmp.Chmod(rs.store.filePerms); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return nil, err
	}

	return &Writer{file: tmp, tmpPath: tmp.Name(), finalPath: finalPath}, nil
}

// OpenRead fails with ErrBlobMissing if the blob is absent.
func (rs *RepoStore) OpenRead(oidStr string) (io.ReadCloser, error) {
	if err := oid.Check(oidStr); err != nil {
		return nil, err
	}

	f, err := os.Open(rs.blobPath(oidStr))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, zerr.ErrBlobMissing
		}

		return nil, err
	}

	return f, nil
}

// StreamTo copies the entire blob body to sink and returns the number of
// bytes copied.
func (rs *RepoStore) StreamTo(oidStr string, sink io.Writer) (int64, error) {
	r, err := rs.OpenRead(oidStr)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	return io.Copy(sink, r)
}

// Size returns the on-disk size of the blob, or ErrBlobMissing.
func (rs *RepoStore) Size(oidStr string) (int64, error) {
	if err := oid.Check(oidStr); err != nil {
		return 0, err
	}

	info, err := os.Stat(rs.blobPath(oidStr))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, zerr.ErrBlobMissing
		}

		return 0, err
	}

	return info.Size(), nil
}

// VerifyDigest recomputes the SHA-256 of the stored blob and compares it
// against oidStr. It is the integrity-scan hook used by background
// scrubbing; request handlers never call it inline.
func (rs *RepoStore) VerifyDigest(oidStr string) error {
	r, err := rs.OpenRead(oidStr)
	if err != nil {
		return err
	}
	defer r.Close()

	got, _, err := oid.Of(r)
	if err != nil {
		return err
	}

	if got != oidStr {
		return zerr.ErrBadDigest
	}

	return nil
}
