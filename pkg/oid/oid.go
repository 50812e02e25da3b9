// Package oid validates and computes Git LFS object identifiers: the
// lowercase 64-character hex SHA-256 digest of a blob's content.
package oid

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	zerr "github.com/forgehost/lfs-gateway/errors"
)

const Length = 64

// Valid reports whether s is a well-formed OID: exactly 64 characters,
// every one of them a lowercase hex digit.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}

	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

// Check is Valid as a validating constructor: it returns ErrInvalidOid
// instead of a bool so callers can short-circuit a fallible pipeline.
func Check(s string) error {
	if !Valid(s) {
		return zerr.ErrInvalidOid
	}

	return nil
}

// Of computes the OID of the bytes read from r without buffering them
// in memory beyond the hasher's internal state.
func Of(r io.Reader) (string, int64, error) {
	h := sha256.New()

	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
