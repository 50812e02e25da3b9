package errors

import "errors"

var (
	// Validation errors.
	ErrInvalidOid           = errors.New("oid: invalid format")
	ErrInvalidAction        = errors.New("action: invalid")
	ErrMissingField         = errors.New("request: missing field")
	ErrBadJSON              = errors.New("request: invalid json")
	ErrUnsupportedMediaType = errors.New("request: unsupported media type")
	ErrWrongMethod          = errors.New("request: wrong method")

	// Authentication errors.
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrBadPassword        = errors.New("auth: bad password")
	ErrExpiredToken       = errors.New("auth: token expired")

	// Authorization errors.
	ErrNoPrivilege = errors.New("auth: no privilege for action")

	// Not-found errors.
	ErrUnknownRepo  = errors.New("repository: not found")
	ErrBlobMissing  = errors.New("blob: not found")
	ErrTokenMissing = errors.New("token: not found")

	// Integrity errors.
	ErrBadDigest = errors.New("blob: digest mismatch")

	// Protocol errors.
	ErrUnknownOperation = errors.New("batch: unsupported operation")

	// Config / infra errors.
	ErrBadConfig         = errors.New("config: invalid config")
	ErrOracleUnavailable = errors.New("oracle: binary unavailable")
	ErrOracleDenied      = errors.New("oracle: access denied")
)
