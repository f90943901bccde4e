package sentinel

import "errors"

// Sentinel dependency errors. Stores and other infrastructure return these
// (optionally wrapped) so services can translate them into domain errors
// exactly once.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: record, blob, or token does not exist in the store
//   - ErrAlreadyExists: write refused because the key is already taken
//     (blob overwrite, duplicate token)
//   - ErrAlreadyUsed: single-use token already consumed; the caller lost the
//     compare-and-set race or replayed a spent token
//   - ErrExpired: token or credential past its expiry timestamp
//   - ErrInvalidState: credential in the wrong status for the requested
//     transition (e.g. minted -> minted)
//   - ErrRevoked: transition refused because the credential is terminally
//     revoked; more specific than ErrInvalidState
//   - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrAlreadyUsed   = errors.New("already used")
	ErrExpired       = errors.New("expired")
	ErrInvalidState  = errors.New("invalid state")
	ErrRevoked       = errors.New("revoked")
	ErrUnavailable   = errors.New("unavailable")
)
