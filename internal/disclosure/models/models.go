// Package models defines the disclosure domain types: the single-use share
// token a candidate hands to an employer, the short-lived view token minted
// on payment, and the access log row recorded for each paid disclosure.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ShareToken is a single-use capability to preview and pay for one
// credential. The token string itself is the secret; there is no signature
// to verify, only a store lookup.
type ShareToken struct {
	Token        string
	CredentialID uuid.UUID
	Used         bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the share token is past its expiry.
func (t *ShareToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// ViewToken is minted when a share token is consumed by payment. It is
// time-boxed rather than single-use so the viewer can refresh within the
// window they paid for.
type ViewToken struct {
	Token        string
	CredentialID uuid.UUID
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the view token is past its expiry.
func (t *ViewToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AccessLogEntry records one paid disclosure against a credential.
type AccessLogEntry struct {
	CredentialID uuid.UUID
	Employer     string
	AccessedAt   time.Time
}
