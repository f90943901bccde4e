// Package models defines the credential domain types: issued assessment
// credentials, their lifecycle status, and the on-chain mint reference.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a credential through its lifecycle. A credential is issued
// pending, becomes minted exactly once, and can be revoked from either state.
type Status string

const (
	StatusPending Status = "pending"
	StatusMinted  Status = "minted"
	StatusRevoked Status = "revoked"
)

// IsValid reports whether s is one of the known lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusMinted, StatusRevoked:
		return true
	}
	return false
}

// Record is a persisted credential. The full assessment report never lives
// here; only the commitment hash and the storage key of the encrypted blob.
type Record struct {
	ID             uuid.UUID
	WalletAddress  string
	CandidateEmail string // legacy owner reference, kept for dual-read
	SchemaID       string
	SBTID          string
	CommitmentHash string
	Summary        *Summary
	StorageKey     string
	Status         Status
	BlockchainID   string
	BlockchainTxID string
	IssuedAt       time.Time
	ExpiryAt       time.Time
	MintedAt       *time.Time
	RevokedAt      *time.Time
}

// OwnerRef returns the canonical owner identifier: the wallet address when
// present, otherwise the legacy candidate email.
func (r *Record) OwnerRef() string {
	if r.WalletAddress != "" {
		return r.WalletAddress
	}
	return r.CandidateEmail
}

// Expired reports whether the credential validity window has passed.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiryAt.IsZero() && now.After(r.ExpiryAt)
}

// MintRef carries the on-chain identifiers recorded when a mint confirms.
type MintRef struct {
	SBTID        string
	TxID         string
	BlockchainID string
}

// Summary is the plaintext digest disclosed without payment: a coarse band
// and a handful of highlight bullets. It must never contain raw scores.
type Summary struct {
	Band    string   `json:"band"`
	Bullets []string `json:"bullets"`
}
