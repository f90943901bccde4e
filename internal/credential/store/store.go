// Package store provides persistence for credential records and encrypted
// report blobs, with in-memory and PostgreSQL backings.
package store

import (
	"context"

	"github.com/google/uuid"

	"credvault/internal/credential/models"
	"credvault/internal/vault"
)

// CredentialStore persists credential records.
//
// Error Contract:
// - FindByID returns sentinel.ErrNotFound when no record exists
// - Insert returns sentinel.ErrAlreadyExists on duplicate ID
// - UpdateStatus returns sentinel.ErrInvalidState when the record is not
//   in the expected state (the compare-and-set lost)
// - Other failures are wrapped infrastructure errors
type CredentialStore interface {
	Insert(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListByOwner(ctx context.Context, ownerRef string) ([]*models.Record, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from models.Status, apply func(*models.Record)) (*models.Record, error)
}

// BlobStore persists encrypted report envelopes keyed by storage key.
//
// Error Contract:
// - Upload returns sentinel.ErrAlreadyExists when the key is taken;
//   blobs are immutable and never overwritten
// - Download returns sentinel.ErrNotFound when the key is absent
type BlobStore interface {
	Upload(ctx context.Context, key string, env vault.Envelope) error
	Download(ctx context.Context, key string) (vault.Envelope, error)
}
