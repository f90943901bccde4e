// Package store provides persistence for disclosure tokens and access logs,
// with in-memory, PostgreSQL, and Redis backings.
package store

import (
	"context"

	"github.com/google/uuid"

	"credvault/internal/disclosure/models"
)

// TokenStore persists share and view tokens.
//
// Error Contract:
// - FindShare / FindView return sentinel.ErrNotFound for unknown tokens
// - InsertShare / InsertView return sentinel.ErrAlreadyExists on collision
// - MarkShareUsed is the compare-and-set: exactly one caller succeeds per
//   token, every other concurrent or later caller gets sentinel.ErrAlreadyUsed
type TokenStore interface {
	InsertShare(ctx context.Context, token *models.ShareToken) error
	FindShare(ctx context.Context, token string) (*models.ShareToken, error)
	MarkShareUsed(ctx context.Context, token string) error
	InsertView(ctx context.Context, token *models.ViewToken) error
	FindView(ctx context.Context, token string) (*models.ViewToken, error)
}

// AccessLogStore records paid disclosures.
type AccessLogStore interface {
	Append(ctx context.Context, entry models.AccessLogEntry) error
	ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]models.AccessLogEntry, error)
}
