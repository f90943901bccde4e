package audit

import (
	"context"

	"github.com/google/uuid"

	dErrors "credvault/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCredential(ctx context.Context, credentialID uuid.UUID) ([]Event, error)
}
