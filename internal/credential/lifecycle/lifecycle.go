// Package lifecycle enforces credential state transitions: pending is minted
// exactly once, revocation is terminal, and every transition goes through the
// store's compare-and-set so concurrent writers cannot double-apply.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"credvault/internal/audit"
	"credvault/internal/credential/models"
	"credvault/internal/credential/store"
	"credvault/internal/platform/metrics"
	"credvault/internal/sentinel"
	dErrors "credvault/pkg/domain-errors"
)

// Option configures the Service.
type Option func(*Service)

// Service applies lifecycle transitions to credentials.
type Service struct {
	credentials store.CredentialStore
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(credentials store.CredentialStore, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		credentials: credentials,
		auditor:     auditor,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// ConfirmMint records the on-chain identifiers for a pending credential.
// Only the first confirmation wins; a repeat or a confirmation against a
// revoked credential returns a conflict.
func (s *Service) ConfirmMint(ctx context.Context, id uuid.UUID, ref models.MintRef) (*models.Record, error) {
	if ref.SBTID == "" || ref.TxID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "sbt_id and tx_id are required")
	}

	mintedAt := s.now().UTC()
	rec, err := s.credentials.UpdateStatus(ctx, id, models.StatusPending, func(r *models.Record) {
		r.Status = models.StatusMinted
		r.SBTID = ref.SBTID
		r.BlockchainTxID = ref.TxID
		r.BlockchainID = ref.BlockchainID
		r.MintedAt = &mintedAt
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		case errors.Is(err, sentinel.ErrRevoked):
			return nil, dErrors.New(dErrors.CodeConflict, "credential is revoked")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeConflict, "credential is not pending mint")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "confirm mint")
	}

	if s.metrics != nil {
		s.metrics.MintsConfirmed.Inc()
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:       audit.ActionMintConfirmed,
			CredentialID: rec.ID,
			Detail: map[string]string{
				"sbt_id": ref.SBTID,
				"tx_id":  ref.TxID,
			},
		})
	}
	s.logger.Info("mint confirmed",
		"credential_id", rec.ID,
		"sbt_id", ref.SBTID,
	)
	return rec, nil
}

// Revoke marks a credential revoked from either pending or minted state.
// Revoking an already revoked credential is an error so callers learn their
// view of the credential was stale.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	current, err := s.credentials.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read credential")
	}
	if current.Status == models.StatusRevoked {
		return nil, dErrors.New(dErrors.CodeAlreadyRevoked, "credential already revoked")
	}

	revokedAt := s.now().UTC()
	rec, err := s.credentials.UpdateStatus(ctx, id, current.Status, func(r *models.Record) {
		r.Status = models.StatusRevoked
		r.RevokedAt = &revokedAt
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrRevoked):
			// A concurrent revoke won between the read and the write.
			return nil, dErrors.New(dErrors.CodeAlreadyRevoked, "credential already revoked")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeConflict, "credential state changed, retry revoke")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "revoke credential")
	}

	if s.metrics != nil {
		s.metrics.CredentialsRevoked.Inc()
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:       audit.ActionCredentialRevoked,
			CredentialID: rec.ID,
		})
	}
	s.logger.Info("credential revoked", "credential_id", rec.ID)
	return rec, nil
}
