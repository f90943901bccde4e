// Package issuer implements credential issuance: the report is encrypted and
// committed before any record exists, so a stored credential always points at
// a retrievable, verifiable blob.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"credvault/internal/audit"
	"credvault/internal/credential/models"
	"credvault/internal/credential/store"
	"credvault/internal/platform/metrics"
	"credvault/internal/sentinel"
	"credvault/internal/vault"
	dErrors "credvault/pkg/domain-errors"
)

const defaultValidity = 180 * 24 * time.Hour

// Option configures the Service.
type Option func(*Service)

// Service issues credentials from assessment reports.
type Service struct {
	credentials store.CredentialStore
	blobs       store.BlobStore
	cipher      *vault.Cipher
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	validity    time.Duration
	now         func() time.Time
}

func NewService(credentials store.CredentialStore, blobs store.BlobStore, cipher *vault.Cipher, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		credentials: credentials,
		blobs:       blobs,
		cipher:      cipher,
		auditor:     auditor,
		logger:      logger,
		validity:    defaultValidity,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.validity <= 0 {
		svc.validity = defaultValidity
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithValidity configures how long issued credentials stay valid.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
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

// IssueRequest carries everything needed to issue one credential.
type IssueRequest struct {
	WalletAddress  string
	CandidateEmail string
	SchemaID       string
	Report         map[string]any
	Summary        *models.Summary
}

func (r IssueRequest) validate() error {
	if r.WalletAddress == "" && r.CandidateEmail == "" {
		return dErrors.New(dErrors.CodeValidation, "an owner reference is required")
	}
	if r.SchemaID == "" {
		return dErrors.New(dErrors.CodeValidation, "schema_id is required")
	}
	if len(r.Report) == 0 {
		return dErrors.New(dErrors.CodeValidation, "report must not be empty")
	}
	if r.Summary == nil {
		return dErrors.New(dErrors.CodeValidation, "summary is required")
	}
	return nil
}

// Issue encrypts the report, uploads the blob, and records the credential as
// pending. A failed upload aborts issuance outright: no record is ever
// written whose storage key has nothing behind it.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.Record, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	envelope, err := s.cipher.EncryptJSON(req.Report)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt report")
	}

	commitment, err := vault.CommitmentHash(req.Report)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "compute commitment")
	}

	id := uuid.New()
	storageKey := fmt.Sprintf("r_%s.json", id)

	if err := s.blobs.Upload(ctx, storageKey, envelope); err != nil {
		s.logger.Error("report blob upload failed",
			"credential_id", id,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store encrypted report")
	}

	now := s.now().UTC()
	rec := &models.Record{
		ID:             id,
		WalletAddress:  req.WalletAddress,
		CandidateEmail: req.CandidateEmail,
		SchemaID:       req.SchemaID,
		CommitmentHash: commitment,
		Summary:        req.Summary,
		StorageKey:     storageKey,
		Status:         models.StatusPending,
		IssuedAt:       now,
		ExpiryAt:       now.Add(s.validity),
	}
	if err := s.credentials.Insert(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store credential")
	}

	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:       audit.ActionCredentialIssued,
			CredentialID: rec.ID,
			Actor:        rec.OwnerRef(),
			Detail:       map[string]string{"schema_id": rec.SchemaID},
		})
	}
	s.logger.Info("credential issued",
		"credential_id", rec.ID,
		"schema_id", rec.SchemaID,
	)
	return rec, nil
}

// Get returns a credential by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	rec, err := s.credentials.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read credential")
	}
	return rec, nil
}

// ListByOwner returns all credentials the owner reference resolves to,
// matching wallet address first and the legacy email as fallback.
func (s *Service) ListByOwner(ctx context.Context, ownerRef string) ([]*models.Record, error) {
	if ownerRef == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "owner reference is required")
	}
	records, err := s.credentials.ListByOwner(ctx, ownerRef)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list credentials")
	}
	return records, nil
}
