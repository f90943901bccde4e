// Package broker implements the disclosure flow: a candidate mints a
// single-use share token, an employer previews the free summary, pays to
// exchange the share token for a short-lived view token, and views the
// decrypted report while that window lasts.
//
// The share token is consumed by the payment exchange itself, before the
// credential is re-examined: a buyer who pays against a revoked credential
// has spent the token and gets a precise refusal, never a report.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"credvault/internal/audit"
	credmodels "credvault/internal/credential/models"
	credstore "credvault/internal/credential/store"
	"credvault/internal/disclosure/models"
	"credvault/internal/disclosure/store"
	"credvault/internal/disclosure/tracer"
	"credvault/internal/platform/metrics"
	"credvault/internal/sentinel"
	"credvault/internal/vault"
	dErrors "credvault/pkg/domain-errors"
	"credvault/pkg/secrets"
)

const (
	// SharePrefix and ViewPrefix are part of the token wire format.
	SharePrefix = "v_"
	ViewPrefix  = "view_"

	defaultShareTTL = 2 * time.Minute
	minShareTTL     = 30 * time.Second
	defaultViewTTL  = 60 * time.Second

	// defaultEmployer labels access log rows when the payer sends no name.
	defaultEmployer = "Employer"
)

// Option configures the Service.
type Option func(*Service)

// Service coordinates the share, pay, and view operations.
type Service struct {
	tokens      store.TokenStore
	accessLog   store.AccessLogStore
	credentials credstore.CredentialStore
	blobs       credstore.BlobStore
	cipher      *vault.Cipher
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
	logger      *slog.Logger
	shareTTL    time.Duration
	viewTTL     time.Duration
	now         func() time.Time
}

func NewService(tokens store.TokenStore, accessLog store.AccessLogStore, credentials credstore.CredentialStore, blobs credstore.BlobStore, cipher *vault.Cipher, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		tokens:      tokens,
		accessLog:   accessLog,
		credentials: credentials,
		blobs:       blobs,
		cipher:      cipher,
		auditor:     auditor,
		tracer:      tracer.NewNoop(),
		logger:      logger,
		shareTTL:    defaultShareTTL,
		viewTTL:     defaultViewTTL,
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

// WithTracer sets the tracer for the disclosure spans.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithShareTTL configures the default share token lifetime.
func WithShareTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.shareTTL = ttl
		}
	}
}

// WithViewTTL configures the view token lifetime.
func WithViewTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.viewTTL = ttl
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

// CreateShareToken mints a single-use share token for a credential the
// candidate wants to disclose. TTLs below 30 seconds are clamped up; zero
// means the configured default.
func (s *Service) CreateShareToken(ctx context.Context, credentialID uuid.UUID, ttl time.Duration) (*models.ShareToken, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCreateShare,
		tracer.String(tracer.AttrCredentialID, credentialID.String()),
	)
	token, err := s.createShareToken(ctx, credentialID, ttl)
	span.End(err)
	return token, err
}

func (s *Service) createShareToken(ctx context.Context, credentialID uuid.UUID, ttl time.Duration) (*models.ShareToken, error) {
	if _, err := s.credentials.FindByID(ctx, credentialID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read credential")
	}

	if ttl <= 0 {
		ttl = s.shareTTL
	}
	if ttl < minShareTTL {
		ttl = minShareTTL
	}

	value, err := secrets.GenerateToken(SharePrefix)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	token := &models.ShareToken{
		Token:        value,
		CredentialID: credentialID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.tokens.InsertShare(ctx, token); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store share token")
	}

	if s.metrics != nil {
		s.metrics.ShareTokensCreated.Inc()
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:       audit.ActionShareTokenCreated,
			CredentialID: credentialID,
			Detail:       map[string]string{"ttl": ttl.String()},
		})
	}
	s.logger.Info("share token created",
		"credential_id", credentialID,
		"token_hash", tracer.HashToken(value),
		"ttl", ttl,
	)
	return token, nil
}

// Preview is the free half of the exchange: summary and status, no report,
// and the share token stays spendable.
type Preview struct {
	CredentialID uuid.UUID
	SchemaID     string
	Status       credmodels.Status
	Summary      *credmodels.Summary
	IssuedAt     time.Time
	SBTID        string
}

// Preview resolves a share token without consuming it.
func (s *Service) Preview(ctx context.Context, token string) (*Preview, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPreview,
		tracer.String(tracer.AttrTokenHash, tracer.HashToken(token)),
	)
	preview, err := s.preview(ctx, token)
	span.End(err)
	return preview, err
}

func (s *Service) preview(ctx context.Context, token string) (*Preview, error) {
	share, err := s.resolveShare(ctx, token)
	if err != nil {
		return nil, err
	}

	rec, err := s.credentials.FindByID(ctx, share.CredentialID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read credential")
	}
	if refusal := s.credentialRefusal(rec); refusal != nil {
		return nil, refusal
	}

	return &Preview{
		CredentialID: rec.ID,
		SchemaID:     rec.SchemaID,
		Status:       rec.Status,
		Summary:      rec.Summary,
		IssuedAt:     rec.IssuedAt,
		SBTID:        rec.SBTID,
	}, nil
}

// PayResult is the outcome of a successful exchange: the view token and its
// window.
type PayResult struct {
	ViewToken string
	ExpiresAt time.Time
}

// PreviewAndPay consumes the share token and mints a view token. The
// compare-and-set on the share token happens before the credential state is
// re-checked, so exactly one concurrent payer can ever win and a revoked
// credential still burns the token.
func (s *Service) PreviewAndPay(ctx context.Context, token, employer string) (*PayResult, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPay,
		tracer.String(tracer.AttrTokenHash, tracer.HashToken(token)),
	)
	result, err := s.previewAndPay(ctx, token, employer)
	span.End(err)
	return result, err
}

func (s *Service) previewAndPay(ctx context.Context, token, employer string) (*PayResult, error) {
	if employer == "" {
		employer = defaultEmployer
	}
	share, err := s.resolveShare(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.MarkShareUsed(ctx, token); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			s.rejectToken("token_used")
			return nil, dErrors.New(dErrors.CodeTokenUsed, "share token already used")
		case errors.Is(err, sentinel.ErrNotFound):
			s.rejectToken("invalid_token")
			return nil, dErrors.New(dErrors.CodeInvalidToken, "share token not recognized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "consume share token")
	}

	rec, err := s.credentials.FindByID(ctx, share.CredentialID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read credential")
	}
	if refusal := s.credentialRefusal(rec); refusal != nil {
		// The token is spent regardless. Deliberate: paying for a dead
		// credential must not leave a replayable token behind.
		return nil, refusal
	}

	value, err := secrets.GenerateToken(ViewPrefix)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	view := &models.ViewToken{
		Token:        value,
		CredentialID: share.CredentialID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.viewTTL),
	}
	if err := s.tokens.InsertView(ctx, view); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store view token")
	}

	if err := s.accessLog.Append(ctx, models.AccessLogEntry{
		CredentialID: share.CredentialID,
		Employer:     employer,
		AccessedAt:   now,
	}); err != nil {
		// The exchange already succeeded; losing a log row must not claw
		// back the view token the buyer paid for.
		s.logger.Error("access log append failed",
			"credential_id", share.CredentialID,
			"error", err,
		)
	}

	if s.metrics != nil {
		s.metrics.DisclosuresPaid.Inc()
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:       audit.ActionDisclosurePaid,
			CredentialID: share.CredentialID,
			Actor:        employer,
		})
	}
	s.logger.Info("disclosure paid",
		"credential_id", share.CredentialID,
		"view_token_hash", tracer.HashToken(value),
	)
	return &PayResult{ViewToken: value, ExpiresAt: view.ExpiresAt}, nil
}

// View is the paid disclosure. When the encrypted report cannot be produced,
// ReportAvailable is false and the summary still comes back.
type View struct {
	CredentialID    uuid.UUID
	SchemaID        string
	Status          credmodels.Status
	Summary         *credmodels.Summary
	CommitmentHash  string
	Report          map[string]any
	ReportAvailable bool
	Note            string
}

// ViewReport resolves a view token and returns the decrypted report. View
// tokens are time-boxed, not single-use: within the window the buyer can
// re-fetch freely.
func (s *Service) ViewReport(ctx context.Context, token string) (*View, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanView,
		tracer.String(tracer.AttrTokenHash, tracer.HashToken(token)),
	)
	view, err := s.viewReport(ctx, span, token)
	span.End(err)
	return view, err
}

func (s *Service) viewReport(ctx context.Context, span tracer.Span, token string) (*View, error) {
	vt, err := s.tokens.FindView(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.rejectToken("invalid_token")
			return nil, dErrors.New(dErrors.CodeInvalidToken, "view token not recognized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read view token")
	}
	if vt.Expired(s.now().UTC()) {
		s.rejectToken("token_expired")
		return nil, dErrors.New(dErrors.CodeTokenExpired, "view token expired")
	}

	rec, err := s.credentials.FindByID(ctx, vt.CredentialID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read credential")
	}
	// Revocation between pay and view closes the door even on a live token.
	if refusal := s.credentialRefusal(rec); refusal != nil {
		return nil, refusal
	}

	view := &View{
		CredentialID:   rec.ID,
		SchemaID:       rec.SchemaID,
		Status:         rec.Status,
		Summary:        rec.Summary,
		CommitmentHash: rec.CommitmentHash,
	}

	report, err := s.loadReport(ctx, rec)
	if err != nil {
		span.SetAttributes(tracer.Bool(tracer.AttrDegraded, true))
		view.ReportAvailable = false
		view.Note = "full report temporarily unavailable"
		if s.metrics != nil {
			s.metrics.ReportsUnavailable.Inc()
		}
		if s.auditor != nil {
			_ = s.auditor.Emit(ctx, audit.Event{
				Action:       audit.ActionReportUnavailable,
				CredentialID: rec.ID,
			})
		}
		// Operators get the cause; viewers only get the note.
		s.logger.Error("report unavailable, degrading to summary",
			"credential_id", rec.ID,
			"error", err,
		)
		return view, nil
	}

	view.Report = report
	view.ReportAvailable = true
	if s.metrics != nil {
		s.metrics.ReportsViewed.Inc()
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:       audit.ActionReportViewed,
			CredentialID: rec.ID,
		})
	}
	return view, nil
}

func (s *Service) loadReport(ctx context.Context, rec *credmodels.Record) (map[string]any, error) {
	env, err := s.blobs.Download(ctx, rec.StorageKey)
	if err != nil {
		return nil, err
	}
	var report map[string]any
	if err := s.cipher.DecryptJSON(env, &report); err != nil {
		if errors.Is(err, vault.ErrAuthentication) && s.metrics != nil {
			s.metrics.DecryptFailures.Inc()
		}
		return nil, err
	}
	return report, nil
}

// resolveShare looks up a share token and rejects spent or expired ones.
func (s *Service) resolveShare(ctx context.Context, token string) (*models.ShareToken, error) {
	share, err := s.tokens.FindShare(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.rejectToken("invalid_token")
			return nil, dErrors.New(dErrors.CodeInvalidToken, "share token not recognized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read share token")
	}
	if share.Used {
		s.rejectToken("token_used")
		return nil, dErrors.New(dErrors.CodeTokenUsed, "share token already used")
	}
	if share.Expired(s.now().UTC()) {
		s.rejectToken("token_expired")
		return nil, dErrors.New(dErrors.CodeTokenExpired, "share token expired")
	}
	return share, nil
}

// credentialRefusal maps credential state to the disclosure refusal codes.
func (s *Service) credentialRefusal(rec *credmodels.Record) error {
	if rec.Status == credmodels.StatusRevoked {
		s.rejectToken("credential_revoked")
		return dErrors.New(dErrors.CodeCredentialRevoked, "credential has been revoked")
	}
	if rec.Expired(s.now().UTC()) {
		s.rejectToken("credential_expired")
		return dErrors.New(dErrors.CodeCredentialExpired, "credential has expired")
	}
	return nil
}

func (s *Service) rejectToken(reason string) {
	if s.metrics != nil {
		s.metrics.IncTokenRejection(reason)
	}
}
