package issuer

import (
	"context"
	"crypto/rand"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credvault/internal/audit"
	"credvault/internal/credential/models"
	"credvault/internal/credential/store"
	"credvault/internal/sentinel"
	"credvault/internal/vault"
	dErrors "credvault/pkg/domain-errors"
)

type fixture struct {
	svc   *Service
	creds *store.InMemoryStore
	blobs *store.InMemoryBlobStore
	audit *audit.InMemoryStore
	ciph  *vault.Cipher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	key := make([]byte, vault.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	ciph, err := vault.NewCipher(key)
	require.NoError(t, err)

	creds := store.New()
	blobs := store.NewBlob()
	auditStore := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(auditStore)
	logger := slog.New(slog.DiscardHandler)

	return &fixture{
		svc:   NewService(creds, blobs, ciph, auditor, logger, opts...),
		creds: creds,
		blobs: blobs,
		audit: auditStore,
		ciph:  ciph,
	}
}

func validRequest() IssueRequest {
	return IssueRequest{
		WalletAddress: "0xabc",
		SchemaID:      "assessment.v1",
		Report:        map[string]any{"score": 82, "skills": []string{"go"}},
		Summary:       &models.Summary{Band: "A", Bullets: []string{"Strong performance in systems"}},
	}
}

func TestIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Issue(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, rec.Status)
	assert.True(t, strings.HasPrefix(rec.StorageKey, "r_"))
	assert.True(t, strings.HasSuffix(rec.StorageKey, ".json"))
	assert.Regexp(t, "^[0-9a-f]{64}$", rec.CommitmentHash)
	assert.Empty(t, rec.SBTID)
	assert.Nil(t, rec.MintedAt)

	// The blob must round-trip back to the original report.
	env, err := f.blobs.Download(ctx, rec.StorageKey)
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, f.ciph.DecryptJSON(env, &report))
	assert.Equal(t, float64(82), report["score"])

	// And the commitment must match the plaintext, not the envelope.
	hash, err := vault.CommitmentHash(report)
	require.NoError(t, err)
	assert.Equal(t, rec.CommitmentHash, hash)
}

func TestIssue_ValidityWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return base }))

	rec, err := f.svc.Issue(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, base, rec.IssuedAt)
	assert.Equal(t, base.Add(180*24*time.Hour), rec.ExpiryAt)
}

func TestIssue_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*IssueRequest)
	}{
		{"missing owner", func(r *IssueRequest) { r.WalletAddress = ""; r.CandidateEmail = "" }},
		{"missing schema", func(r *IssueRequest) { r.SchemaID = "" }},
		{"empty report", func(r *IssueRequest) { r.Report = nil }},
		{"missing summary", func(r *IssueRequest) { r.Summary = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := f.svc.Issue(ctx, req)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

type failingBlobStore struct{}

func (failingBlobStore) Upload(context.Context, string, vault.Envelope) error {
	return sentinel.ErrUnavailable
}

func (failingBlobStore) Download(context.Context, string) (vault.Envelope, error) {
	return vault.Envelope{}, sentinel.ErrUnavailable
}

func TestIssue_UploadFailureAbortsIssuance(t *testing.T) {
	f := newFixture(t)
	f.svc.blobs = failingBlobStore{}
	ctx := context.Background()

	req := validRequest()
	_, err := f.svc.Issue(ctx, req)
	require.Error(t, err)

	// No orphan record may exist.
	records, err := f.creds.ListByOwner(ctx, req.WalletAddress)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIssue_EmitsAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Issue(ctx, validRequest())
	require.NoError(t, err)

	events, err := f.audit.ListByCredential(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionCredentialIssued, events[0].Action)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Issue(ctx, validRequest())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = f.svc.Get(ctx, uuid.New())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestListByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Issue(ctx, validRequest())
	require.NoError(t, err)

	legacy := validRequest()
	legacy.WalletAddress = ""
	legacy.CandidateEmail = "candidate@example.com"
	second, err := f.svc.Issue(ctx, legacy)
	require.NoError(t, err)

	got, err := f.svc.ListByOwner(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)

	got, err = f.svc.ListByOwner(ctx, "candidate@example.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second.ID, got[0].ID)

	_, err = f.svc.ListByOwner(ctx, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
