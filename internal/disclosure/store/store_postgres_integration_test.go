//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	credmodels "credvault/internal/credential/models"
	credstore "credvault/internal/credential/store"
	"credvault/internal/disclosure/models"
	"credvault/internal/disclosure/store"
	"credvault/internal/sentinel"
	"credvault/pkg/secrets"
	"credvault/pkg/testutil"
	"credvault/pkg/testutil/containers"
)

type PostgresTokenSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	tokens      *store.PostgresStore
	accessLog   *store.PostgresAccessLog
	credentials *credstore.PostgresStore
}

func TestPostgresTokenSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresTokenSuite))
}

func (s *PostgresTokenSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.tokens = store.NewPostgres(s.postgres.DB)
	s.accessLog = store.NewPostgresAccessLog(s.postgres.DB)
	s.credentials = credstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresTokenSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

// seedCredential inserts a minted credential for tokens to reference.
func (s *PostgresTokenSuite) seedCredential(ctx context.Context) uuid.UUID {
	now := time.Now().UTC()
	rec := &credmodels.Record{
		ID:             uuid.New(),
		WalletAddress:  "0x" + uuid.NewString()[:8],
		SchemaID:       "assessment.v2",
		CommitmentHash: "a3f1c2d4e5b6978081726354453627180918273645546372819faceb00c1d2e",
		StorageKey:     "r_" + uuid.NewString() + ".json",
		Status:         credmodels.StatusMinted,
		IssuedAt:       now,
		ExpiryAt:       now.Add(180 * 24 * time.Hour),
	}
	s.Require().NoError(s.credentials.Insert(ctx, rec))
	return rec.ID
}

func (s *PostgresTokenSuite) newShare(credentialID uuid.UUID) *models.ShareToken {
	now := time.Now().UTC()
	tok, err := secrets.GenerateToken("v_")
	s.Require().NoError(err)
	return &models.ShareToken{
		Token:        tok,
		CredentialID: credentialID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(2 * time.Minute),
	}
}

func (s *PostgresTokenSuite) TestShareRoundTrip() {
	ctx := context.Background()
	share := s.newShare(s.seedCredential(ctx))

	s.Require().NoError(s.tokens.InsertShare(ctx, share))

	found, err := s.tokens.FindShare(ctx, share.Token)
	s.Require().NoError(err)
	s.Equal(share.CredentialID, found.CredentialID)
	s.False(found.Used)
	s.WithinDuration(share.ExpiresAt, found.ExpiresAt, time.Second)
}

func (s *PostgresTokenSuite) TestShareUnknown() {
	_, err := s.tokens.FindShare(context.Background(), "v_absent")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresTokenSuite) TestMarkShareUsed() {
	ctx := context.Background()
	share := s.newShare(s.seedCredential(ctx))
	s.Require().NoError(s.tokens.InsertShare(ctx, share))

	s.Require().NoError(s.tokens.MarkShareUsed(ctx, share.Token))

	found, err := s.tokens.FindShare(ctx, share.Token)
	s.Require().NoError(err)
	s.True(found.Used)

	s.ErrorIs(s.tokens.MarkShareUsed(ctx, share.Token), sentinel.ErrAlreadyUsed)
}

func (s *PostgresTokenSuite) TestMarkShareUsedUnknown() {
	err := s.tokens.MarkShareUsed(context.Background(), "v_absent")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentMarkShareUsed verifies the conditional update admits exactly
// one winner per token under contention.
func (s *PostgresTokenSuite) TestConcurrentMarkShareUsed() {
	ctx := context.Background()
	share := s.newShare(s.seedCredential(ctx))
	s.Require().NoError(s.tokens.InsertShare(ctx, share))

	result := testutil.RunConcurrent(32, func(_ int) error {
		return s.tokens.MarkShareUsed(ctx, share.Token)
	})

	s.Equal(1, result.Successes, "exactly one consumer should win")
	s.Equal(31, result.AlreadyUsed)
}

func (s *PostgresTokenSuite) TestViewRoundTrip() {
	ctx := context.Background()
	credentialID := s.seedCredential(ctx)

	now := time.Now().UTC()
	tok, err := secrets.GenerateToken("view_")
	s.Require().NoError(err)
	view := &models.ViewToken{
		Token:        tok,
		CredentialID: credentialID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(60 * time.Second),
	}
	s.Require().NoError(s.tokens.InsertView(ctx, view))

	found, err := s.tokens.FindView(ctx, view.Token)
	s.Require().NoError(err)
	s.Equal(credentialID, found.CredentialID)
	s.WithinDuration(view.ExpiresAt, found.ExpiresAt, time.Second)

	_, err = s.tokens.FindView(ctx, "view_absent")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresTokenSuite) TestAccessLogAppendAndList() {
	ctx := context.Background()
	credentialID := s.seedCredential(ctx)
	other := s.seedCredential(ctx)

	for _, employer := range []string{"acme", "globex"} {
		err := s.accessLog.Append(ctx, models.AccessLogEntry{
			CredentialID: credentialID,
			Employer:     employer,
			AccessedAt:   time.Now().UTC(),
		})
		s.Require().NoError(err)
	}

	entries, err := s.accessLog.ListByCredential(ctx, credentialID)
	s.Require().NoError(err)
	s.Len(entries, 2)

	entries, err = s.accessLog.ListByCredential(ctx, other)
	s.Require().NoError(err)
	s.Empty(entries)
}
