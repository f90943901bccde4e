package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credvault/internal/credential/models"
	"credvault/internal/sentinel"
	"credvault/internal/vault"
	"credvault/pkg/testutil"
)

func newRecord() *models.Record {
	now := time.Now().UTC()
	return &models.Record{
		ID:             uuid.New(),
		WalletAddress:  "0xabc123",
		CandidateEmail: "candidate@example.com",
		SchemaID:       "assessment.v1",
		CommitmentHash: "deadbeef",
		StorageKey:     "r_" + uuid.NewString() + ".json",
		Status:         models.StatusPending,
		IssuedAt:       now,
		ExpiryAt:       now.Add(180 * 24 * time.Hour),
	}
}

func TestInMemoryStore_InsertAndFind(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord()

	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.CommitmentHash, got.CommitmentHash)
	assert.Equal(t, models.StatusPending, got.Status)

	// Mutating the returned copy must not leak into the store.
	got.Status = models.StatusRevoked
	again, err := s.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
}

func TestInMemoryStore_InsertDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord()

	require.NoError(t, s.Insert(ctx, rec))
	assert.ErrorIs(t, s.Insert(ctx, rec), sentinel.ErrAlreadyExists)
}

func TestInMemoryStore_FindMissing(t *testing.T) {
	s := New()
	_, err := s.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ListByOwner_DualRead(t *testing.T) {
	s := New()
	ctx := context.Background()

	byWallet := newRecord()
	byWallet.WalletAddress = "0xwallet"
	byWallet.CandidateEmail = ""
	require.NoError(t, s.Insert(ctx, byWallet))

	legacy := newRecord()
	legacy.WalletAddress = ""
	legacy.CandidateEmail = "legacy@example.com"
	require.NoError(t, s.Insert(ctx, legacy))

	other := newRecord()
	other.WalletAddress = "0xother"
	other.CandidateEmail = "other@example.com"
	require.NoError(t, s.Insert(ctx, other))

	got, err := s.ListByOwner(ctx, "0xwallet")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, byWallet.ID, got[0].ID)

	got, err = s.ListByOwner(ctx, "legacy@example.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, legacy.ID, got[0].ID)
}

func TestInMemoryStore_UpdateStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord()
	require.NoError(t, s.Insert(ctx, rec))

	mintedAt := time.Now().UTC()
	updated, err := s.UpdateStatus(ctx, rec.ID, models.StatusPending, func(r *models.Record) {
		r.Status = models.StatusMinted
		r.SBTID = "sbt-1"
		r.MintedAt = &mintedAt
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMinted, updated.Status)
	assert.Equal(t, "sbt-1", updated.SBTID)

	// Second transition from pending loses the state check.
	_, err = s.UpdateStatus(ctx, rec.ID, models.StatusPending, func(r *models.Record) {
		r.Status = models.StatusMinted
	})
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	_, err = s.UpdateStatus(ctx, uuid.New(), models.StatusPending, func(*models.Record) {})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_UpdateStatus_RevokedIsTerminal(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord()
	require.NoError(t, s.Insert(ctx, rec))

	_, err := s.UpdateStatus(ctx, rec.ID, models.StatusPending, func(r *models.Record) {
		r.Status = models.StatusRevoked
	})
	require.NoError(t, err)

	// Any transition against a revoked record reports the terminal state
	// rather than a generic state mismatch.
	_, err = s.UpdateStatus(ctx, rec.ID, models.StatusPending, func(r *models.Record) {
		r.Status = models.StatusMinted
	})
	assert.ErrorIs(t, err, sentinel.ErrRevoked)
	assert.NotErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestInMemoryStore_UpdateStatus_ConcurrentSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord()
	require.NoError(t, s.Insert(ctx, rec))

	results := testutil.RunConcurrent(16, func(int) error {
		_, err := s.UpdateStatus(ctx, rec.ID, models.StatusPending, func(r *models.Record) {
			r.Status = models.StatusMinted
		})
		return err
	})

	assert.Equal(t, 1, results.Successes)
	assert.Equal(t, 15, results.InvalidState)
}

func TestInMemoryBlobStore(t *testing.T) {
	s := NewBlob()
	ctx := context.Background()
	env := vault.Envelope{IV: "aXY=", Tag: "dGFn", Ciphertext: "Y3Q="}

	require.NoError(t, s.Upload(ctx, "r_1.json", env))
	assert.ErrorIs(t, s.Upload(ctx, "r_1.json", vault.Envelope{}), sentinel.ErrAlreadyExists)

	got, err := s.Download(ctx, "r_1.json")
	require.NoError(t, err)
	assert.Equal(t, env, got)

	_, err = s.Download(ctx, "r_missing.json")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
