package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credvault/internal/disclosure/models"
	"credvault/internal/sentinel"
	"credvault/pkg/testutil"
)

func newShare(token string) *models.ShareToken {
	now := time.Now().UTC()
	return &models.ShareToken{
		Token:        token,
		CredentialID: uuid.New(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(2 * time.Minute),
	}
}

func TestInMemoryStore_ShareTokens(t *testing.T) {
	s := New()
	ctx := context.Background()
	share := newShare("v_abc")

	require.NoError(t, s.InsertShare(ctx, share))
	assert.ErrorIs(t, s.InsertShare(ctx, share), sentinel.ErrAlreadyExists)

	got, err := s.FindShare(ctx, "v_abc")
	require.NoError(t, err)
	assert.Equal(t, share.CredentialID, got.CredentialID)
	assert.False(t, got.Used)

	_, err = s.FindShare(ctx, "v_missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_MarkShareUsed(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InsertShare(ctx, newShare("v_once")))

	require.NoError(t, s.MarkShareUsed(ctx, "v_once"))
	assert.ErrorIs(t, s.MarkShareUsed(ctx, "v_once"), sentinel.ErrAlreadyUsed)
	assert.ErrorIs(t, s.MarkShareUsed(ctx, "v_missing"), sentinel.ErrNotFound)

	got, err := s.FindShare(ctx, "v_once")
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func TestInMemoryStore_MarkShareUsed_ExactlyOneWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InsertShare(ctx, newShare("v_race")))

	results := testutil.RunConcurrent(32, func(int) error {
		return s.MarkShareUsed(ctx, "v_race")
	})

	assert.Equal(t, 1, results.Successes)
	assert.Equal(t, 31, results.AlreadyUsed)
}

func TestInMemoryStore_ViewTokens(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	view := &models.ViewToken{
		Token:        "view_xyz",
		CredentialID: uuid.New(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Minute),
	}

	require.NoError(t, s.InsertView(ctx, view))
	assert.ErrorIs(t, s.InsertView(ctx, view), sentinel.ErrAlreadyExists)

	got, err := s.FindView(ctx, "view_xyz")
	require.NoError(t, err)
	assert.Equal(t, view.CredentialID, got.CredentialID)

	_, err = s.FindView(ctx, "view_missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryAccessLog(t *testing.T) {
	s := NewAccessLog()
	ctx := context.Background()
	credID := uuid.New()

	require.NoError(t, s.Append(ctx, models.AccessLogEntry{
		CredentialID: credID,
		Employer:     "acme",
		AccessedAt:   time.Now().UTC(),
	}))
	require.NoError(t, s.Append(ctx, models.AccessLogEntry{
		CredentialID: credID,
		Employer:     "globex",
		AccessedAt:   time.Now().UTC(),
	}))

	entries, err := s.ListByCredential(ctx, credID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = s.ListByCredential(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
