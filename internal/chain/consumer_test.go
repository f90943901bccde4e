package chain

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credvault/internal/audit"
	"credvault/internal/credential/lifecycle"
	"credvault/internal/credential/models"
	"credvault/internal/credential/store"
)

func newHandler(t *testing.T) (*Handler, *store.InMemoryStore) {
	t.Helper()
	creds := store.New()
	auditor := audit.NewPublisher(audit.NewInMemoryStore())
	svc := lifecycle.NewService(creds, auditor, slog.New(slog.DiscardHandler))
	return NewHandler(svc, slog.New(slog.DiscardHandler)), creds
}

func seedPending(t *testing.T, creds *store.InMemoryStore) *models.Record {
	t.Helper()
	now := time.Now().UTC()
	rec := &models.Record{
		ID:             uuid.New(),
		WalletAddress:  "0xabc",
		SchemaID:       "assessment.v1",
		CommitmentHash: "cafe",
		StorageKey:     "r_x.json",
		Status:         models.StatusPending,
		IssuedAt:       now,
		ExpiryAt:       now.Add(time.Hour),
	}
	require.NoError(t, creds.Insert(context.Background(), rec))
	return rec
}

func confirmation(t *testing.T, credID string) []byte {
	t.Helper()
	body, err := json.Marshal(MintConfirmedMessage{
		CredentialID: credID,
		SBTID:        "sbt-9",
		TxID:         "0xfeed",
		BlockchainID: "84532",
	})
	require.NoError(t, err)
	return body
}

func TestHandler_AppliesConfirmation(t *testing.T) {
	h, creds := newHandler(t)
	rec := seedPending(t, creds)

	require.NoError(t, h.Handle(context.Background(), confirmation(t, rec.ID.String())))

	got, err := creds.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMinted, got.Status)
	assert.Equal(t, "sbt-9", got.SBTID)
	assert.Equal(t, "0xfeed", got.BlockchainTxID)
	assert.NotNil(t, got.MintedAt)
}

func TestHandler_RepeatConfirmationDropped(t *testing.T) {
	h, creds := newHandler(t)
	rec := seedPending(t, creds)
	body := confirmation(t, rec.ID.String())

	require.NoError(t, h.Handle(context.Background(), body))
	// A redelivered or duplicate confirmation must ack, not requeue.
	require.NoError(t, h.Handle(context.Background(), body))

	got, err := creds.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "sbt-9", got.SBTID)
}

func TestHandler_UnknownCredentialDropped(t *testing.T) {
	h, _ := newHandler(t)
	assert.NoError(t, h.Handle(context.Background(), confirmation(t, uuid.NewString())))
}

func TestHandler_MalformedMessagesDropped(t *testing.T) {
	h, _ := newHandler(t)
	assert.NoError(t, h.Handle(context.Background(), []byte("not json")))
	assert.NoError(t, h.Handle(context.Background(), confirmation(t, "not-a-uuid")))
}
