package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SyncEmit(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store)
	credID := uuid.New()

	err := p.Emit(context.Background(), Event{
		Action:       ActionCredentialIssued,
		CredentialID: credID,
		Actor:        "issuer",
	})
	require.NoError(t, err)

	events, err := p.List(context.Background(), credID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionCredentialIssued, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(32))
	credID := uuid.New()

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Emit(context.Background(), Event{
			Action:       ActionReportViewed,
			CredentialID: credID,
		}))
	}
	p.Close()

	events, err := store.ListByCredential(context.Background(), credID)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, e Event) error {
	s.events = append(s.events, e)
	return nil
}

func TestPublisher_SinkReceivesPersistedEvents(t *testing.T) {
	store := NewInMemoryStore()
	sink := &recordingSink{}
	p := NewPublisher(store, WithSink(sink))
	credID := uuid.New()

	require.NoError(t, p.Emit(context.Background(), Event{
		Action:       ActionDisclosurePaid,
		CredentialID: credID,
		Timestamp:    time.Now(),
	}))

	require.Len(t, sink.events, 1)
	assert.Equal(t, ActionDisclosurePaid, sink.events[0].Action)
}
