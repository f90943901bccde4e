package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"credvault/internal/disclosure/models"
	"credvault/internal/sentinel"
)

// InMemoryStore keeps tokens in memory for tests and local runs.
type InMemoryStore struct {
	mu     sync.Mutex
	shares map[string]*models.ShareToken
	views  map[string]*models.ViewToken
}

// New constructs an empty in-memory token store.
func New() *InMemoryStore {
	return &InMemoryStore{
		shares: make(map[string]*models.ShareToken),
		views:  make(map[string]*models.ViewToken),
	}
}

func (s *InMemoryStore) InsertShare(_ context.Context, token *models.ShareToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[token.Token]; ok {
		return sentinel.ErrAlreadyExists
	}
	copyToken := *token
	s.shares[token.Token] = &copyToken
	return nil
}

func (s *InMemoryStore) FindShare(_ context.Context, token string) (*models.ShareToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.shares[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyToken := *st
	return &copyToken, nil
}

// MarkShareUsed flips the used flag under the store mutex so the check and
// the write are one atomic step.
func (s *InMemoryStore) MarkShareUsed(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.shares[token]
	if !ok {
		return sentinel.ErrNotFound
	}
	if st.Used {
		return sentinel.ErrAlreadyUsed
	}
	st.Used = true
	return nil
}

func (s *InMemoryStore) InsertView(_ context.Context, token *models.ViewToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[token.Token]; ok {
		return sentinel.ErrAlreadyExists
	}
	copyToken := *token
	s.views[token.Token] = &copyToken
	return nil
}

func (s *InMemoryStore) FindView(_ context.Context, token string) (*models.ViewToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vt, ok := s.views[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyToken := *vt
	return &copyToken, nil
}

// InMemoryAccessLog keeps access log entries in memory.
type InMemoryAccessLog struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]models.AccessLogEntry
}

// NewAccessLog constructs an empty in-memory access log.
func NewAccessLog() *InMemoryAccessLog {
	return &InMemoryAccessLog{entries: make(map[uuid.UUID][]models.AccessLogEntry)}
}

func (s *InMemoryAccessLog) Append(_ context.Context, entry models.AccessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.CredentialID] = append(s.entries[entry.CredentialID], entry)
	return nil
}

func (s *InMemoryAccessLog) ListByCredential(_ context.Context, credentialID uuid.UUID) ([]models.AccessLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AccessLogEntry{}, s.entries[credentialID]...), nil
}
