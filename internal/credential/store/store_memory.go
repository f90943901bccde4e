package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"credvault/internal/credential/models"
	"credvault/internal/sentinel"
	"credvault/internal/vault"
)

// InMemoryStore keeps credential records in memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.Record
}

// New constructs an empty in-memory credential store.
func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]*models.Record)}
}

func (s *InMemoryStore) Insert(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	copyRec := *rec
	s.records[rec.ID] = &copyRec
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRec := *rec
	return &copyRec, nil
}

// ListByOwner matches on the wallet address and, for records issued before
// wallet binding, the legacy candidate email.
func (s *InMemoryStore) ListByOwner(_ context.Context, ownerRef string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, rec := range s.records {
		if rec.WalletAddress == ownerRef || rec.CandidateEmail == ownerRef {
			copyRec := *rec
			out = append(out, &copyRec)
		}
	}
	return out, nil
}

// UpdateStatus applies a mutation only if the record is currently in the
// expected state. The single mutex makes the check-and-apply atomic.
func (s *InMemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from models.Status, apply func(*models.Record)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.Status != from {
		if rec.Status == models.StatusRevoked {
			return nil, sentinel.ErrRevoked
		}
		return nil, sentinel.ErrInvalidState
	}
	apply(rec)
	copyRec := *rec
	return &copyRec, nil
}

// InMemoryBlobStore keeps encrypted envelopes in memory.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]vault.Envelope
}

// NewBlob constructs an empty in-memory blob store.
func NewBlob() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]vault.Envelope)}
}

func (s *InMemoryBlobStore) Upload(_ context.Context, key string, env vault.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.blobs[key] = env
	return nil
}

func (s *InMemoryBlobStore) Download(_ context.Context, key string) (vault.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.blobs[key]
	if !ok {
		return vault.Envelope{}, sentinel.ErrNotFound
	}
	return env, nil
}

// Delete removes a blob. Used by tests to simulate storage loss.
func (s *InMemoryBlobStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
}
