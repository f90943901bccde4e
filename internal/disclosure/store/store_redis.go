package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"credvault/internal/disclosure/models"
	"credvault/internal/sentinel"
)

const (
	shareKeyPrefix = "share:"
	usedKeyPrefix  = "share_used:"
	viewKeyPrefix  = "view:"

	// usedMarkerGrace keeps the used marker alive past token expiry so a
	// replay near the expiry boundary still reads as used, not unknown.
	usedMarkerGrace = time.Minute
)

// RedisStore keeps disclosure tokens in Redis. Token records expire with the
// key TTL, so expired tokens read as not found rather than expired; the
// service layer treats both as terminal.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock overrides the time source used to size key TTLs. The clock
// must match the one the token issuer stamps ExpiresAt with, or the key
// lifetime diverges from the logical expiry.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedis constructs a Redis-backed token store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// keyTTL sizes a token key's lifetime from its logical expiry, with the
// used-marker grace so boundary replays read as used rather than unknown.
func (s *RedisStore) keyTTL(expiresAt time.Time) time.Duration {
	return expiresAt.Sub(s.now()) + usedMarkerGrace
}

type shareTokenJSON struct {
	Token        string `json:"token"`
	CredentialID string `json:"credential_id"`
	CreatedAt    int64  `json:"created_at"` // Unix nano
	ExpiresAt    int64  `json:"expires_at"` // Unix nano
}

type viewTokenJSON struct {
	Token        string `json:"token"`
	CredentialID string `json:"credential_id"`
	CreatedAt    int64  `json:"created_at"` // Unix nano
	ExpiresAt    int64  `json:"expires_at"` // Unix nano
}

func (s *RedisStore) InsertShare(ctx context.Context, token *models.ShareToken) error {
	payload, err := json.Marshal(shareTokenJSON{
		Token:        token.Token,
		CredentialID: token.CredentialID.String(),
		CreatedAt:    token.CreatedAt.UnixNano(),
		ExpiresAt:    token.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal share token: %w", err)
	}
	ok, err := s.client.SetNX(ctx, shareKeyPrefix+token.Token, payload, s.keyTTL(token.ExpiresAt)).Result()
	if err != nil {
		return fmt.Errorf("insert share token: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) FindShare(ctx context.Context, token string) (*models.ShareToken, error) {
	raw, err := s.client.Get(ctx, shareKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find share token: %w", err)
	}
	var j shareTokenJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("unmarshal share token: %w", err)
	}
	credID, err := uuid.Parse(j.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("parse credential id: %w", err)
	}

	used, err := s.client.Exists(ctx, usedKeyPrefix+token).Result()
	if err != nil {
		return nil, fmt.Errorf("check share token used: %w", err)
	}

	return &models.ShareToken{
		Token:        j.Token,
		CredentialID: credID,
		Used:         used == 1,
		CreatedAt:    time.Unix(0, j.CreatedAt),
		ExpiresAt:    time.Unix(0, j.ExpiresAt),
	}, nil
}

// MarkShareUsed claims the used marker with SetNX: exactly one caller can
// create it, so the single-use guarantee holds without a transaction.
func (s *RedisStore) MarkShareUsed(ctx context.Context, token string) error {
	exists, err := s.client.Exists(ctx, shareKeyPrefix+token).Result()
	if err != nil {
		return fmt.Errorf("check share token: %w", err)
	}
	if exists == 0 {
		return sentinel.ErrNotFound
	}

	ttl, err := s.client.TTL(ctx, shareKeyPrefix+token).Result()
	if err != nil || ttl <= 0 {
		ttl = usedMarkerGrace
	}
	ok, err := s.client.SetNX(ctx, usedKeyPrefix+token, "1", ttl+usedMarkerGrace).Result()
	if err != nil {
		return fmt.Errorf("mark share token used: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *RedisStore) InsertView(ctx context.Context, token *models.ViewToken) error {
	payload, err := json.Marshal(viewTokenJSON{
		Token:        token.Token,
		CredentialID: token.CredentialID.String(),
		CreatedAt:    token.CreatedAt.UnixNano(),
		ExpiresAt:    token.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal view token: %w", err)
	}
	ok, err := s.client.SetNX(ctx, viewKeyPrefix+token.Token, payload, s.keyTTL(token.ExpiresAt)).Result()
	if err != nil {
		return fmt.Errorf("insert view token: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) FindView(ctx context.Context, token string) (*models.ViewToken, error) {
	raw, err := s.client.Get(ctx, viewKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find view token: %w", err)
	}
	var j viewTokenJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("unmarshal view token: %w", err)
	}
	credID, err := uuid.Parse(j.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("parse credential id: %w", err)
	}
	return &models.ViewToken{
		Token:        j.Token,
		CredentialID: credID,
		CreatedAt:    time.Unix(0, j.CreatedAt),
		ExpiresAt:    time.Unix(0, j.ExpiresAt),
	}, nil
}
