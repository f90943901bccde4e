package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	dErrors "credvault/pkg/domain-errors"
)

// EncryptionKeySize is the required AES-256 key length in bytes.
const EncryptionKeySize = 32

// Server captures process-level configuration for the credvault service.
type Server struct {
	Addr string

	// EncryptionKey is the 32-byte AES-256-GCM key protecting report blobs.
	// It is required; FromEnv fails hard when it is absent or the wrong size.
	EncryptionKey []byte

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers string
	AmqpURL      string

	// MintQueue is the AMQP queue carrying on-chain mint confirmations.
	MintQueue string

	ShareTokenDefaultTTL time.Duration
	ViewTokenTTL         time.Duration
	CredentialValidity   time.Duration
}

const (
	defaultShareTokenTTL      = 2 * time.Minute
	defaultViewTokenTTL       = 60 * time.Second
	defaultCredentialValidity = 180 * 24 * time.Hour
	defaultMintQueue          = "credvault.mint.confirmed"
)

// FromEnv builds a Server config from environment variables so main stays lean.
// The encryption key is the only hard requirement; everything else defaults or
// stays empty to disable the optional backend.
func FromEnv() (Server, error) {
	addr := os.Getenv("CREDVAULT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	key, err := encryptionKeyFromEnv()
	if err != nil {
		return Server{}, err
	}

	cfg := Server{
		Addr:                 addr,
		EncryptionKey:        key,
		DatabaseURL:          os.Getenv("CREDVAULT_DATABASE_URL"),
		RedisURL:             os.Getenv("CREDVAULT_REDIS_URL"),
		KafkaBrokers:         os.Getenv("CREDVAULT_KAFKA_BROKERS"),
		AmqpURL:              os.Getenv("CREDVAULT_AMQP_URL"),
		MintQueue:            defaultMintQueue,
		ShareTokenDefaultTTL: defaultShareTokenTTL,
		ViewTokenTTL:         defaultViewTokenTTL,
		CredentialValidity:   defaultCredentialValidity,
	}

	if q := os.Getenv("CREDVAULT_MINT_QUEUE"); q != "" {
		cfg.MintQueue = q
	}
	if ttl := durationFromEnv("CREDVAULT_SHARE_TOKEN_TTL"); ttl > 0 {
		cfg.ShareTokenDefaultTTL = ttl
	}
	if ttl := durationFromEnv("CREDVAULT_VIEW_TOKEN_TTL"); ttl > 0 {
		cfg.ViewTokenTTL = ttl
	}

	return cfg, nil
}

// encryptionKeyFromEnv decodes and length-checks the report encryption key.
// There is deliberately no development default: a missing key must stop the
// process, never silently issue credentials under a known key.
func encryptionKeyFromEnv() ([]byte, error) {
	b64 := os.Getenv("CREDVAULT_ENC_KEY")
	if b64 == "" {
		return nil, dErrors.New(dErrors.CodeConfig, "CREDVAULT_ENC_KEY missing")
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "CREDVAULT_ENC_KEY is not valid base64")
	}
	if len(key) != EncryptionKeySize {
		return nil, dErrors.New(dErrors.CodeConfig,
			fmt.Sprintf("CREDVAULT_ENC_KEY must decode to %d bytes, got %d", EncryptionKeySize, len(key)))
	}
	return key, nil
}

func durationFromEnv(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
