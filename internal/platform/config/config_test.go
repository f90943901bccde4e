package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credvault/pkg/domain-errors"
)

func TestFromEnv_EncryptionKey(t *testing.T) {
	t.Run("missing key fails hard", func(t *testing.T) {
		t.Setenv("CREDVAULT_ENC_KEY", "")
		_, err := FromEnv()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))
	})

	t.Run("wrong length fails hard", func(t *testing.T) {
		t.Setenv("CREDVAULT_ENC_KEY", base64.StdEncoding.EncodeToString(make([]byte, 16)))
		_, err := FromEnv()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))
	})

	t.Run("invalid base64 fails hard", func(t *testing.T) {
		t.Setenv("CREDVAULT_ENC_KEY", "not-base64!!!")
		_, err := FromEnv()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))
	})

	t.Run("valid 32-byte key loads", func(t *testing.T) {
		t.Setenv("CREDVAULT_ENC_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Len(t, cfg.EncryptionKey, EncryptionKeySize)
		assert.Equal(t, ":8080", cfg.Addr)
	})
}

func TestFromEnv_TTLOverrides(t *testing.T) {
	t.Setenv("CREDVAULT_ENC_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	t.Setenv("CREDVAULT_SHARE_TOKEN_TTL", "5m")
	t.Setenv("CREDVAULT_VIEW_TOKEN_TTL", "90s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", cfg.ShareTokenDefaultTTL.String())
	assert.Equal(t, "1m30s", cfg.ViewTokenTTL.String())
}
