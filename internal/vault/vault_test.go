package vault

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credvault/pkg/domain-errors"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestNewCipher_KeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := NewCipher(make([]byte, n))
		require.Error(t, err, "key length %d", n)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))
	}

	_, err := NewCipher(make([]byte, KeySize))
	assert.NoError(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	report := map[string]any{
		"score":   82,
		"skills":  []string{"go", "sql"},
		"nested":  map[string]any{"depth": 2, "ok": true},
		"comment": "solid systems fundamentals",
	}

	env, err := c.EncryptJSON(report)
	require.NoError(t, err)

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	assert.Len(t, iv, NonceSize)
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	require.NoError(t, err)
	assert.Len(t, tag, TagSize)

	var got map[string]any
	require.NoError(t, c.DecryptJSON(env, &got))
	assert.Equal(t, float64(82), got["score"])
	assert.Equal(t, "solid systems fundamentals", got["comment"])
}

func TestEncryptJSON_FreshNonce(t *testing.T) {
	c := newTestCipher(t)
	payload := map[string]any{"score": 70}

	a, err := c.EncryptJSON(payload)
	require.NoError(t, err)
	b, err := c.EncryptJSON(payload)
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptJSON_TamperDetection(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptJSON(map[string]any{"score": 91})
	require.NoError(t, err)

	flipFirstByte := func(encoded string) string {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		raw[0] ^= 0x01
		return base64.StdEncoding.EncodeToString(raw)
	}

	t.Run("ciphertext bit flip", func(t *testing.T) {
		tampered := env
		tampered.Ciphertext = flipFirstByte(env.Ciphertext)
		var out map[string]any
		err := c.DecryptJSON(tampered, &out)
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.Empty(t, out)
	})

	t.Run("tag bit flip", func(t *testing.T) {
		tampered := env
		tampered.Tag = flipFirstByte(env.Tag)
		var out map[string]any
		assert.ErrorIs(t, c.DecryptJSON(tampered, &out), ErrAuthentication)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := newTestCipher(t)
		var out map[string]any
		assert.ErrorIs(t, other.DecryptJSON(env, &out), ErrAuthentication)
	})
}

func TestDecryptJSON_MalformedEnvelope(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptJSON(map[string]any{"score": 50})
	require.NoError(t, err)

	t.Run("bad base64 iv", func(t *testing.T) {
		bad := env
		bad.IV = "not-base64!!"
		var out any
		assert.Error(t, c.DecryptJSON(bad, &out))
	})

	t.Run("short iv", func(t *testing.T) {
		bad := env
		bad.IV = base64.StdEncoding.EncodeToString(make([]byte, 8))
		var out any
		assert.Error(t, c.DecryptJSON(bad, &out))
	})

	t.Run("bad base64 ciphertext", func(t *testing.T) {
		bad := env
		bad.Ciphertext = "%%%"
		var out any
		assert.Error(t, c.DecryptJSON(bad, &out))
	})
}

func TestCommitmentHash_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{
		"b": 1,
		"a": map[string]any{"y": 2, "x": []any{1, 2, 3}},
	}
	b := map[string]any{
		"a": map[string]any{"x": []any{1, 2, 3}, "y": 2},
		"b": 1,
	}

	ha, err := CommitmentHash(a)
	require.NoError(t, err)
	hb, err := CommitmentHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", ha)
}

func TestCommitmentHash_SensitiveToContent(t *testing.T) {
	base := map[string]any{"score": 82, "skills": []string{"go"}}

	h1, err := CommitmentHash(base)
	require.NoError(t, err)

	perturbed := map[string]any{"score": 83, "skills": []string{"go"}}
	h2, err := CommitmentHash(perturbed)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	extraField := map[string]any{"score": 82, "skills": []string{"go"}, "note": ""}
	h3, err := CommitmentHash(extraField)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestCommitmentHash_StructAndMapAgree(t *testing.T) {
	type report struct {
		Score  int      `json:"score"`
		Skills []string `json:"skills"`
	}

	hs, err := CommitmentHash(report{Score: 82, Skills: []string{"go", "sql"}})
	require.NoError(t, err)
	hm, err := CommitmentHash(map[string]any{
		"skills": []any{"go", "sql"},
		"score":  82,
	})
	require.NoError(t, err)

	assert.Equal(t, hs, hm)
}

func TestCommitmentHash_LargeIntegerFidelity(t *testing.T) {
	// Beyond float64's 53-bit mantissa; canonicalization must not round it.
	h1, err := CommitmentHash(map[string]any{"id": int64(9007199254740993)})
	require.NoError(t, err)
	h2, err := CommitmentHash(map[string]any{"id": int64(9007199254740992)})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestCommitmentHash_Deterministic(t *testing.T) {
	v := map[string]any{"score": 75, "band": "B"}
	h1, err := CommitmentHash(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		h, err := CommitmentHash(v)
		require.NoError(t, err)
		assert.Equal(t, h1, h)
	}
}
