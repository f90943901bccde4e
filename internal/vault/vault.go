// Package vault implements the crypto engine for report credentials:
// authenticated encryption of JSON payloads at rest and canonical content
// commitments. It performs no I/O; callers own persistence.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	dErrors "credvault/pkg/domain-errors"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// ErrAuthentication is returned when a ciphertext fails tag verification:
// tampered data or the wrong key. Callers must never surface its detail, and
// no partial plaintext escapes a failed decryption.
var ErrAuthentication = errors.New("ciphertext authentication failed")

// Envelope is the stored form of an encrypted report. Field names are part of
// the persisted blob format and must not change.
type Envelope struct {
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
	Ciphertext string `json:"ciphertext"`
}

// Cipher encrypts and decrypts report payloads with a fixed per-deployment key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte AES-256 key.
// A key of any other length is a configuration fault, never worked around.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, dErrors.New(dErrors.CodeConfig,
			fmt.Sprintf("encryption key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "initialize cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "initialize gcm")
	}
	return &Cipher{aead: aead}, nil
}

// EncryptJSON serializes v and encrypts it under a fresh random 96-bit nonce.
// The GCM tag is split off the sealed output so the envelope carries nonce,
// tag, and ciphertext independently base64-encoded.
func (c *Cipher) EncryptJSON(v any) (Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal plaintext: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Envelope{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return Envelope{
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Tag:        base64.StdEncoding.EncodeToString(tag),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// DecryptJSON reverses EncryptJSON, unmarshaling the recovered plaintext into
// out. Tag verification failure returns ErrAuthentication.
func (c *Cipher) DecryptJSON(env Envelope, out any) error {
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return fmt.Errorf("decode iv: %w", err)
	}
	if len(nonce) != NonceSize {
		return fmt.Errorf("iv must be %d bytes, got %d", NonceSize, len(nonce))
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return fmt.Errorf("decode tag: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return fmt.Errorf("decode ciphertext: %w", err)
	}

	sealed := append(append(make([]byte, 0, len(ciphertext)+len(tag)), ciphertext...), tag...)
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ErrAuthentication
	}
	return json.Unmarshal(plaintext, out)
}

// CommitmentHash computes the content commitment for a report: a SHA-256
// digest over the canonical JSON form, hex-encoded lowercase. Structurally
// equal values hash identically regardless of original key order, at every
// nesting level.
func CommitmentHash(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize renders v as deterministic JSON bytes. The value is passed
// through a number-preserving decode into generic maps, then re-marshaled;
// encoding/json emits map keys in sorted order at every level, which is the
// canonical form. json.Number keeps integers beyond float64 precision intact.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical form: %w", err)
	}
	return canonical, nil
}
