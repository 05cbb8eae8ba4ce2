package crypto

import (
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Scheme names the envelope Encrypt produces.
type Scheme string

const (
	SchemeCryptoJS Scheme = "cryptojs"
	SchemeXChaCha  Scheme = "xchacha"
)

var (
	ErrSecretRequired = errors.New("MESSAGE_SECRET_KEY is required; message encryption cannot proceed without a secure key")
	ErrMalformed      = errors.New("malformed ciphertext")
	ErrWrongKey       = errors.New("wrong key or corrupted ciphertext")
)

const hkdfInfo = "penpal message key v1"

// Cipher encrypts and decrypts message text with one process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Cipher struct {
	secret []byte
	scheme Scheme
	aead   cipher.AEAD
}

// ParseScheme validates a configured scheme name. Empty selects cryptojs.
func ParseScheme(raw string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SchemeCryptoJS:
		return SchemeCryptoJS, nil
	case SchemeXChaCha:
		return SchemeXChaCha, nil
	default:
		return "", fmt.Errorf("unknown message cipher %q", raw)
	}
}

// New returns a cipher for secret. An empty secret is a configuration error.
func New(secret string, scheme Scheme) (*Cipher, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if scheme == "" {
		scheme = SchemeCryptoJS
	}
	if scheme != SchemeCryptoJS && scheme != SchemeXChaCha {
		return nil, fmt.Errorf("unknown message cipher %q", scheme)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive message key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init xchacha20-poly1305: %w", err)
	}

	return &Cipher{secret: []byte(secret), scheme: scheme, aead: aead}, nil
}

// Scheme reports the envelope used for new ciphertext.
func (c *Cipher) Scheme() Scheme { return c.scheme }

// Encrypt seals plaintext with the configured scheme.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c.scheme == SchemeXChaCha {
		return c.sealXChaCha([]byte(plaintext))
	}
	return sealCryptoJS(c.secret, []byte(plaintext))
}

// Decrypt opens ciphertext produced by either scheme.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	var (
		plain []byte
		err   error
	)
	switch {
	case strings.HasPrefix(ciphertext, xchachaPrefix):
		plain, err = c.openXChaCha(ciphertext)
	case strings.HasPrefix(ciphertext, cryptoJSPrefix):
		plain, err = openCryptoJS(c.secret, ciphertext)
	default:
		return "", ErrMalformed
	}
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
