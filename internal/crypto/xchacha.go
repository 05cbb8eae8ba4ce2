package crypto

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/chacha20poly1305"
)

const xchachaPrefix = "xc1."

func (c *Cipher) sealXChaCha(plaintext []byte) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, []byte(xchachaPrefix))
	return xchachaPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) openXChaCha(encoded string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded[len(xchachaPrefix):])
	if err != nil || len(raw) < chacha20poly1305.NonceSizeX+c.aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ct := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := c.aead.Open(nil, nonce, ct, []byte(xchachaPrefix))
	if err != nil {
		return nil, ErrWrongKey
	}
	return plain, nil
}
