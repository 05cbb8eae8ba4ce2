// Package crypto implements the message cipher used to keep chat text
// encrypted at rest.
//
// Two envelopes are understood:
//
//   - cryptojs: AES-256-CBC keyed with OpenSSL's EVP_BytesToKey (MD5) from
//     the shared secret, encoded as base64("Salted__" | salt | ciphertext).
//     This is the format produced by CryptoJS passphrase encryption, so text
//     written by earlier clients and services stays readable.
//   - xchacha: XChaCha20-Poly1305 with a key derived from the secret by
//     HKDF-SHA256, encoded as "xc1." + base64url(nonce | ciphertext).
//
// Encrypt writes the configured scheme; Decrypt detects the envelope.
package crypto
