package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" // #nosec G501 -- EVP_BytesToKey compatibility, not used for integrity
	"crypto/rand"
	"encoding/base64"
	"unicode/utf8"
)

const (
	saltedMagic = "Salted__"
	// base64 of "Salted__" always starts with this.
	cryptoJSPrefix = "U2FsdGVkX1"
	saltSize       = 8
	aesKeySize     = 32
)

// evpBytesToKey derives key and iv the way OpenSSL's EVP_BytesToKey does
// with MD5 and a single iteration.
func evpBytesToKey(password, salt []byte) (key, iv []byte) {
	var (
		derived []byte
		block   []byte
	)
	for len(derived) < aesKeySize+aes.BlockSize {
		h := md5.New()
		h.Write(block)
		h.Write(password)
		h.Write(salt)
		block = h.Sum(nil)
		derived = append(derived, block...)
	}
	return derived[:aesKeySize], derived[aesKeySize : aesKeySize+aes.BlockSize]
}

func sealCryptoJS(secret, plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key, iv := evpBytesToKey(secret, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, 0, len(saltedMagic)+saltSize+len(padded))
	out = append(out, saltedMagic...)
	out = append(out, salt...)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	out = append(out, ct...)

	return base64.StdEncoding.EncodeToString(out), nil
}

func openCryptoJS(secret []byte, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformed
	}
	header := len(saltedMagic) + saltSize
	if len(raw) <= header || !bytes.HasPrefix(raw, []byte(saltedMagic)) {
		return nil, ErrMalformed
	}
	ct := raw[header:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, ErrMalformed
	}

	key, iv := evpBytesToKey(secret, raw[len(saltedMagic):header])
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok || !utf8.Valid(plain) {
		return nil, ErrWrongKey
	}
	return plain, nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
