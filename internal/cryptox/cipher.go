// Package cryptox implements the reversible password cipher: passwords are
// stored AES-256-GCM encrypted under a key derived from a configured
// passphrase, and verified by decrypting the stored secret and comparing it
// to the candidate.
//
// Reversible storage is preserved from the system this replaces; switching
// to one-way hashing would change the migration contract for existing
// stored secrets.
package cryptox

import (
	"crypto/aes"
	aescipher "crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// keyDerivationSalt is a fixed application-level salt: key derivation must
// be deterministic so the same passphrase always yields the same key.
const keyDerivationSalt = "pitchside.password-cipher.v1"

var errMalformedSecret = errors.New("malformed stored secret")

// Cipher encrypts and verifies stored passwords. It is safe for concurrent
// use after construction.
type Cipher struct {
	aead aescipher.AEAD
}

// New derives a 256-bit key from the passphrase with argon2id and prepares
// an AES-GCM cipher around it.
func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, errors.New("empty cipher passphrase")
	}

	key := argon2.IDKey([]byte(passphrase), []byte(keyDerivationSalt), 1, 64*1024, 4, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := aescipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt transforms a plaintext password into a storable secret: a random
// nonce followed by the GCM ciphertext, base64-encoded. Each call produces
// a distinct secret.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt recovers the plaintext password from a stored secret. An error
// indicates corruption or a key mismatch, never a wrong password.
func (c *Cipher) Decrypt(secret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedSecret, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errMalformedSecret
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting stored secret: %w", err)
	}
	return string(plaintext), nil
}

// Verify reports whether candidate matches the password stored in secret.
// A non-nil error means the secret could not be decrypted at all, which is
// a configuration or data problem that callers must not treat as a failed
// password check.
func (c *Cipher) Verify(secret, candidate string) (bool, error) {
	plaintext, err := c.Decrypt(secret)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(plaintext), []byte(candidate)) == 1, nil
}
