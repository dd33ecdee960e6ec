// Package cryptox implements the envelope encryption used for every secret
// persisted by the server (TOTP seeds, stored site passwords).
//
// A Cipher wraps a single AES-256-GCM key. Encrypt produces a self-contained,
// transport-safe token: base64url(nonce || ciphertext || tag), with a fresh
// random 12-byte nonce per call. Decrypt reverses it and reports any
// malformed or tampered token as common.ErrorDecryption; a failed
// decryption never falls back to treating the stored value as plaintext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/common"
)

// Cipher performs authenticated symmetric encryption with a fixed key.
// The key is set once at construction and never changes; Cipher values are
// safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New creates a Cipher from a 32-byte AES-256 key.
func New(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext into a base64url token carrying its own nonce.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := common.GenerateRandByteArray(c.aead.NonceSize())
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. It returns
// common.ErrorDecryption when the token is malformed, the authentication
// tag does not verify, or the key differs from the one used to encrypt.
func (c *Cipher) Decrypt(token string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encoding", common.ErrorDecryption)
	}
	if len(sealed) < c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: token too short", common.ErrorDecryption)
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", common.ErrorDecryption)
	}
	return plaintext, nil
}

// EncryptString is a convenience wrapper over Encrypt for string payloads.
// The intermediate byte copy of the plaintext is wiped after sealing.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	b := []byte(plaintext)
	defer common.WipeByteArray(b)
	return c.Encrypt(b)
}

// DecryptString is a convenience wrapper over Decrypt for string payloads.
// The intermediate plaintext buffer is wiped once the string copy is made.
func (c *Cipher) DecryptString(token string) (string, error) {
	b, err := c.Decrypt(token)
	if err != nil {
		return "", err
	}
	s := string(b)
	common.WipeByteArray(b)
	return s, nil
}
