// Package crypto seals and unseals sensitive variable values.
//
// Values in a variables or secrets file may be stored as "enc:<base64>" where
// the payload is AES-256-GCM ciphertext. The sealing key is derived from a
// passphrase configured at the boundary. Part of the functional core - all
// functions are pure.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// SealedPrefix marks a sealed value inside a variables file.
const SealedPrefix = "enc:"

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the sealing key is too short.
	ErrKeyTooShort = errors.New("sealing key must be at least 32 bytes")

	// ErrInvalidCiphertext is returned when the ciphertext is shorter than a nonce.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrUnsealFailed is returned when decryption fails (wrong key or corrupted data).
	ErrUnsealFailed = errors.New("unseal failed: authentication tag mismatch")

	// ErrNotSealed is returned when unsealing a value without the sealed prefix.
	ErrNotSealed = errors.New("value does not carry the sealed prefix")
)

// =============================================================================
// Key Derivation
// =============================================================================

// DeriveKey derives a 32-byte AES-256 key from a passphrase using SHA-256.
//
// Note: this function is deterministic - same input always produces same output.
func DeriveKey(passphrase string) []byte {
	hash := sha256.Sum256([]byte(passphrase))
	return hash[:]
}

// =============================================================================
// AES-256-GCM
// =============================================================================

// Encrypt encrypts plaintext using AES-256-GCM with the provided key.
// The key must be at least 32 bytes; only the first 32 are used.
//
// The ciphertext format is: nonce (12 bytes) || encrypted data || auth tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	key = key[:32]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext that was produced by Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	key = key[:32]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnsealFailed
	}

	return plaintext, nil
}

// =============================================================================
// Sealed Value Envelope
// =============================================================================

// IsSealed reports whether a variable value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// Seal encrypts a value and wraps it as "enc:<base64>" for pasting into a
// variables file.
func Seal(value string, key []byte) (string, error) {
	ciphertext, err := Encrypt([]byte(value), key)
	if err != nil {
		return "", err
	}
	return SealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Unseal decrypts an "enc:<base64>" value back to its plaintext.
func Unseal(sealed string, key []byte) (string, error) {
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", err
	}
	plaintext, err := Decrypt(ciphertext, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
