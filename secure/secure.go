// Package secure turns arbitrary byte payloads into tamper-evident printable
// ASCII tokens and back, using AES-GCM under a key derived from a passphrase.
//
// A token is base64(nonce || ciphertext || tag). The nonce is freshly random
// per Seal, so tokens for identical payloads differ. Opening a token whose
// ciphertext or tag was altered fails with ErrTampered and never yields
// partially decrypted data.
//
// Derived keys are cached process-wide in a small bounded map so the
// passphrase is not re-hashed on every call; a full cache only costs the
// hash, never correctness.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
)

const (
	// MinPassphraseLen is the minimum accepted passphrase length, checked
	// once at construction.
	MinPassphraseLen = 32

	nonceLen    = 12 // GCM standard nonce size
	keyLen      = 16 // AES-128
	maxKeyCache = 10 // distinct passphrases worth caching per process
)

// ErrTampered reports an authentication-tag mismatch: the token was modified
// (or sealed under a different passphrase). Callers should reject the request
// rather than fall back to trusting the data.
var ErrTampered = errors.New("secure: token failed authentication")

// DecodeError reports a token that is not even structurally a sealed token
// (bad base64, or too short to hold a nonce and tag).
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "secure: bad token: " + e.Reason }

// CryptoError wraps a cryptographic failure other than tampering. These are
// fatal to the request being processed.
type CryptoError struct {
	Err error
}

func (e *CryptoError) Error() string { return "secure: " + e.Err.Error() }
func (e *CryptoError) Unwrap() error { return e.Err }

// keyCache maps passphrases to derived keys, shared by every Box in the
// process. Bounded: once full, further passphrases are re-derived per call.
var keyCache = struct {
	mu   sync.RWMutex
	keys map[string][]byte
}{keys: make(map[string][]byte, maxKeyCache)}

func deriveKey(passphrase string) []byte {
	keyCache.mu.RLock()
	key, ok := keyCache.keys[passphrase]
	keyCache.mu.RUnlock()
	if ok {
		return key
	}

	sum := sha256.Sum256([]byte(passphrase))
	key = sum[:keyLen]

	keyCache.mu.Lock()
	if len(keyCache.keys) < maxKeyCache {
		keyCache.keys[passphrase] = key
	}
	keyCache.mu.Unlock()
	return key
}

// Box seals and opens tokens under one passphrase. Safe for concurrent use.
type Box struct {
	passphrase string
}

// New validates the passphrase and returns a Box for it. Passphrase strength
// is a configuration concern, so short passphrases are rejected here rather
// than on every Seal/Open call.
func New(passphrase string) (*Box, error) {
	if len(passphrase) < MinPassphraseLen {
		return nil, fmt.Errorf("secure: passphrase shorter than %d bytes", MinPassphraseLen)
	}
	return &Box{passphrase: passphrase}, nil
}

// Seal encrypts and authenticates plaintext, returning a printable ASCII
// token.
func (b *Box) Seal(plaintext []byte) (string, error) {
	aead, err := b.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", &CryptoError{Err: err}
	}
	// Sealing in place after the nonce keeps one allocation for the whole token.
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open authenticates and decrypts a token produced by Seal. It returns
// *DecodeError for structurally invalid input and ErrTampered when the
// payload fails authentication.
func (b *Box) Open(token string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64"}
	}
	aead, err := b.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < nonceLen+aead.Overhead() {
		return nil, &DecodeError{Reason: "too short"}
	}
	plaintext, err := aead.Open(nil, raw[:nonceLen], raw[nonceLen:], nil)
	if err != nil {
		// cipher.AEAD reports every authentication failure the same way.
		return nil, ErrTampered
	}
	return plaintext, nil
}

func (b *Box) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(b.passphrase))
	if err != nil {
		return nil, &CryptoError{Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &CryptoError{Err: err}
	}
	return aead, nil
}
