// Package cryptutil provides the symmetric encryption primitives the
// encrypted block store and directory-tree overlay build on: a root
// access key, per-purpose subkey derivation, and authenticated sealing.
package cryptutil

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size, in bytes, of an AccessKey and of every derived
// subkey.
const KeySize = chacha20poly1305.KeySize

// AccessKey is the single capability that grants decryption of the whole
// forest: reading access.key off disk is sufficient to recover every
// resource, per spec.md §6.
type AccessKey [KeySize]byte

// NewAccessKey generates a fresh random key from a cryptographic source.
func NewAccessKey(rng io.Reader) (AccessKey, error) {
	var k AccessKey
	if _, err := io.ReadFull(rng, k[:]); err != nil {
		return AccessKey{}, fmt.Errorf("cryptutil: generate access key: %w", err)
	}
	return k, nil
}

// Subkey derives a purpose-scoped key from the access key using HKDF-SHA256,
// so that content-chunk keys and inode keys are cryptographically
// independent even though they share one root secret.
func (k AccessKey) Subkey(purpose string) ([]byte, error) {
	h := hkdf.New(newSHA256, k[:], nil, []byte(purpose))
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, fmt.Errorf("cryptutil: derive subkey %q: %w", purpose, err)
	}
	return out, nil
}

// Seal authenticates and encrypts plaintext under the given subkey,
// producing nonce||ciphertext. rng supplies the per-call nonce.
func Seal(rng io.Reader, subkey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(subkey)
	if err != nil {
		return nil, fmt.Errorf("cryptutil: init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rng, nonce); err != nil {
		return nil, fmt.Errorf("cryptutil: generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal: it splits the leading nonce off sealed and
// authenticates/decrypts the remainder.
func Open(subkey, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(subkey)
	if err != nil {
		return nil, fmt.Errorf("cryptutil: init aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("cryptutil: sealed payload shorter than nonce")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptutil: open sealed payload: %w", err)
	}
	return plain, nil
}

// RandReader returns crypto/rand.Reader, a cryptographic source suitable
// for NewAccessKey and for Seal's per-call nonces.
func RandReader() io.Reader {
	return rand.Reader
}
