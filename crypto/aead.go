package crypto

import (
	"errors"

	"github.com/flynn/noise"
)

var (
	// ErrAuthFailure indicates a ciphertext whose tag did not verify.
	ErrAuthFailure = errors.New("authentication failed")
)

// AEAD is AES-256-GCM keyed once, with the 96-bit nonce formed as four zero
// bytes followed by the big-endian 64-bit counter.
type AEAD struct {
	c noise.Cipher
}

// NewAEAD returns an AEAD keyed with key.
func NewAEAD(key [32]byte) *AEAD {
	return &AEAD{c: noise.CipherAESGCM.Cipher(key)}
}

// Seal appends the encryption of plaintext and its tag to a fresh slice.
func (a *AEAD) Seal(n uint64, ad, plaintext []byte) []byte {
	return a.c.Encrypt(nil, n, ad, plaintext)
}

// Open verifies and decrypts ciphertext. Any failure is ErrAuthFailure.
func (a *AEAD) Open(n uint64, ad, ciphertext []byte) ([]byte, error) {
	pt, err := a.c.Decrypt(nil, n, ad, ciphertext)
	if err != nil {
		return nil, ErrAuthFailure
	}
	return pt, nil
}
