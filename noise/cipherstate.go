package noise

import (
	"errors"
	"math"

	"github.com/opd-ai/wacore/crypto"
)

// MaxNonce is reserved and never used for encryption; a cipher state whose
// counter reaches it is exhausted.
const MaxNonce = math.MaxUint64

var (
	// ErrNonceExhausted indicates the 64-bit counter has no values left.
	ErrNonceExhausted = errors.New("cipher state nonce exhausted")
	// ErrCipherStateDestroyed indicates use after Destroy.
	ErrCipherStateDestroyed = errors.New("cipher state destroyed")
)

// noCopy lets go vet's copylocks check flag accidental copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// CipherState is one direction of an established session: a key and a
// strictly increasing nonce. It is not safe for concurrent use; callers
// serialize access.
type CipherState struct {
	noCopy noCopy

	key       [32]byte
	aead      *crypto.AEAD
	n         uint64
	destroyed bool
}

func newCipherState(key [32]byte) *CipherState {
	return &CipherState{key: key, aead: crypto.NewAEAD(key)}
}

// Encrypt seals plaintext under the current nonce and advances it.
func (c *CipherState) Encrypt(ad, plaintext []byte) ([]byte, error) {
	if c.destroyed {
		return nil, ErrCipherStateDestroyed
	}
	if c.n == MaxNonce {
		return nil, ErrNonceExhausted
	}
	ct := c.aead.Seal(c.n, ad, plaintext)
	c.n++
	return ct, nil
}

// Decrypt opens ciphertext under the current nonce. The nonce only advances
// on success, so a rejected frame leaves the state unchanged.
func (c *CipherState) Decrypt(ad, ciphertext []byte) ([]byte, error) {
	if c.destroyed {
		return nil, ErrCipherStateDestroyed
	}
	if c.n == MaxNonce {
		return nil, ErrNonceExhausted
	}
	pt, err := c.aead.Open(c.n, ad, ciphertext)
	if err != nil {
		return nil, err
	}
	c.n++
	return pt, nil
}

// Nonce returns the nonce the next operation will use.
func (c *CipherState) Nonce() uint64 {
	return c.n
}

// Destroy zeroes the key. Later calls fail with ErrCipherStateDestroyed.
func (c *CipherState) Destroy() {
	if c.destroyed {
		return
	}
	crypto.Zero32(&c.key)
	c.aead = nil
	c.destroyed = true
}

// SetNonce moves the counter to n. Moving it backwards reuses nonces under
// the same key and voids the confidentiality of both messages.
func (c *CipherState) SetNonce(n uint64) {
	c.n = n
}
