package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of Curve25519 public keys, private keys and DH outputs.
const KeySize = 32

var (
	// ErrInvalidPrivateKey indicates an all-zero private key.
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// KeyPair is a Curve25519 key pair used for the static and ephemeral Noise
// keys.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	keyPair := &KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}
	ZeroBytes(privateKey[:])

	return keyPair, nil
}

// FromSecretKey creates a key pair from an existing private key, deriving the
// public key.
func FromSecretKey(secretKey [32]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, fmt.Errorf("%w: all zeros", ErrInvalidPrivateKey)
	}

	pub, err := curve25519.X25519(secretKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	kp := &KeyPair{Private: secretKey}
	copy(kp.Public[:], pub)
	return kp, nil
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key [32]byte) bool {
	var acc byte
	for _, b := range key {
		acc |= b
	}
	return acc == 0
}
