package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFExpand derives two 32-byte outputs from a chaining key and input key
// material: HKDF-SHA256 with the chaining key as salt and empty info.
func HKDFExpand(chainingKey, ikm []byte) ([32]byte, [32]byte, error) {
	var out [64]byte
	r := hkdf.New(sha256.New, ikm, chainingKey, nil)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return [32]byte{}, [32]byte{}, fmt.Errorf("hkdf expand: %w", err)
	}

	var first, second [32]byte
	copy(first[:], out[:32])
	copy(second[:], out[32:])
	ZeroBytes(out[:])
	return first, second, nil
}
