package crypto

import (
	"errors"
	"runtime"
)

// SecureWipe overwrites data with zeros. It returns an error if data is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	for i := range data {
		data[i] = 0
	}
	// Keep the slice reachable so the stores are not elided.
	runtime.KeepAlive(data)

	return nil
}

// ZeroBytes erases the contents of a byte slice containing sensitive data.
// This is a convenience function that ignores the error from SecureWipe.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// Zero32 erases a fixed-size key.
func Zero32(key *[32]byte) {
	if key == nil {
		return
	}
	ZeroBytes(key[:])
}

// WipeKeyPair securely erases the private key in a KeyPair.
// This should be called when a KeyPair is no longer needed.
func WipeKeyPair(kp *KeyPair) error {
	if kp == nil {
		return errors.New("cannot wipe nil KeyPair")
	}
	return SecureWipe(kp.Private[:])
}
