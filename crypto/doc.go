// Package crypto implements the cryptographic primitives used by the Noise
// handshake and the encrypted transport.
//
// # Core Types
//
//   - [KeyPair]: Curve25519 key pair used for static and ephemeral keys
//   - [AEAD]: AES-256-GCM with a 64-bit big-endian counter nonce
//
// # Key Generation
//
//	keyPair, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer crypto.WipeKeyPair(keyPair)
//
// A key pair can be rebuilt from a stored private key with [FromSecretKey].
//
// # Key Agreement and Derivation
//
// [DiffieHellman] performs X25519 and rejects peer keys that produce an
// all-zero shared secret with [ErrInvalidPublicKey]. [HKDFExpand] runs
// HKDF-SHA256 with the chaining key as salt and returns two 32-byte outputs,
// the shape needed by Noise MixKey and Split.
//
//	ck, k, err := crypto.HKDFExpand(chainingKey[:], dh[:])
//
// # Authenticated Encryption
//
//	aead := crypto.NewAEAD(key)
//	ct := aead.Seal(n, ad, plaintext)
//	pt, err := aead.Open(n, ad, ct) // ErrAuthFailure on any tamper
//
// Tag comparison happens inside crypto/cipher in constant time.
//
// # Secure Memory
//
// [ZeroBytes], [Zero32] and [WipeKeyPair] overwrite secret material once it is
// no longer needed. Go's garbage collector may have copied data before it is
// wiped, so wiping narrows the exposure window rather than closing it.
//
// # Logging
//
// [LoggerHelper] and [SecureFieldHash] give callers structured logrus fields.
// Only public keys are ever previewed.
package crypto
