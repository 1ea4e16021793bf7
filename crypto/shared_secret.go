package crypto

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

var (
	// ErrInvalidPublicKey indicates a peer key that yields no usable shared
	// secret, such as the zero point or a low-order point.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// DiffieHellman computes the X25519 shared secret between a local private key
// and a peer public key.
func DiffieHellman(privateKey, peerPublicKey [32]byte) ([32]byte, error) {
	logrus.WithFields(logrus.Fields{
		"function":        "DiffieHellman",
		"peer_key_prefix": fmt.Sprintf("%x", peerPublicKey[:8]),
	}).Debug("Computing X25519 shared secret")

	sharedSecret, err := curve25519.X25519(privateKey[:], peerPublicKey[:])
	if err != nil {
		// X25519 reports an all-zero output as an error.
		logrus.WithFields(logrus.Fields{
			"function": "DiffieHellman",
			"error":    err.Error(),
		}).Warn("X25519 rejected peer public key")
		return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	var result [32]byte
	copy(result[:], sharedSecret)
	ZeroBytes(sharedSecret)

	return result, nil
}
