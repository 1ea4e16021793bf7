package transport

import (
	"github.com/opd-ai/wacore/crypto"
	"github.com/opd-ai/wacore/types"
)

// KeyStore is the persistence the handshake needs: the local static key and
// the remote static keys learned from earlier sessions.
type KeyStore interface {
	// LocalStaticKeyPair returns this device's Noise static key pair.
	LocalStaticKeyPair() (*crypto.KeyPair, error)
	// RememberRemoteStaticKey records the static key a peer proved.
	RememberRemoteStaticKey(peer types.JID, key [32]byte) error
	// LookupRemoteStaticKey returns a previously remembered key.
	LookupRemoteStaticKey(peer types.JID) ([32]byte, bool, error)
}
