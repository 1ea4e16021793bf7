package noise

import (
	"crypto/sha256"

	"github.com/opd-ai/wacore/crypto"
)

// symmetricState holds the chaining key, the transcript hash and the current
// handshake key.
type symmetricState struct {
	ck     [32]byte
	h      [32]byte
	k      [32]byte
	hasKey bool
	n      uint64
}

func (s *symmetricState) initialize(protocolName string) {
	if len(protocolName) <= sha256.Size {
		s.h = [32]byte{}
		copy(s.h[:], protocolName)
	} else {
		s.h = sha256.Sum256([]byte(protocolName))
	}
	s.ck = s.h
	s.hasKey = false
	s.n = 0
}

func (s *symmetricState) mixHash(data []byte) {
	hash := sha256.New()
	hash.Write(s.h[:])
	hash.Write(data)
	hash.Sum(s.h[:0])
}

func (s *symmetricState) mixKey(ikm []byte) error {
	ck, k, err := crypto.HKDFExpand(s.ck[:], ikm)
	if err != nil {
		return err
	}
	s.ck = ck
	s.k = k
	crypto.Zero32(&ck)
	crypto.Zero32(&k)
	s.hasKey = true
	s.n = 0
	return nil
}

func (s *symmetricState) encryptAndHash(plaintext []byte) ([]byte, error) {
	out := plaintext
	if s.hasKey {
		if s.n == MaxNonce {
			return nil, ErrNonceExhausted
		}
		out = crypto.NewAEAD(s.k).Seal(s.n, s.h[:], plaintext)
		s.n++
	}
	s.mixHash(out)
	return out, nil
}

func (s *symmetricState) decryptAndHash(ciphertext []byte) ([]byte, error) {
	out := ciphertext
	if s.hasKey {
		if s.n == MaxNonce {
			return nil, ErrNonceExhausted
		}
		pt, err := crypto.NewAEAD(s.k).Open(s.n, s.h[:], ciphertext)
		if err != nil {
			return nil, err
		}
		out = pt
		s.n++
	}
	s.mixHash(ciphertext)
	return out, nil
}

// split derives the two transport keys. The first is used by the initiator
// to send.
func (s *symmetricState) split() (*CipherState, *CipherState, error) {
	k1, k2, err := crypto.HKDFExpand(s.ck[:], nil)
	if err != nil {
		return nil, nil, err
	}
	c1, c2 := newCipherState(k1), newCipherState(k2)
	crypto.Zero32(&k1)
	crypto.Zero32(&k2)
	return c1, c2, nil
}

func (s *symmetricState) destroy() {
	crypto.Zero32(&s.ck)
	crypto.Zero32(&s.k)
	s.hasKey = false
	s.n = 0
}
