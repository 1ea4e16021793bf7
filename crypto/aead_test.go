package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) [32]byte {
	t.Helper()
	var k [32]byte
	_, err := rand.Read(k[:])
	require.NoError(t, err)
	return k
}

func TestAEADRoundTrip(t *testing.T) {
	a := NewAEAD(randomKey(t))
	ad := []byte("handshake-hash")
	pt := []byte("binary node bytes")

	ct := a.Seal(7, ad, pt)
	assert.Len(t, ct, len(pt)+16)

	got, err := a.Open(7, ad, ct)
	require.NoError(t, err)
	assert.Equal(t, pt, got)
}

// TestAEADNonceLayout cross-checks the 96-bit nonce against a directly built
// AES-GCM instance: four zero bytes then the counter in big-endian order.
func TestAEADNonceLayout(t *testing.T) {
	key := randomKey(t)
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	const n = uint64(0x0102030405060708)
	var nonce [12]byte
	binary.BigEndian.PutUint64(nonce[4:], n)

	pt := []byte("frame")
	want := gcm.Seal(nil, nonce[:], pt, nil)
	assert.Equal(t, want, NewAEAD(key).Seal(n, nil, pt))
}

func TestAEADOpenFailures(t *testing.T) {
	a := NewAEAD(randomKey(t))
	ct := a.Seal(1, []byte("ad"), []byte("payload"))

	tests := []struct {
		name  string
		n     uint64
		ad    []byte
		input []byte
	}{
		{"wrong nonce", 2, []byte("ad"), ct},
		{"wrong ad", 1, []byte("xx"), ct},
		{"flipped bit", 1, []byte("ad"), flip(ct, 0)},
		{"flipped tag", 1, []byte("ad"), flip(ct, len(ct)-1)},
		{"truncated", 1, []byte("ad"), ct[:len(ct)-1]},
		{"shorter than tag", 1, []byte("ad"), ct[:4]},
		{"empty", 1, []byte("ad"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Open(tt.n, tt.ad, tt.input)
			assert.True(t, errors.Is(err, ErrAuthFailure))
		})
	}

	_, err := NewAEAD(randomKey(t)).Open(1, []byte("ad"), ct)
	assert.True(t, errors.Is(err, ErrAuthFailure), "wrong key")
}

func flip(b []byte, i int) []byte {
	out := append([]byte(nil), b...)
	out[i] ^= 0x01
	return out
}
