package noise

import (
	"crypto/rand"
	"testing"

	flynn "github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/wacore/crypto"
)

func referencePeer(t *testing.T, initiator bool, kp *crypto.KeyPair) *flynn.HandshakeState {
	t.Helper()
	hs, err := flynn.NewHandshakeState(flynn.Config{
		CipherSuite:   flynn.NewCipherSuite(flynn.DH25519, flynn.CipherAESGCM, flynn.HashSHA256),
		Random:        rand.Reader,
		Pattern:       flynn.HandshakeXX,
		Initiator:     initiator,
		Prologue:      testPrologue,
		StaticKeypair: flynn.DHKey{Private: append([]byte(nil), kp.Private[:]...), Public: append([]byte(nil), kp.Public[:]...)},
	})
	require.NoError(t, err)
	return hs
}

// TestInteropInitiatorAgainstReference runs our initiator against the
// flynn/noise responder.
func TestInteropInitiatorAgainstReference(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)
	ours := newHandshake(t, Initiator, ik, []byte("client payload"))
	ref := referencePeer(t, false, rk.static)

	m1, err := ours.WriteMessage()
	require.NoError(t, err)
	payload, _, _, err := ref.ReadMessage(nil, m1)
	require.NoError(t, err)
	assert.Empty(t, payload)

	m2, _, _, err := ref.WriteMessage(nil, []byte("server cert"))
	require.NoError(t, err)
	require.NoError(t, ours.ReadMessage(m2))
	assert.Equal(t, []byte("server cert"), ours.RemotePayload())

	m3, err := ours.WriteMessage()
	require.NoError(t, err)
	payload, refRecv, refSend, err := ref.ReadMessage(nil, m3)
	require.NoError(t, err)
	assert.Equal(t, []byte("client payload"), payload)
	assert.Equal(t, ik.static.Public[:], ref.PeerStatic())

	hash, err := ours.HandshakeHash()
	require.NoError(t, err)
	assert.Equal(t, ref.ChannelBinding(), hash[:])

	send, recv, err := ours.CipherStates()
	require.NoError(t, err)

	ct, err := send.Encrypt(nil, []byte("to reference"))
	require.NoError(t, err)
	pt, err := refRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("to reference"), pt)

	ct, err = refSend.Encrypt(nil, nil, []byte("from reference"))
	require.NoError(t, err)
	pt, err = recv.Decrypt(nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("from reference"), pt)
}

// TestInteropResponderAgainstReference runs our responder against the
// flynn/noise initiator.
func TestInteropResponderAgainstReference(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)
	ref := referencePeer(t, true, ik.static)
	ours := newHandshake(t, Responder, rk, []byte("server cert"))

	m1, _, _, err := ref.WriteMessage(nil, nil)
	require.NoError(t, err)
	require.NoError(t, ours.ReadMessage(m1))

	m2, err := ours.WriteMessage()
	require.NoError(t, err)
	payload, _, _, err := ref.ReadMessage(nil, m2)
	require.NoError(t, err)
	assert.Equal(t, []byte("server cert"), payload)
	assert.Equal(t, rk.static.Public[:], ref.PeerStatic())

	m3, refSend, refRecv, err := ref.WriteMessage(nil, []byte("client payload"))
	require.NoError(t, err)
	require.NoError(t, ours.ReadMessage(m3))
	assert.Equal(t, []byte("client payload"), ours.RemotePayload())

	rs, ok := ours.RemoteStatic()
	require.True(t, ok)
	assert.Equal(t, ik.static.Public, rs)

	hash, err := ours.HandshakeHash()
	require.NoError(t, err)
	assert.Equal(t, ref.ChannelBinding(), hash[:])

	send, recv, err := ours.CipherStates()
	require.NoError(t, err)

	ct, err := refSend.Encrypt(nil, nil, []byte("hello responder"))
	require.NoError(t, err)
	pt, err := recv.Decrypt(nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello responder"), pt)

	ct, err = send.Encrypt(nil, []byte("hello initiator"))
	require.NoError(t, err)
	pt, err = refRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello initiator"), pt)
}
