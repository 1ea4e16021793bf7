package noise

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/wacore/crypto"
)

var testPrologue = []byte{'W', 'A', 6, 3}

type peerKeys struct {
	static    *crypto.KeyPair
	ephemeral *crypto.KeyPair
}

func newPeerKeys(t *testing.T) peerKeys {
	t.Helper()
	s, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	e, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return peerKeys{static: s, ephemeral: e}
}

func newHandshake(t *testing.T, role HandshakeRole, keys peerKeys, payload []byte) *XXHandshake {
	t.Helper()
	h, err := NewXXHandshake(Config{
		Role:             role,
		StaticKeyPair:    keys.static,
		Prologue:         testPrologue,
		Payload:          payload,
		EphemeralKeyPair: keys.ephemeral,
	})
	require.NoError(t, err)
	return h
}

// runHandshake drives both sides to completion and returns the three messages.
func runHandshake(t *testing.T, i, r *XXHandshake) (m1, m2, m3 []byte) {
	t.Helper()

	m1, err := i.WriteMessage()
	require.NoError(t, err)
	assert.Equal(t, StepSentE, i.Step())

	require.NoError(t, r.ReadMessage(m1))
	assert.Equal(t, StepReceivedE, r.Step())

	m2, err = r.WriteMessage()
	require.NoError(t, err)
	assert.Equal(t, StepSentEES, r.Step())

	require.NoError(t, i.ReadMessage(m2))
	assert.Equal(t, StepReceivedEES, i.Step())

	m3, err = i.WriteMessage()
	require.NoError(t, err)
	assert.Equal(t, StepEstablished, i.Step())

	require.NoError(t, r.ReadMessage(m3))
	assert.Equal(t, StepEstablished, r.Step())

	return m1, m2, m3
}

func TestXXHandshakeSymmetry(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)
	i := newHandshake(t, Initiator, ik, []byte("client payload"))
	r := newHandshake(t, Responder, rk, []byte("server cert"))

	m1, m2, m3 := runHandshake(t, i, r)
	assert.Len(t, m1, 32)
	assert.Len(t, m2, 32+48+len("server cert")+16)
	assert.Len(t, m3, 48+len("client payload")+16)

	assert.True(t, i.IsComplete())
	assert.True(t, r.IsComplete())

	ih, err := i.HandshakeHash()
	require.NoError(t, err)
	rh, err := r.HandshakeHash()
	require.NoError(t, err)
	assert.Equal(t, ih, rh)

	irs, ok := i.RemoteStatic()
	require.True(t, ok)
	assert.Equal(t, rk.static.Public, irs)
	rrs, ok := r.RemoteStatic()
	require.True(t, ok)
	assert.Equal(t, ik.static.Public, rrs)

	assert.Equal(t, []byte("server cert"), i.RemotePayload())
	assert.Equal(t, []byte("client payload"), r.RemotePayload())

	iSend, iRecv, err := i.CipherStates()
	require.NoError(t, err)
	rSend, rRecv, err := r.CipherStates()
	require.NoError(t, err)

	for n := uint64(0); n < 5; n++ {
		ct, err := iSend.Encrypt(nil, []byte("ping"))
		require.NoError(t, err)
		pt, err := rRecv.Decrypt(nil, ct)
		require.NoError(t, err)
		assert.Equal(t, []byte("ping"), pt)

		ct, err = rSend.Encrypt(nil, []byte("pong"))
		require.NoError(t, err)
		pt, err = iRecv.Decrypt(nil, ct)
		require.NoError(t, err)
		assert.Equal(t, []byte("pong"), pt)
	}
	assert.Equal(t, uint64(5), iSend.Nonce())
	assert.Equal(t, uint64(5), rRecv.Nonce())

	// Directions use different keys.
	ct, err := iSend.Encrypt(nil, []byte("x"))
	require.NoError(t, err)
	_, err = iRecv.Decrypt(nil, ct)
	assert.True(t, errors.Is(err, crypto.ErrAuthFailure))
}

func TestXXHandshakeEmptyPayloads(t *testing.T) {
	i := newHandshake(t, Initiator, newPeerKeys(t), nil)
	r := newHandshake(t, Responder, newPeerKeys(t), nil)
	runHandshake(t, i, r)

	assert.Empty(t, i.RemotePayload())
	assert.Empty(t, r.RemotePayload())
}

func TestXXHandshakeRandomEphemerals(t *testing.T) {
	ks, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	rs, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	i, err := NewXXHandshake(Config{Role: Initiator, StaticKeyPair: ks, Prologue: testPrologue})
	require.NoError(t, err)
	r, err := NewXXHandshake(Config{Role: Responder, StaticKeyPair: rs, Prologue: testPrologue})
	require.NoError(t, err)
	runHandshake(t, i, r)
}

func TestXXHandshakePrologueMismatch(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)
	i := newHandshake(t, Initiator, ik, nil)
	r, err := NewXXHandshake(Config{Role: Responder, StaticKeyPair: rk.static, Prologue: []byte("other")})
	require.NoError(t, err)

	m1, err := i.WriteMessage()
	require.NoError(t, err)
	require.NoError(t, r.ReadMessage(m1))
	m2, err := r.WriteMessage()
	require.NoError(t, err)

	err = i.ReadMessage(m2)
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
	assert.True(t, errors.Is(err, crypto.ErrAuthFailure))
}

func TestXXHandshakeTamperMessage2(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)
	i := newHandshake(t, Initiator, ik, []byte("c"))
	r := newHandshake(t, Responder, rk, []byte("server"))

	m1, err := i.WriteMessage()
	require.NoError(t, err)
	require.NoError(t, r.ReadMessage(m1))
	m2, err := r.WriteMessage()
	require.NoError(t, err)

	for bit := 0; bit < len(m2)*8; bit++ {
		tampered := append([]byte(nil), m2...)
		tampered[bit/8] ^= 1 << (bit % 8)

		fresh := newHandshake(t, Initiator, ik, []byte("c"))
		again, err := fresh.WriteMessage()
		require.NoError(t, err)
		require.Equal(t, m1, again)

		err = fresh.ReadMessage(tampered)
		require.Error(t, err, "bit %d", bit)
		assert.True(t, errors.Is(err, ErrHandshakeFailed), "bit %d", bit)
		assert.True(t, errors.Is(err, crypto.ErrAuthFailure), "bit %d: %v", bit, err)
		assert.Equal(t, StepFailed, fresh.Step())
	}
}

func TestXXHandshakeTamperMessage3(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)
	i := newHandshake(t, Initiator, ik, []byte("client"))
	r := newHandshake(t, Responder, rk, []byte("s"))
	m1, m2, m3 := runHandshake(t, i, r)

	for bit := 0; bit < len(m3)*8; bit++ {
		tampered := append([]byte(nil), m3...)
		tampered[bit/8] ^= 1 << (bit % 8)

		fresh := newHandshake(t, Responder, rk, []byte("s"))
		require.NoError(t, fresh.ReadMessage(m1))
		again, err := fresh.WriteMessage()
		require.NoError(t, err)
		require.Equal(t, m2, again)

		err = fresh.ReadMessage(tampered)
		require.Error(t, err, "bit %d", bit)
		assert.True(t, errors.Is(err, ErrHandshakeFailed), "bit %d", bit)
		assert.True(t, errors.Is(err, crypto.ErrAuthFailure), "bit %d: %v", bit, err)
		assert.Equal(t, StepFailed, fresh.Step())
	}
}

func TestXXHandshakeOutOfOrder(t *testing.T) {
	keys := newPeerKeys(t)

	r := newHandshake(t, Responder, keys, nil)
	_, err := r.WriteMessage()
	assert.True(t, errors.Is(err, ErrOutOfOrder))
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
	assert.Equal(t, StepFailed, r.Step())

	// Failed is terminal.
	err = r.ReadMessage(make([]byte, 32))
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
	assert.Equal(t, StepFailed, r.Step())

	i := newHandshake(t, Initiator, keys, nil)
	err = i.ReadMessage(make([]byte, 128))
	assert.True(t, errors.Is(err, ErrOutOfOrder))

	i = newHandshake(t, Initiator, keys, nil)
	_, err = i.WriteMessage()
	require.NoError(t, err)
	_, err = i.WriteMessage()
	assert.True(t, errors.Is(err, ErrOutOfOrder))
}

func TestXXHandshakeAfterEstablished(t *testing.T) {
	i := newHandshake(t, Initiator, newPeerKeys(t), nil)
	r := newHandshake(t, Responder, newPeerKeys(t), nil)
	runHandshake(t, i, r)

	_, err := i.WriteMessage()
	assert.True(t, errors.Is(err, ErrOutOfOrder))
	assert.Equal(t, StepEstablished, i.Step(), "established sessions are not torn down by misuse")
}

func TestXXHandshakeConcurrentStep(t *testing.T) {
	h := newHandshake(t, Initiator, newPeerKeys(t), nil)

	h.mu.Lock()
	_, err := h.WriteMessage()
	assert.True(t, errors.Is(err, ErrConcurrentStep))
	err = h.ReadMessage(nil)
	assert.True(t, errors.Is(err, ErrConcurrentStep))
	h.mu.Unlock()

	assert.Equal(t, StepInit, h.Step())
	_, err = h.WriteMessage()
	assert.NoError(t, err)
}

func TestXXHandshakeShortMessages(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)

	r := newHandshake(t, Responder, rk, nil)
	err := r.ReadMessage(make([]byte, 31))
	assert.True(t, errors.Is(err, ErrMessageTooShort))

	i := newHandshake(t, Initiator, ik, nil)
	_, err = i.WriteMessage()
	require.NoError(t, err)
	err = i.ReadMessage(make([]byte, 95))
	assert.True(t, errors.Is(err, ErrMessageTooShort))

	i = newHandshake(t, Initiator, ik, nil)
	r = newHandshake(t, Responder, rk, nil)
	m1, err := i.WriteMessage()
	require.NoError(t, err)
	require.NoError(t, r.ReadMessage(m1))
	_, err = r.WriteMessage()
	require.NoError(t, err)
	err = r.ReadMessage(make([]byte, 63))
	assert.True(t, errors.Is(err, ErrMessageTooShort))
}

func TestXXHandshakeInvalidEphemeral(t *testing.T) {
	r := newHandshake(t, Responder, newPeerKeys(t), nil)
	require.NoError(t, r.ReadMessage(make([]byte, 32)))

	_, err := r.WriteMessage()
	assert.True(t, errors.Is(err, crypto.ErrInvalidPublicKey))
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
}

func TestXXHandshakePinnedRemoteStatic(t *testing.T) {
	ik, rk := newPeerKeys(t), newPeerKeys(t)

	pin := rk.static.Public
	i, err := NewXXHandshake(Config{Role: Initiator, StaticKeyPair: ik.static, Prologue: testPrologue, RemoteStatic: &pin})
	require.NoError(t, err)
	runHandshake(t, i, newHandshake(t, Responder, rk, nil))

	other := newPeerKeys(t).static.Public
	i, err = NewXXHandshake(Config{Role: Initiator, StaticKeyPair: ik.static, Prologue: testPrologue, RemoteStatic: &other})
	require.NoError(t, err)
	r := newHandshake(t, Responder, rk, nil)

	m1, err := i.WriteMessage()
	require.NoError(t, err)
	require.NoError(t, r.ReadMessage(m1))
	m2, err := r.WriteMessage()
	require.NoError(t, err)

	err = i.ReadMessage(m2)
	assert.True(t, errors.Is(err, ErrRemoteStaticMismatch))
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
	_, ok := i.RemoteStatic()
	assert.False(t, ok)
}

func TestXXHandshakeCipherStatesOwnership(t *testing.T) {
	i := newHandshake(t, Initiator, newPeerKeys(t), nil)
	r := newHandshake(t, Responder, newPeerKeys(t), nil)

	_, _, err := i.CipherStates()
	assert.True(t, errors.Is(err, ErrHandshakeNotComplete))
	_, err = i.HandshakeHash()
	assert.True(t, errors.Is(err, ErrHandshakeNotComplete))

	runHandshake(t, i, r)

	send, recv, err := i.CipherStates()
	require.NoError(t, err)
	require.NotNil(t, send)
	require.NotNil(t, recv)

	_, _, err = i.CipherStates()
	assert.True(t, errors.Is(err, ErrCipherStatesTaken))
}

func TestXXHandshakeWipesSecrets(t *testing.T) {
	i := newHandshake(t, Initiator, newPeerKeys(t), nil)
	r := newHandshake(t, Responder, newPeerKeys(t), nil)
	runHandshake(t, i, r)

	for _, h := range []*XXHandshake{i, r} {
		assert.Equal(t, [32]byte{}, h.ss.ck)
		assert.Equal(t, [32]byte{}, h.ss.k)
		assert.Equal(t, [32]byte{}, h.s.Private)
		assert.Equal(t, [32]byte{}, h.e.Private)
	}

	h := newHandshake(t, Responder, newPeerKeys(t), nil)
	_ = h.ReadMessage(nil)
	assert.Equal(t, StepFailed, h.Step())
	assert.Equal(t, [32]byte{}, h.s.Private)
}

func TestXXHandshakeDestroy(t *testing.T) {
	i := newHandshake(t, Initiator, newPeerKeys(t), nil)
	r := newHandshake(t, Responder, newPeerKeys(t), nil)
	runHandshake(t, i, r)

	r.Destroy()
	assert.Nil(t, r.send)
	_, _, err := r.CipherStates()
	assert.Error(t, err)

	pending := newHandshake(t, Initiator, newPeerKeys(t), nil)
	pending.Destroy()
	assert.Equal(t, StepFailed, pending.Step())
	_, err = pending.WriteMessage()
	assert.True(t, errors.Is(err, ErrHandshakeFailed))
}

func TestNewXXHandshakeValidation(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	_, err = NewXXHandshake(Config{Role: Initiator})
	assert.True(t, errors.Is(err, ErrHandshakeFailed))

	_, err = NewXXHandshake(Config{Role: Initiator, StaticKeyPair: &crypto.KeyPair{}})
	assert.True(t, errors.Is(err, crypto.ErrInvalidPrivateKey))

	mismatched := *kp
	mismatched.Public[0] ^= 0xff
	_, err = NewXXHandshake(Config{Role: Initiator, StaticKeyPair: &mismatched})
	assert.True(t, errors.Is(err, ErrHandshakeFailed))

	_, err = NewXXHandshake(Config{Role: HandshakeRole(7), StaticKeyPair: kp})
	assert.True(t, errors.Is(err, ErrHandshakeFailed))

	h, err := NewXXHandshake(Config{Role: Initiator, StaticKeyPair: kp})
	require.NoError(t, err)
	assert.Equal(t, Initiator, h.Role())
	assert.NotEqual(t, [32]byte{}, kp.Private, "caller's key pair must not be wiped")
}

func TestStepStrings(t *testing.T) {
	assert.Equal(t, "init", StepInit.String())
	assert.Equal(t, "established", StepEstablished.String())
	assert.Equal(t, "failed", StepFailed.String())
	assert.Equal(t, "step(42)", Step(42).String())
	assert.Equal(t, "initiator", Initiator.String())
	assert.Equal(t, "responder", Responder.String())
}
