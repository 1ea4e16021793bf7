package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/wacore/crypto"
	"github.com/opd-ai/wacore/noise"
	"github.com/opd-ai/wacore/types"
)

// memKeyStore is a KeyStore kept in memory.
type memKeyStore struct {
	mu     sync.Mutex
	static *crypto.KeyPair
	remote map[types.JID][32]byte
}

func newMemKeyStore(t *testing.T) *memKeyStore {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return &memKeyStore{static: kp, remote: make(map[types.JID][32]byte)}
}

func (m *memKeyStore) LocalStaticKeyPair() (*crypto.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kp := *m.static
	return &kp, nil
}

func (m *memKeyStore) RememberRemoteStaticKey(peer types.JID, key [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote[peer] = key
	return nil
}

func (m *memKeyStore) LookupRemoteStaticKey(peer types.JID) ([32]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.remote[peer]
	return key, ok, nil
}

var (
	serverJID = types.NewJID("", types.DefaultUserServer)
	clientJID = types.NewJID("123", types.DefaultUserServer)
)

type handshakeResult struct {
	socket *NoiseSocket
	err    error
}

// establish runs both sides of the handshake over an in-memory pipe.
func establish(t *testing.T, clientKS, serverKS KeyStore) (client, server *NoiseSocket) {
	t.Helper()
	c, s, err := handshakePair(t, clientKS, serverKS)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func handshakePair(t *testing.T, clientKS, serverKS KeyStore) (*NoiseSocket, *NoiseSocket, error) {
	t.Helper()
	a, b := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan handshakeResult, 1)
	go func() {
		ns, err := Handshake(ctx, NewFrameSocket(b, 0), HandshakeConfig{
			Role:     noise.Responder,
			KeyStore: serverKS,
			PeerJID:  clientJID,
			Payload:  []byte("server hello"),
		})
		done <- handshakeResult{ns, err}
	}()

	client, err := Handshake(ctx, NewFrameSocket(a, 0), HandshakeConfig{
		Role:     noise.Initiator,
		KeyStore: clientKS,
		PeerJID:  serverJID,
		Payload:  []byte("client hello"),
	})
	if err != nil {
		// Unblock the responder before waiting on it.
		_ = a.Close()
	}
	res := <-done
	if err != nil {
		return nil, nil, err
	}
	if res.err != nil {
		client.Close()
		return nil, nil, res.err
	}
	return client, res.socket, nil
}

// partialReadConn returns at most chunkSize bytes per Read.
type partialReadConn struct {
	data      []byte
	readPos   int
	chunkSize int
	readCalls int
	written   []byte
	closed    bool
}

func newPartialReadConn(data []byte, chunkSize int) *partialReadConn {
	return &partialReadConn{data: data, chunkSize: chunkSize}
}

func (p *partialReadConn) Read(b []byte) (int, error) {
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.readCalls++

	remaining := len(p.data) - p.readPos
	if remaining == 0 {
		return 0, io.EOF
	}
	n := min(p.chunkSize, len(b), remaining)
	n = copy(b, p.data[p.readPos:p.readPos+n])
	p.readPos += n
	return n, nil
}

func (p *partialReadConn) Write(b []byte) (int, error) {
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *partialReadConn) Close() error {
	p.closed = true
	return nil
}
