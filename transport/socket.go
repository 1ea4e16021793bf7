package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/wacore/binary"
	"github.com/opd-ai/wacore/limits"
	"github.com/opd-ai/wacore/noise"
	"github.com/opd-ai/wacore/types"
)

var (
	// ErrConnectionClosed is returned by every operation on a closed or
	// poisoned socket.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrConcurrentReceive indicates a second reader on a NoiseSocket.
	ErrConcurrentReceive = errors.New("concurrent receive")
)

type noiseSession struct {
	hash          [32]byte
	remoteStatic  [32]byte
	remotePayload []byte
	peer          types.JID
}

// NoiseSocket carries encrypted frames after a completed handshake. Sends may
// come from any goroutine; receives from one at a time. Any transport,
// authentication or decoding failure poisons the socket: it is closed, the
// cipher states are wiped, and every later call returns ErrConnectionClosed.
type NoiseSocket struct {
	fs      *FrameSocket
	session noiseSession

	sendMu sync.Mutex
	send   *noise.CipherState
	recvMu sync.Mutex
	recv   *noise.CipherState

	closed    atomic.Bool
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func newNoiseSocket(fs *FrameSocket, send, recv *noise.CipherState, session noiseSession) *NoiseSocket {
	return &NoiseSocket{
		fs:      fs,
		send:    send,
		recv:    recv,
		session: session,
	}
}

// HandshakeHash returns the transcript hash of the handshake that produced
// this socket.
func (s *NoiseSocket) HandshakeHash() [32]byte {
	return s.session.hash
}

// RemoteStatic returns the static key the peer proved.
func (s *NoiseSocket) RemoteStatic() [32]byte {
	return s.session.remoteStatic
}

// RemotePayload returns the payload the peer sent with its static key.
func (s *NoiseSocket) RemotePayload() []byte {
	return append([]byte(nil), s.session.remotePayload...)
}

// Peer returns the JID the socket was established for, if any.
func (s *NoiseSocket) Peer() types.JID {
	return s.session.peer
}

// SendFrame encrypts p and writes it as one frame. Oversize payloads are
// rejected without consuming a nonce.
func (s *NoiseSocket) SendFrame(p []byte) error {
	if s.closed.Load() {
		return ErrConnectionClosed
	}
	if err := limits.ValidatePlaintextFrame(p, s.fs.MaxFrameSize()); err != nil {
		return err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed.Load() {
		return ErrConnectionClosed
	}

	ct, err := s.send.Encrypt(nil, p)
	if err != nil {
		s.poison(fmt.Errorf("encrypt frame: %w", err), &s.sendMu)
		return err
	}
	if err := s.fs.WriteFrame(ct); err != nil {
		if s.closed.Load() {
			return ErrConnectionClosed
		}
		s.poison(err, &s.sendMu)
		return err
	}
	return nil
}

// SendNode marshals n and sends it. Encoding errors leave the socket usable.
func (s *NoiseSocket) SendNode(n binary.Node) error {
	data, err := binary.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	return s.SendFrame(data)
}

// ReceiveFrame reads and decrypts one frame.
func (s *NoiseSocket) ReceiveFrame() ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrConnectionClosed
	}
	if !s.recvMu.TryLock() {
		return nil, ErrConcurrentReceive
	}
	defer s.recvMu.Unlock()
	return s.receiveFrameLocked()
}

func (s *NoiseSocket) receiveFrameLocked() ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrConnectionClosed
	}

	ct, err := s.fs.ReadFrame()
	if err != nil {
		if s.closed.Load() {
			return nil, ErrConnectionClosed
		}
		s.poison(err, &s.recvMu)
		return nil, err
	}
	pt, err := s.recv.Decrypt(nil, ct)
	if err != nil {
		err = fmt.Errorf("decrypt frame: %w", err)
		s.poison(err, &s.recvMu)
		return nil, err
	}
	return pt, nil
}

// ReceiveNode reads one frame and decodes it as a node.
func (s *NoiseSocket) ReceiveNode() (*binary.Node, error) {
	if s.closed.Load() {
		return nil, ErrConnectionClosed
	}
	if !s.recvMu.TryLock() {
		return nil, ErrConcurrentReceive
	}
	defer s.recvMu.Unlock()
	return s.receiveNodeLocked()
}

func (s *NoiseSocket) receiveNodeLocked() (*binary.Node, error) {
	pt, err := s.receiveFrameLocked()
	if err != nil {
		return nil, err
	}
	n, err := binary.Unmarshal(pt)
	if err != nil {
		s.poison(err, &s.recvMu)
		return nil, err
	}
	return n, nil
}

// ReadLoop delivers received nodes on the returned channel until the socket
// fails or ctx is cancelled; either way the channel is closed and the socket
// with it. Err reports why.
//
// The loop waits for the receive lock rather than failing, so a stray
// ReceiveFrame or ReceiveNode call takes one frame and the loop carries on.
// Those calls get ErrConcurrentReceive while the loop is reading.
func (s *NoiseSocket) ReadLoop(ctx context.Context) <-chan *binary.Node {
	out := make(chan *binary.Node, 16)
	go func() {
		defer close(out)
		stop := context.AfterFunc(ctx, func() { s.shutdown(ctx.Err(), nil) })
		defer stop()

		for {
			s.recvMu.Lock()
			n, err := s.receiveNodeLocked()
			s.recvMu.Unlock()
			if err != nil {
				s.shutdown(err, nil)
				return
			}
			select {
			case out <- n:
			case <-ctx.Done():
				s.shutdown(ctx.Err(), nil)
				return
			}
		}
	}()
	return out
}

// Err returns the reason the socket stopped, or nil while it is open.
func (s *NoiseSocket) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close closes the connection and wipes both cipher states. It is
// idempotent.
func (s *NoiseSocket) Close() error {
	s.shutdown(ErrConnectionClosed, nil)
	return nil
}

func (s *NoiseSocket) poison(cause error, held *sync.Mutex) {
	logrus.WithFields(logrus.Fields{
		"function": "poison",
		"peer":     s.session.peer.String(),
		"error":    cause.Error(),
	}).Warn("Closing noise socket after failure")
	s.shutdown(cause, held)
}

// shutdown records cause, closes the stream and destroys the cipher states.
// held is the lock the caller already owns, if any.
func (s *NoiseSocket) shutdown(cause error, held *sync.Mutex) {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.closed.Store(true)
		s.errMu.Lock()
		s.err = cause
		s.errMu.Unlock()
		_ = s.fs.Close()
	})
	if !first {
		return
	}

	if held != &s.sendMu {
		s.sendMu.Lock()
		defer s.sendMu.Unlock()
	}
	s.send.Destroy()

	if held != &s.recvMu {
		s.recvMu.Lock()
		defer s.recvMu.Unlock()
	}
	s.recv.Destroy()
}
