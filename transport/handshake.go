package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/wacore/crypto"
	"github.com/opd-ai/wacore/noise"
	"github.com/opd-ai/wacore/types"
)

// ErrHandshakeInProgress is returned when a second handshake is attempted on
// a FrameSocket that already ran or is running one.
var ErrHandshakeInProgress = errors.New("handshake already in progress")

// HandshakeConfig configures Handshake.
type HandshakeConfig struct {
	Role     noise.HandshakeRole
	KeyStore KeyStore
	// PeerJID names the peer in the key store. When empty the remote static
	// key is neither pinned nor remembered.
	PeerJID types.JID
	// Payload is sent encrypted alongside our static key.
	Payload []byte
	// IntroHeader overrides the connection header. Nil selects IntroHeader.
	IntroHeader []byte
	// RawMessages sends bare Noise messages instead of wrapping each flight
	// in a HandshakeMessage envelope. Both sides must agree.
	RawMessages bool

	ephemeral *crypto.KeyPair
}

// Handshake runs the XX pattern over fs and returns the established socket.
// The initiator sends the intro header first; the responder expects it. A
// static key previously remembered for PeerJID is pinned, and a newly learned
// one is remembered once the handshake completes. Each flight travels in a
// HandshakeMessage envelope unless RawMessages is set. Cancelling ctx closes fs.
//
// Any failure closes fs and returns an error wrapping noise.ErrHandshakeFailed.
func Handshake(ctx context.Context, fs *FrameSocket, cfg HandshakeConfig) (*NoiseSocket, error) {
	if !fs.handshaking.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %w", noise.ErrHandshakeFailed, ErrHandshakeInProgress)
	}
	if cfg.KeyStore == nil {
		_ = fs.Close()
		return nil, fmt.Errorf("%w: no key store", noise.ErrHandshakeFailed)
	}

	logger := logrus.WithFields(logrus.Fields{
		"function": "Handshake",
		"role":     cfg.Role.String(),
		"peer":     cfg.PeerJID.String(),
	})

	stop := context.AfterFunc(ctx, func() { _ = fs.Close() })
	defer stop()

	ns, err := runHandshake(fs, cfg)
	if err == nil && ctx.Err() != nil {
		ns.Close()
		err = ctx.Err()
	}
	if err != nil {
		_ = fs.Close()
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%w)", ctxErr, err)
		}
		logger.WithError(err).Warn("Handshake failed")
		if errors.Is(err, noise.ErrHandshakeFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", noise.ErrHandshakeFailed, err)
	}

	logger.Info("Handshake complete")
	return ns, nil
}

func runHandshake(fs *FrameSocket, cfg HandshakeConfig) (*NoiseSocket, error) {
	static, err := cfg.KeyStore.LocalStaticKeyPair()
	if err != nil {
		return nil, fmt.Errorf("load static key: %w", err)
	}

	var pinned *[32]byte
	known := false
	if !cfg.PeerJID.IsEmpty() {
		key, ok, err := cfg.KeyStore.LookupRemoteStaticKey(cfg.PeerJID)
		if err != nil {
			return nil, fmt.Errorf("lookup remote static key: %w", err)
		}
		if ok {
			pinned = &key
			known = true
		}
	}

	header := cfg.IntroHeader
	if header == nil {
		header = []byte(IntroHeader)
	}

	hs, err := noise.NewXXHandshake(noise.Config{
		Role:             cfg.Role,
		StaticKeyPair:    static,
		Prologue:         header,
		Payload:          cfg.Payload,
		EphemeralKeyPair: cfg.ephemeral,
		RemoteStatic:     pinned,
	})
	if err != nil {
		return nil, err
	}

	f := flights{fs: fs, hs: hs, raw: cfg.RawMessages}
	if cfg.Role == noise.Initiator {
		err = f.initiator(header)
	} else {
		err = f.responder(header)
	}
	if err != nil {
		hs.Destroy()
		return nil, err
	}

	rs, _ := hs.RemoteStatic()
	if !cfg.PeerJID.IsEmpty() && !known {
		if err := cfg.KeyStore.RememberRemoteStaticKey(cfg.PeerJID, rs); err != nil {
			hs.Destroy()
			return nil, fmt.Errorf("remember remote static key: %w", err)
		}
	}

	hash, err := hs.HandshakeHash()
	if err != nil {
		hs.Destroy()
		return nil, err
	}
	send, recv, err := hs.CipherStates()
	if err != nil {
		hs.Destroy()
		return nil, err
	}
	ns := newNoiseSocket(fs, send, recv, noiseSession{
		hash:          hash,
		remoteStatic:  rs,
		remotePayload: hs.RemotePayload(),
		peer:          cfg.PeerJID,
	})
	hs.Destroy()
	return ns, nil
}

// flights moves the three handshake messages over a FrameSocket.
type flights struct {
	fs  *FrameSocket
	hs  *noise.XXHandshake
	raw bool
}

func (f flights) initiator(header []byte) error {
	if err := f.fs.SendIntro(header); err != nil {
		return err
	}
	if err := f.write(1); err != nil {
		return err
	}
	if err := f.read(2); err != nil {
		return err
	}
	return f.write(3)
}

func (f flights) responder(header []byte) error {
	if err := f.fs.ExpectIntro(header); err != nil {
		return err
	}
	if err := f.read(1); err != nil {
		return err
	}
	if err := f.write(2); err != nil {
		return err
	}
	return f.read(3)
}

func (f flights) write(index int) error {
	msg, err := f.hs.WriteMessage()
	if err != nil {
		return err
	}
	if !f.raw {
		if msg, err = wrapHandshakeMessage(index, msg); err != nil {
			return err
		}
	}
	return f.fs.WriteFrame(msg)
}

func (f flights) read(index int) error {
	msg, err := f.fs.ReadFrame()
	if err != nil {
		return err
	}
	if !f.raw {
		if msg, err = unwrapHandshakeMessage(index, msg); err != nil {
			return err
		}
	}
	return f.hs.ReadMessage(msg)
}
