package transport

import (
	"errors"
	"fmt"

	"github.com/opd-ai/wacore/limits"
	"github.com/opd-ai/wacore/proto"
)

// ErrMalformedHandshakeMessage indicates a handshake frame whose envelope does
// not match the expected flight.
var ErrMalformedHandshakeMessage = errors.New("malformed handshake message")

const (
	keyLen       = 32
	sealedKeyLen = keyLen + limits.EncryptionOverhead
)

// wrapHandshakeMessage splits Noise message index (1, 2 or 3) into the
// fields of its HandshakeMessage envelope:
//
//	1: ClientHello{ephemeral}
//	2: ServerHello{ephemeral, sealed static, sealed payload}
//	3: ClientFinish{sealed static, sealed payload}
func wrapHandshakeMessage(index int, msg []byte) ([]byte, error) {
	var env proto.HandshakeMessage
	switch index {
	case 1:
		if len(msg) != keyLen {
			return nil, fmt.Errorf("%w: message 1 has %d bytes", ErrMalformedHandshakeMessage, len(msg))
		}
		env.ClientHello = &proto.ClientHello{Ephemeral: msg}
	case 2:
		if len(msg) < keyLen+sealedKeyLen+limits.EncryptionOverhead {
			return nil, fmt.Errorf("%w: message 2 has %d bytes", ErrMalformedHandshakeMessage, len(msg))
		}
		env.ServerHello = &proto.ServerHello{
			Ephemeral: msg[:keyLen],
			Static:    msg[keyLen : keyLen+sealedKeyLen],
			Payload:   msg[keyLen+sealedKeyLen:],
		}
	case 3:
		if len(msg) < sealedKeyLen+limits.EncryptionOverhead {
			return nil, fmt.Errorf("%w: message 3 has %d bytes", ErrMalformedHandshakeMessage, len(msg))
		}
		env.ClientFinish = &proto.ClientFinish{
			Static:  msg[:sealedKeyLen],
			Payload: msg[sealedKeyLen:],
		}
	default:
		return nil, fmt.Errorf("%w: no message %d", ErrMalformedHandshakeMessage, index)
	}
	return env.Marshal(), nil
}

// unwrapHandshakeMessage reverses wrapHandshakeMessage, checking that the
// envelope holds the flight expected at index.
func unwrapHandshakeMessage(index int, frame []byte) ([]byte, error) {
	env, err := proto.UnmarshalHandshakeMessage(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHandshakeMessage, err)
	}

	switch index {
	case 1:
		if env.ClientHello == nil || len(env.ClientHello.Ephemeral) != keyLen {
			return nil, fmt.Errorf("%w: expected client hello", ErrMalformedHandshakeMessage)
		}
		return env.ClientHello.Ephemeral, nil
	case 2:
		sh := env.ServerHello
		if sh == nil || len(sh.Ephemeral) != keyLen || len(sh.Static) != sealedKeyLen {
			return nil, fmt.Errorf("%w: expected server hello", ErrMalformedHandshakeMessage)
		}
		msg := make([]byte, 0, keyLen+sealedKeyLen+len(sh.Payload))
		msg = append(msg, sh.Ephemeral...)
		msg = append(msg, sh.Static...)
		return append(msg, sh.Payload...), nil
	case 3:
		cf := env.ClientFinish
		if cf == nil || len(cf.Static) != sealedKeyLen {
			return nil, fmt.Errorf("%w: expected client finish", ErrMalformedHandshakeMessage)
		}
		return append(append([]byte(nil), cf.Static...), cf.Payload...), nil
	}
	return nil, fmt.Errorf("%w: no message %d", ErrMalformedHandshakeMessage, index)
}
