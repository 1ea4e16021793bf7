package noise

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/wacore/crypto"
)

// ProtocolName identifies the handshake pattern and primitives. It is 28
// bytes, so it seeds the transcript hash directly with zero padding.
const ProtocolName = "Noise_XX_25519_AESGCM_SHA256"

const (
	dhLen  = crypto.KeySize
	tagLen = 16
)

var (
	// ErrHandshakeFailed wraps every handshake error.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrOutOfOrder indicates a call that is not valid for the current step.
	ErrOutOfOrder = errors.New("handshake message out of order")
	// ErrConcurrentStep indicates a second goroutine tried to advance the
	// handshake while a step was running.
	ErrConcurrentStep = errors.New("concurrent handshake step")
	// ErrMessageTooShort indicates a handshake message shorter than its
	// fixed fields.
	ErrMessageTooShort = errors.New("handshake message too short")
	// ErrRemoteStaticMismatch indicates the peer proved a static key other
	// than the pinned one.
	ErrRemoteStaticMismatch = errors.New("remote static key mismatch")
	// ErrHandshakeNotComplete indicates results requested before Established.
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrCipherStatesTaken indicates CipherStates was already called.
	ErrCipherStatesTaken = errors.New("cipher states already taken")
)

// HandshakeRole defines whether we're initiating or responding to handshake
type HandshakeRole uint8

const (
	// Initiator sends the first message.
	Initiator HandshakeRole = iota
	// Responder answers the first message.
	Responder
)

func (r HandshakeRole) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Step is a named state of the handshake.
type Step uint8

const (
	StepInit Step = iota
	StepSentE
	StepReceivedE
	StepSentEES
	StepReceivedEES
	StepEstablished
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepInit:
		return "init"
	case StepSentE:
		return "sent_e"
	case StepReceivedE:
		return "received_e"
	case StepSentEES:
		return "sent_e_ee_s_es"
	case StepReceivedEES:
		return "received_e_ee_s_es"
	case StepEstablished:
		return "established"
	case StepFailed:
		return "failed"
	default:
		return fmt.Sprintf("step(%d)", uint8(s))
	}
}

// Config configures one side of an XX handshake.
type Config struct {
	Role HandshakeRole
	// StaticKeyPair is the long-term identity. It is copied; the caller keeps
	// ownership of the original.
	StaticKeyPair *crypto.KeyPair
	// Prologue is mixed into the transcript before the first message. Both
	// sides must use the same bytes.
	Prologue []byte
	// Payload is carried encrypted in the message that also carries our
	// static key: message 2 for the responder, message 3 for the initiator.
	Payload []byte
	// EphemeralKeyPair fixes the ephemeral key. Leave nil outside tests.
	EphemeralKeyPair *crypto.KeyPair
	// RemoteStatic pins the peer's static key when set.
	RemoteStatic *[32]byte
}

// XXHandshake is the explicit state machine for the Noise XX pattern:
//
//	-> e
//	<- e, ee, s, es
//	-> s, se
//
// Each step is driven by WriteMessage or ReadMessage. A call that does not
// match the current step fails the handshake. Failed is terminal.
type XXHandshake struct {
	mu sync.Mutex

	role     HandshakeRole
	step     Step
	ss       symmetricState
	s        crypto.KeyPair
	e        crypto.KeyPair
	re       [32]byte
	rs       [32]byte
	hasRS    bool
	pinned   *[32]byte
	payload  []byte
	rpayload []byte

	fixedE   bool
	hash     [32]byte
	send     *CipherState
	recv     *CipherState
	taken    bool
	failedBy error
}

// NewXXHandshake validates cfg and returns a handshake in StepInit with the
// prologue already mixed in.
func NewXXHandshake(cfg Config) (*XXHandshake, error) {
	if cfg.Role != Initiator && cfg.Role != Responder {
		return nil, fmt.Errorf("%w: unknown role %d", ErrHandshakeFailed, cfg.Role)
	}
	if cfg.StaticKeyPair == nil {
		return nil, fmt.Errorf("%w: static key pair required", ErrHandshakeFailed)
	}
	derived, err := crypto.FromSecretKey(cfg.StaticKeyPair.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: static key: %w", ErrHandshakeFailed, err)
	}
	if derived.Public != cfg.StaticKeyPair.Public {
		crypto.WipeKeyPair(derived)
		return nil, fmt.Errorf("%w: static public key does not match private key", ErrHandshakeFailed)
	}

	h := &XXHandshake{
		role:    cfg.Role,
		step:    StepInit,
		s:       *derived,
		payload: append([]byte(nil), cfg.Payload...),
	}
	crypto.WipeKeyPair(derived)

	if cfg.EphemeralKeyPair != nil {
		h.e = *cfg.EphemeralKeyPair
		h.fixedE = true
	}
	if cfg.RemoteStatic != nil {
		pin := *cfg.RemoteStatic
		h.pinned = &pin
	}

	h.ss.initialize(ProtocolName)
	h.ss.mixHash(cfg.Prologue)

	crypto.NewLogger("noise", "NewXXHandshake").
		WithField("role", h.role.String()).
		WithPublicKey("local_static", h.s.Public[:]).
		Debug("Handshake state initialized")

	return h, nil
}

// Role returns the configured role.
func (h *XXHandshake) Role() HandshakeRole {
	return h.role
}

// Step returns the current state.
func (h *XXHandshake) Step() Step {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.step
}

// IsComplete reports whether the handshake reached StepEstablished.
func (h *XXHandshake) IsComplete() bool {
	return h.Step() == StepEstablished
}

// WriteMessage produces the next outgoing handshake message.
func (h *XXHandshake) WriteMessage() ([]byte, error) {
	if !h.mu.TryLock() {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, ErrConcurrentStep)
	}
	defer h.mu.Unlock()

	if err := h.checkUsable(); err != nil {
		return nil, err
	}

	var (
		msg []byte
		err error
	)
	switch {
	case h.role == Initiator && h.step == StepInit:
		msg, err = h.writeE()
		if err == nil {
			h.step = StepSentE
		}
	case h.role == Responder && h.step == StepReceivedE:
		msg, err = h.writeEES()
		if err == nil {
			h.step = StepSentEES
		}
	case h.role == Initiator && h.step == StepReceivedEES:
		msg, err = h.writeS()
		if err == nil {
			err = h.finish()
		}
	default:
		err = fmt.Errorf("%w: write at step %s as %s", ErrOutOfOrder, h.step, h.role)
	}

	if err != nil {
		return nil, h.fail("WriteMessage", err)
	}

	crypto.NewLogger("noise", "WriteMessage").
		WithFields(map[string]interface{}{"role": h.role.String(), "step": h.step.String(), "size": len(msg)}).
		Debug("Wrote handshake message")
	return msg, nil
}

// ReadMessage consumes the next incoming handshake message.
func (h *XXHandshake) ReadMessage(msg []byte) error {
	if !h.mu.TryLock() {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, ErrConcurrentStep)
	}
	defer h.mu.Unlock()

	if err := h.checkUsable(); err != nil {
		return err
	}

	var err error
	switch {
	case h.role == Responder && h.step == StepInit:
		err = h.readE(msg)
		if err == nil {
			h.step = StepReceivedE
		}
	case h.role == Initiator && h.step == StepSentE:
		err = h.readEES(msg)
		if err == nil {
			h.step = StepReceivedEES
		}
	case h.role == Responder && h.step == StepSentEES:
		err = h.readS(msg)
		if err == nil {
			err = h.finish()
		}
	default:
		err = fmt.Errorf("%w: read at step %s as %s", ErrOutOfOrder, h.step, h.role)
	}

	if err != nil {
		return h.fail("ReadMessage", err)
	}

	crypto.NewLogger("noise", "ReadMessage").
		WithFields(map[string]interface{}{"role": h.role.String(), "step": h.step.String(), "size": len(msg)}).
		Debug("Read handshake message")
	return nil
}

func (h *XXHandshake) checkUsable() error {
	switch h.step {
	case StepFailed:
		return fmt.Errorf("%w: already failed: %v", ErrHandshakeFailed, h.failedBy)
	case StepEstablished:
		return fmt.Errorf("%w: %w: handshake already established", ErrHandshakeFailed, ErrOutOfOrder)
	}
	return nil
}

// fail moves to StepFailed and wipes all secret state.
func (h *XXHandshake) fail(op string, cause error) error {
	h.failedBy = cause
	h.step = StepFailed
	h.wipe()
	if h.send != nil {
		h.send.Destroy()
		h.recv.Destroy()
		h.send, h.recv = nil, nil
	}

	crypto.NewLogger("noise", op).
		WithField("role", h.role.String()).
		WithError(cause, op).
		Error("Handshake failed")
	return fmt.Errorf("%w: %w", ErrHandshakeFailed, cause)
}

func (h *XXHandshake) ephemeral() error {
	if h.fixedE {
		return nil
	}
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	h.e = *kp
	crypto.WipeKeyPair(kp)
	return nil
}

func (h *XXHandshake) dh(priv, pub [32]byte) error {
	shared, err := crypto.DiffieHellman(priv, pub)
	if err != nil {
		return err
	}
	defer crypto.Zero32(&shared)
	return h.ss.mixKey(shared[:])
}

// -> e
func (h *XXHandshake) writeE() ([]byte, error) {
	if err := h.ephemeral(); err != nil {
		return nil, err
	}
	msg := append([]byte(nil), h.e.Public[:]...)
	h.ss.mixHash(h.e.Public[:])

	// No key yet, so the empty payload is hashed in the clear.
	payload, err := h.ss.encryptAndHash(nil)
	if err != nil {
		return nil, err
	}
	return append(msg, payload...), nil
}

func (h *XXHandshake) readE(msg []byte) error {
	if len(msg) < dhLen {
		return fmt.Errorf("%w: message 1 has %d bytes", ErrMessageTooShort, len(msg))
	}
	copy(h.re[:], msg[:dhLen])
	h.ss.mixHash(h.re[:])

	payload, err := h.ss.decryptAndHash(msg[dhLen:])
	if err != nil {
		return err
	}
	h.rpayload = append([]byte(nil), payload...)
	return nil
}

// <- e, ee, s, es
func (h *XXHandshake) writeEES() ([]byte, error) {
	if err := h.ephemeral(); err != nil {
		return nil, err
	}
	msg := append([]byte(nil), h.e.Public[:]...)
	h.ss.mixHash(h.e.Public[:])

	if err := h.dh(h.e.Private, h.re); err != nil {
		return nil, err
	}

	encS, err := h.ss.encryptAndHash(h.s.Public[:])
	if err != nil {
		return nil, err
	}
	msg = append(msg, encS...)

	if err := h.dh(h.s.Private, h.re); err != nil {
		return nil, err
	}

	encPayload, err := h.ss.encryptAndHash(h.payload)
	if err != nil {
		return nil, err
	}
	return append(msg, encPayload...), nil
}

func (h *XXHandshake) readEES(msg []byte) error {
	if len(msg) < dhLen+dhLen+tagLen+tagLen {
		return fmt.Errorf("%w: message 2 has %d bytes", ErrMessageTooShort, len(msg))
	}
	copy(h.re[:], msg[:dhLen])
	h.ss.mixHash(h.re[:])

	if err := h.dh(h.e.Private, h.re); err != nil {
		return err
	}

	rs, err := h.ss.decryptAndHash(msg[dhLen : dhLen+dhLen+tagLen])
	if err != nil {
		return err
	}
	if err := h.setRemoteStatic(rs); err != nil {
		return err
	}

	if err := h.dh(h.e.Private, h.rs); err != nil {
		return err
	}

	payload, err := h.ss.decryptAndHash(msg[dhLen+dhLen+tagLen:])
	if err != nil {
		return err
	}
	h.rpayload = payload
	return nil
}

// -> s, se
func (h *XXHandshake) writeS() ([]byte, error) {
	encS, err := h.ss.encryptAndHash(h.s.Public[:])
	if err != nil {
		return nil, err
	}
	msg := append([]byte(nil), encS...)

	if err := h.dh(h.s.Private, h.re); err != nil {
		return nil, err
	}

	encPayload, err := h.ss.encryptAndHash(h.payload)
	if err != nil {
		return nil, err
	}
	return append(msg, encPayload...), nil
}

func (h *XXHandshake) readS(msg []byte) error {
	if len(msg) < dhLen+tagLen+tagLen {
		return fmt.Errorf("%w: message 3 has %d bytes", ErrMessageTooShort, len(msg))
	}
	rs, err := h.ss.decryptAndHash(msg[:dhLen+tagLen])
	if err != nil {
		return err
	}
	if err := h.setRemoteStatic(rs); err != nil {
		return err
	}

	if err := h.dh(h.e.Private, h.rs); err != nil {
		return err
	}

	payload, err := h.ss.decryptAndHash(msg[dhLen+tagLen:])
	if err != nil {
		return err
	}
	h.rpayload = payload
	return nil
}

func (h *XXHandshake) setRemoteStatic(rs []byte) error {
	var key [32]byte
	copy(key[:], rs)
	if h.pinned != nil && *h.pinned != key {
		return ErrRemoteStaticMismatch
	}
	h.rs = key
	h.hasRS = true
	return nil
}

// finish splits the transport keys and wipes the handshake secrets.
func (h *XXHandshake) finish() error {
	c1, c2, err := h.ss.split()
	if err != nil {
		return err
	}
	if h.role == Initiator {
		h.send, h.recv = c1, c2
	} else {
		h.send, h.recv = c2, c1
	}
	h.hash = h.ss.h
	h.wipe()
	h.step = StepEstablished

	crypto.NewLogger("noise", "finish").
		WithField("role", h.role.String()).
		WithPublicKey("remote_static", h.rs[:]).
		Info("Handshake established")
	return nil
}

func (h *XXHandshake) wipe() {
	h.ss.destroy()
	crypto.Zero32(&h.ss.h)
	crypto.WipeKeyPair(&h.s)
	crypto.WipeKeyPair(&h.e)
	crypto.Zero32(&h.re)
}

// CipherStates hands over the transport cipher states. It succeeds once,
// after the handshake is established.
func (h *XXHandshake) CipherStates() (send, recv *CipherState, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.step != StepEstablished {
		return nil, nil, ErrHandshakeNotComplete
	}
	if h.taken {
		return nil, nil, ErrCipherStatesTaken
	}
	if h.send == nil {
		return nil, nil, ErrCipherStateDestroyed
	}
	h.taken = true
	send, recv = h.send, h.recv
	h.send, h.recv = nil, nil
	return send, recv, nil
}

// HandshakeHash returns the final transcript hash, usable as a channel
// binding.
func (h *XXHandshake) HandshakeHash() ([32]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.step != StepEstablished {
		return [32]byte{}, ErrHandshakeNotComplete
	}
	return h.hash, nil
}

// RemoteStatic returns the peer's static key once it has been authenticated.
func (h *XXHandshake) RemoteStatic() ([32]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.step == StepFailed {
		return [32]byte{}, false
	}
	return h.rs, h.hasRS
}

// RemotePayload returns the payload of the last message read.
func (h *XXHandshake) RemotePayload() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.rpayload...)
}

// Destroy wipes all secret state, including cipher states that were never
// taken. The handshake cannot be used afterwards.
func (h *XXHandshake) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.wipe()
	if h.send != nil {
		h.send.Destroy()
		h.recv.Destroy()
		h.send, h.recv = nil, nil
	}
	if h.step != StepEstablished {
		h.step = StepFailed
		if h.failedBy == nil {
			h.failedBy = errors.New("destroyed")
		}
	}
}
