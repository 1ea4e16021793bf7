// Package noise implements the Noise XX handshake that authenticates a
// connection and derives its transport keys.
//
// The handshake is Noise_XX_25519_AESGCM_SHA256: Curve25519 key agreement,
// AES-256-GCM, and SHA-256 for the transcript hash and HKDF. Neither side
// needs to know the other's static key in advance; both static keys travel
// encrypted and are authenticated by the following AEAD tag.
//
// # Message Flow
//
//	Initiator                              Responder
//	─────────                              ─────────
//	-> e
//	                                       <- e, ee, s, es
//	-> s, se
//	[split: initiator sends with k1, responder sends with k2]
//
// The connection intro header is used as the prologue, so both sides bind the
// transcript to it.
//
// # State Machine
//
// [XXHandshake] is an explicit state machine. Each call to WriteMessage or
// ReadMessage must match the current [Step]:
//
//	Role      │ Call sequence                                  │ Steps
//	──────────┼────────────────────────────────────────────────┼─────────────────────────────────────
//	Initiator │ WriteMessage, ReadMessage, WriteMessage        │ Init → SentE → ReceivedEES → Established
//	Responder │ ReadMessage, WriteMessage, ReadMessage         │ Init → ReceivedE → SentEES → Established
//
// A call out of order, a tampered message, an invalid public key or a pinned
// key mismatch moves the handshake to StepFailed and wipes its secrets. Every
// error wraps [ErrHandshakeFailed]; the cause is also matchable, for example
// crypto.ErrAuthFailure for tampering.
//
// Example usage:
//
//	hs, err := noise.NewXXHandshake(noise.Config{
//	    Role:          noise.Initiator,
//	    StaticKeyPair: staticKeys,
//	    Prologue:      introHeader,
//	    Payload:       clientPayload,
//	})
//	m1, err := hs.WriteMessage()
//	// send m1, receive m2
//	err = hs.ReadMessage(m2)
//	m3, err := hs.WriteMessage()
//	// send m3
//	send, recv, err := hs.CipherStates()
//
// # Transport Cipher States
//
// [CipherState] holds one direction's key and a 64-bit nonce that increases by
// one per successful operation. The nonce never wraps: MaxNonce is reserved and
// reaching it yields [ErrNonceExhausted]. A failed decryption does not advance
// the nonce. CipherState is not safe for concurrent use.
package noise
