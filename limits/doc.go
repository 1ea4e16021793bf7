// Package limits provides centralized frame size constants and validation
// functions for the binary protocol transport.
//
// # Size Hierarchy
//
//   - MaxFrameSize (16 MiB - 1): the largest body a 3-byte length prefix can
//     describe. Receivers reject a larger announced length before reading the
//     body.
//
//   - MaxPlaintextFrame: MaxFrameSize minus the 16-byte AES-GCM tag. A node
//     buffer larger than this cannot be sent in one frame.
//
//   - MaxInflatedNode (64 MiB): the ceiling for a decompressed node buffer.
//
// A transport may be configured with a smaller frame limit. Every validator
// accepts that limit as a parameter and clamps it with EffectiveFrameLimit:
//
//	if err := limits.ValidateFrameLength(n, cfg.MaxFrameSize); err != nil {
//	    // ErrFrameTooLarge, do not read the body
//	}
//
// # Error Types
//
//   - ErrMessageEmpty: an empty or nil frame or message
//   - ErrMessageTooLarge: a message over the supplied limit
//   - ErrFrameTooLarge: a frame over the frame limit; also matches
//     ErrMessageTooLarge
package limits
