// Package limits provides centralized frame and message size limits for the
// wire protocol. This ensures consistent validation across the codec and the
// transport.
package limits

import (
	"errors"
	"fmt"
)

const (
	// FrameHeaderSize is the width of the big-endian frame length prefix.
	FrameHeaderSize = 3

	// MaxFrameSize is the largest frame body a 3-byte prefix can describe.
	MaxFrameSize = 1<<(8*FrameHeaderSize) - 1

	// EncryptionOverhead is the AES-GCM tag appended to every ciphertext.
	EncryptionOverhead = 16

	// MaxPlaintextFrame is the largest plaintext that still fits in one frame
	// once encrypted.
	MaxPlaintextFrame = MaxFrameSize - EncryptionOverhead

	// MaxInflatedNode bounds the size of a decompressed node buffer. This
	// prevents a small compressed frame from exhausting memory.
	MaxInflatedNode = 64 << 20
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrFrameTooLarge indicates a frame length above the configured maximum.
	// It matches ErrMessageTooLarge through errors.Is.
	ErrFrameTooLarge = fmt.Errorf("frame too large: %w", ErrMessageTooLarge)
)

// ValidateFrameLength checks a length prefix before any body bytes are read.
// A maxSize of zero or above MaxFrameSize is treated as MaxFrameSize.
func ValidateFrameLength(length, maxSize int) error {
	maxSize = EffectiveFrameLimit(maxSize)
	if length < 0 || length > maxSize {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrFrameTooLarge, length, maxSize)
	}
	return nil
}

// ValidateFrame validates an outgoing frame body. Empty frames are rejected.
func ValidateFrame(frame []byte, maxSize int) error {
	if len(frame) == 0 {
		return ErrMessageEmpty
	}
	return ValidateFrameLength(len(frame), maxSize)
}

// ValidatePlaintextFrame validates a plaintext that is about to be encrypted
// into a single frame.
func ValidatePlaintextFrame(plaintext []byte, maxFrameSize int) error {
	if len(plaintext) == 0 {
		return ErrMessageEmpty
	}
	limit := EffectiveFrameLimit(maxFrameSize) - EncryptionOverhead
	if len(plaintext) > limit {
		return fmt.Errorf("%w: plaintext size %d exceeds limit %d", ErrFrameTooLarge, len(plaintext), limit)
	}
	return nil
}

// EffectiveFrameLimit clamps a configured frame limit into (0, MaxFrameSize].
func EffectiveFrameLimit(maxSize int) int {
	if maxSize <= 0 || maxSize > MaxFrameSize {
		return MaxFrameSize
	}
	return maxSize
}
