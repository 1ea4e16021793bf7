package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/wacore/limits"
)

// IntroHeader is sent once by the initiator before the first frame and is the
// Noise prologue: the protocol magic followed by the major and minor version.
const IntroHeader = "WA\x06\x03"

var (
	// ErrIntroAlreadySent indicates a second SendIntro on the same socket.
	ErrIntroAlreadySent = errors.New("intro header already sent")
	// ErrIntroMismatch indicates the peer opened with an unexpected header.
	ErrIntroMismatch = errors.New("intro header mismatch")
)

// FrameSocket splits a byte stream into frames: a 3-byte big-endian length
// followed by that many bytes. Writes are serialized. Reads must come from a
// single goroutine at a time.
type FrameSocket struct {
	conn     io.ReadWriteCloser
	maxFrame int

	writeMu sync.Mutex
	readMu  sync.Mutex

	introSent   bool
	handshaking atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// NewFrameSocket wraps conn. maxFrameSize is clamped to limits.MaxFrameSize;
// zero selects the maximum.
func NewFrameSocket(conn io.ReadWriteCloser, maxFrameSize int) *FrameSocket {
	return &FrameSocket{
		conn:     conn,
		maxFrame: limits.EffectiveFrameLimit(maxFrameSize),
	}
}

// MaxFrameSize returns the effective frame limit.
func (fs *FrameSocket) MaxFrameSize() int {
	return fs.maxFrame
}

// SendIntro writes the connection header. It may be called once.
func (fs *FrameSocket) SendIntro(header []byte) error {
	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()

	if fs.closed.Load() {
		return ErrConnectionClosed
	}
	if fs.introSent {
		return ErrIntroAlreadySent
	}
	if _, err := fs.conn.Write(header); err != nil {
		return fmt.Errorf("write intro header: %w", err)
	}
	fs.introSent = true

	logrus.WithFields(logrus.Fields{
		"function": "SendIntro",
		"size":     len(header),
	}).Debug("Sent intro header")
	return nil
}

// ExpectIntro reads len(header) bytes and checks they match.
func (fs *FrameSocket) ExpectIntro(header []byte) error {
	fs.readMu.Lock()
	defer fs.readMu.Unlock()

	got := make([]byte, len(header))
	if _, err := io.ReadFull(fs.conn, got); err != nil {
		return fmt.Errorf("read intro header: %w", err)
	}
	if !bytes.Equal(got, header) {
		return fmt.Errorf("%w: got %x", ErrIntroMismatch, got)
	}
	return nil
}

// WriteFrame writes one frame. Empty and oversize frames are rejected
// without touching the stream.
func (fs *FrameSocket) WriteFrame(p []byte) error {
	if err := limits.ValidateFrame(p, fs.maxFrame); err != nil {
		return err
	}

	buf := make([]byte, limits.FrameHeaderSize+len(p))
	n := len(p)
	buf[0] = byte(n >> 16)
	buf[1] = byte(n >> 8)
	buf[2] = byte(n)
	copy(buf[limits.FrameHeaderSize:], p)

	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()

	if fs.closed.Load() {
		return ErrConnectionClosed
	}
	if _, err := fs.conn.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame. A length prefix above the frame limit is
// rejected before any body bytes are read.
func (fs *FrameSocket) ReadFrame() ([]byte, error) {
	fs.readMu.Lock()
	defer fs.readMu.Unlock()

	var header [limits.FrameHeaderSize]byte
	if _, err := io.ReadFull(fs.conn, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := int(header[0])<<16 | int(header[1])<<8 | int(header[2])
	if length == 0 {
		return nil, fmt.Errorf("read frame: %w", limits.ErrMessageEmpty)
	}
	if err := limits.ValidateFrameLength(length, fs.maxFrame); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ReadFrame",
			"length":   length,
			"limit":    fs.maxFrame,
		}).Warn("Rejected oversize frame")
		return nil, err
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(fs.conn, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}

// Close closes the underlying stream. It is idempotent.
func (fs *FrameSocket) Close() error {
	fs.closeOnce.Do(func() {
		fs.closed.Store(true)
		fs.closeErr = fs.conn.Close()
	})
	return fs.closeErr
}
