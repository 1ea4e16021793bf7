package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/wacore/store"
)

const (
	// DefaultCodes is how many refs a session rotates through.
	DefaultCodes = 6
	// FirstCodeTimeout is how long the first code stays valid.
	FirstCodeTimeout = 60 * time.Second
	// NextCodeTimeout is how long each later code stays valid.
	NextCodeTimeout = 20 * time.Second
)

// ErrPairingTimeout is returned by Run when every code expired.
var ErrPairingTimeout = errors.New("pairing timed out")

// Session rotates QR payloads for one device until Complete is called or the
// codes run out.
type Session struct {
	payloads []Payload
	first    time.Duration
	next     time.Duration

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession prepares codes payloads for d, each with a fresh ref. A
// non-positive count selects DefaultCodes.
func NewSession(d *store.Device, codes int) (*Session, error) {
	if codes <= 0 {
		codes = DefaultCodes
	}
	s := &Session{
		first: FirstCodeTimeout,
		next:  NextCodeTimeout,
		done:  make(chan struct{}),
	}
	for i := 0; i < codes; i++ {
		ref, err := NewRef()
		if err != nil {
			return nil, err
		}
		p, err := NewPayload(ref, d)
		if err != nil {
			return nil, err
		}
		s.payloads = append(s.payloads, p)
	}
	return s, nil
}

// Codes returns the QR text of every code in order.
func (s *Session) Codes() []string {
	out := make([]string, len(s.payloads))
	for i, p := range s.payloads {
		out[i] = p.String()
	}
	return out
}

// Timeout returns how long code i is shown.
func (s *Session) Timeout(i int) time.Duration {
	if i == 0 {
		return s.first
	}
	return s.next
}

// Complete stops Run with a nil error. It is safe to call more than once.
func (s *Session) Complete() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Run calls emit with each code in turn, waiting out its timeout before the
// next. It returns nil once Complete is called, ctx's error if cancelled, and
// ErrPairingTimeout when the last code expires.
func (s *Session) Run(ctx context.Context, emit func(code string, timeout time.Duration)) error {
	for i, p := range s.payloads {
		timeout := s.Timeout(i)
		logrus.WithFields(logrus.Fields{
			"function": "Run",
			"ref":      p.Ref,
			"index":    i,
			"timeout":  timeout.String(),
		}).Debug("Showing pairing code")
		emit(p.String(), timeout)

		timer := time.NewTimer(timeout)
		select {
		case <-s.done:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d codes", ErrPairingTimeout, len(s.payloads))
}
