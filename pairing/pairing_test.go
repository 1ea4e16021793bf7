package pairing

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/wacore/store"
)

func testDevice(t *testing.T) *store.Device {
	t.Helper()
	d, err := store.NewDevice()
	require.NoError(t, err)
	return d
}

func TestPayloadRoundTrip(t *testing.T) {
	d := testDevice(t)
	p, err := NewPayload("2@ABCDEF", d)
	require.NoError(t, err)

	text := p.String()
	parts := strings.Split(text, ",")
	require.Len(t, parts, 4)
	assert.Equal(t, "2@ABCDEF", parts[0])
	assert.Equal(t, base64.StdEncoding.EncodeToString(d.NoiseKey.Public[:]), parts[1])
	assert.Equal(t, base64.StdEncoding.EncodeToString(d.IdentityKey.Public[:]), parts[2])
	assert.Equal(t, base64.StdEncoding.EncodeToString(d.AdvSecretKey[:]), parts[3])

	got, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParseRejects(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	short := base64.StdEncoding.EncodeToString(make([]byte, 31))

	cases := map[string]string{
		"empty":        "",
		"three fields": "ref," + key + "," + key,
		"five fields":  "ref," + key + "," + key + "," + key + ",x",
		"empty ref":    "," + key + "," + key + "," + key,
		"bad base64":   "ref,!!!," + key + "," + key,
		"short key":    "ref," + key + "," + short + "," + key,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in)
			assert.True(t, errors.Is(err, ErrInvalidPayload), "got %v", err)
		})
	}
}

func TestNewPayloadValidates(t *testing.T) {
	_, err := NewPayload("ref", &store.Device{})
	assert.ErrorIs(t, err, store.ErrInvalidDevice)

	d := testDevice(t)
	_, err = NewPayload("", d)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = NewPayload("a,b", d)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNewRef(t *testing.T) {
	a, err := NewRef()
	require.NoError(t, err)
	b, err := NewRef()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToUpper(a), a)
	assert.NotContains(t, a, ",")
}

func TestSessionCodes(t *testing.T) {
	s, err := NewSession(testDevice(t), 0)
	require.NoError(t, err)

	codes := s.Codes()
	require.Len(t, codes, DefaultCodes)
	seen := map[string]bool{}
	for _, c := range codes {
		assert.False(t, seen[c], "codes must differ")
		seen[c] = true
		_, err := Parse(c)
		assert.NoError(t, err)
	}
	assert.Equal(t, FirstCodeTimeout, s.Timeout(0))
	assert.Equal(t, NextCodeTimeout, s.Timeout(1))
}

func fastSession(t *testing.T, codes int) *Session {
	t.Helper()
	s, err := NewSession(testDevice(t), codes)
	require.NoError(t, err)
	s.first = 5 * time.Millisecond
	s.next = time.Millisecond
	return s
}

func TestSessionRunTimesOut(t *testing.T) {
	s := fastSession(t, 3)
	var shown []string
	err := s.Run(context.Background(), func(code string, _ time.Duration) {
		shown = append(shown, code)
	})
	assert.ErrorIs(t, err, ErrPairingTimeout)
	assert.Equal(t, s.Codes(), shown)
}

func TestSessionRunCompletes(t *testing.T) {
	s, err := NewSession(testDevice(t), 2)
	require.NoError(t, err)

	var shown int
	err = s.Run(context.Background(), func(string, time.Duration) {
		shown++
		s.Complete()
		s.Complete()
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, shown)
}

func TestSessionRunCancelled(t *testing.T) {
	s, err := NewSession(testDevice(t), 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = s.Run(ctx, func(string, time.Duration) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
}
