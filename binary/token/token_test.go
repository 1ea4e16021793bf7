package token

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDictionaryLookups(t *testing.T) {
	d := Default()

	tests := []struct {
		s    string
		code uint8
	}{
		{"s.whatsapp.net", 3},
		{"type", 4},
		{"id", 8},
		{"message", 19},
		{"iq", 25},
		{"g.us", 28},
		{"get", 41},
		{"screen_height", 235},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			c, ok := d.LookupString(tt.s)
			require.True(t, ok)
			assert.False(t, c.Double)
			assert.Equal(t, tt.code, c.Index)

			s, ok := d.LookupToken(tt.code)
			require.True(t, ok)
			assert.Equal(t, tt.s, s)
		})
	}
}

func TestDefaultDictionaryMisses(t *testing.T) {
	d := Default()

	_, ok := d.LookupString("unknown_string_xyz")
	assert.False(t, ok)

	_, ok = d.LookupString("")
	assert.False(t, ok, "empty string must not map to code 0")

	_, ok = d.LookupToken(ListEmpty)
	assert.False(t, ok)

	for b := Dictionary0; b <= Nibble8; b++ {
		_, ok := d.LookupToken(byte(b))
		assert.False(t, ok, "marker %d must not resolve as a token", b)
	}

	_, ok = d.LookupDouble(0, 0)
	assert.False(t, ok, "default dictionary ships no double-byte pages")
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Equal(t, MaxSingleByteTokens-1, Default().Len())
}

func TestNewWithDoubleBytePages(t *testing.T) {
	d, err := New([]string{"", "alpha"}, [][]string{{"beta", "gamma"}, {"delta"}})
	require.NoError(t, err)

	c, ok := d.LookupString("gamma")
	require.True(t, ok)
	assert.Equal(t, Code{Double: true, Page: 0, Index: 1}, c)

	c, ok = d.LookupString("delta")
	require.True(t, ok)
	assert.Equal(t, Code{Double: true, Page: 1, Index: 0}, c)

	s, ok := d.LookupDouble(1, 0)
	require.True(t, ok)
	assert.Equal(t, "delta", s)

	_, ok = d.LookupDouble(1, 1)
	assert.False(t, ok)
	_, ok = d.LookupDouble(3, 0)
	assert.False(t, ok)
}

func TestNewValidation(t *testing.T) {
	_, err := New([]string{"", "a", "a"}, nil)
	assert.True(t, errors.Is(err, ErrDuplicateToken))

	_, err = New([]string{"", "a"}, [][]string{{"a"}})
	assert.True(t, errors.Is(err, ErrDuplicateToken))

	_, err = New(make([]string, MaxSingleByteTokens+1), nil)
	assert.True(t, errors.Is(err, ErrTooManyTokens))

	_, err = New(nil, make([][]string, MaxDoubleBytePages+1))
	assert.True(t, errors.Is(err, ErrTooManyTokens))
}

func TestNewCopiesInput(t *testing.T) {
	single := []string{"", "alpha"}
	d, err := New(single, nil)
	require.NoError(t, err)

	single[1] = "mutated"
	s, ok := d.LookupToken(1)
	require.True(t, ok)
	assert.Equal(t, "alpha", s)
}
