package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJID(t *testing.T) {
	tests := []struct {
		in   string
		want JID
	}{
		{"123@s.example", JID{User: "123", Server: "s.example"}},
		{"123:4@s.whatsapp.net", JID{User: "123", Server: DefaultUserServer, Device: 4}},
		{"123:2:7@s.whatsapp.net", JID{User: "123", Server: DefaultUserServer, Agent: 2, Device: 7}},
		{"abc-def@g.us", JID{User: "abc-def", Server: GroupServer}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseJID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseJIDRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"nouser",
		"@s.example",
		"123@",
		"a@b@c",
		"123:x@s.example",
		"123:1:2:3@s.example",
		"123:300:1@s.example",
		"123:70000@s.example",
		":5@s.example",
	} {
		_, err := ParseJID(in)
		assert.True(t, errors.Is(err, ErrInvalidJID), "input %q", in)
	}
}

func TestJIDStringForms(t *testing.T) {
	assert.Equal(t, "g.us", JID{Server: GroupServer}.String())
	assert.Equal(t, "1@x", NewJID("1", "x").String())
	assert.Equal(t, "1:3@x", JID{User: "1", Server: "x", Device: 3}.String())
	assert.Equal(t, "1:2:0@x", JID{User: "1", Server: "x", Agent: 2}.String())
}

func TestJIDEquality(t *testing.T) {
	a, err := ParseJID("123:4@s.whatsapp.net")
	require.NoError(t, err)
	b := JID{User: "123", Server: DefaultUserServer, Device: 4}
	assert.True(t, a == b)
	assert.False(t, a == a.ToNonAD())
	assert.True(t, a.IsAD())
	assert.False(t, a.ToNonAD().IsAD())
}

func TestADDomainRoundTrip(t *testing.T) {
	tests := []struct {
		jid    JID
		domain uint8
		ok     bool
	}{
		{JID{User: "1", Server: DefaultUserServer, Device: 3}, WhatsAppDomain, true},
		{JID{User: "1", Server: DefaultUserServer, Agent: 5, Device: 3}, 5, true},
		{JID{User: "1", Server: HiddenUserServer, Device: 9}, LIDDomain, true},
		{JID{User: "1", Server: HostedServer, Device: 9}, HostedDomain, true},
		{JID{User: "1", Server: HostedLIDServer, Device: 9}, HostedLIDDomain, true},
		{JID{User: "1", Server: HiddenUserServer, Agent: 2, Device: 9}, 0, false},
		{JID{User: "1", Server: DefaultUserServer, Agent: LIDDomain, Device: 9}, 0, false},
		{JID{User: "1", Server: "s.example", Device: 9}, 0, false},
		{JID{User: "1", Server: DefaultUserServer, Device: 300}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.jid.String(), func(t *testing.T) {
			domain, ok := tt.jid.ADDomain()
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.domain, domain)
			assert.Equal(t, tt.jid, NewADJID(tt.jid.User, domain, uint8(tt.jid.Device)))
		})
	}
}

func TestJIDTextMarshaling(t *testing.T) {
	jid := JID{User: "42", Server: DefaultUserServer, Device: 1}
	text, err := jid.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "42:1@s.whatsapp.net", string(text))

	var back JID
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, jid, back)

	require.NoError(t, back.UnmarshalText(nil))
	assert.True(t, back.IsEmpty())

	assert.Error(t, back.UnmarshalText([]byte("broken")))
}
