// Package types contains value types shared by the codec, the handshake and
// the stores.
package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Well-known JID servers.
const (
	DefaultUserServer = "s.whatsapp.net"
	GroupServer       = "g.us"
	LegacyUserServer  = "c.us"
	BroadcastServer   = "broadcast"
	HiddenUserServer  = "lid"
	HostedServer      = "hosted"
	HostedLIDServer   = "hosted.lid"
)

// Addressing domains carried in the agent byte of the compact device JID form.
const (
	WhatsAppDomain  uint8 = 0
	LIDDomain       uint8 = 1
	HostedDomain    uint8 = 128
	HostedLIDDomain uint8 = 129
)

var (
	// ErrInvalidJID is returned by ParseJID for malformed text.
	ErrInvalidJID = errors.New("invalid jid")
)

// JID is an addressing identity. The zero value is the empty JID.
// JIDs are compared with ==.
type JID struct {
	User   string
	Server string
	Device uint16
	Agent  uint8
}

// NewJID returns a plain user@server JID.
func NewJID(user, server string) JID {
	return JID{User: user, Server: server}
}

// NewADJID builds a device JID from the compact wire form, where the server is
// implied by the domain byte.
func NewADJID(user string, domain uint8, device uint8) JID {
	jid := JID{User: user, Device: uint16(device)}
	switch domain {
	case LIDDomain:
		jid.Server = HiddenUserServer
	case HostedDomain:
		jid.Server = HostedServer
	case HostedLIDDomain:
		jid.Server = HostedLIDServer
	default:
		jid.Server = DefaultUserServer
		jid.Agent = domain
	}
	return jid
}

// ADDomain reports the domain byte to use when this JID is written in the
// compact device form. ok is false when the server cannot be implied by the
// domain byte or the device does not fit in a byte.
func (j JID) ADDomain() (domain uint8, ok bool) {
	if j.Device > 0xff {
		return 0, false
	}
	switch j.Server {
	case DefaultUserServer:
		switch j.Agent {
		case LIDDomain, HostedDomain, HostedLIDDomain:
			return 0, false
		}
		return j.Agent, true
	case HiddenUserServer:
		return LIDDomain, j.Agent == 0
	case HostedServer:
		return HostedDomain, j.Agent == 0
	case HostedLIDServer:
		return HostedLIDDomain, j.Agent == 0
	}
	return 0, false
}

// IsAD reports whether the JID addresses a specific device or agent.
func (j JID) IsAD() bool {
	return j.Device > 0 || j.Agent > 0
}

// IsEmpty reports whether the JID has no server.
func (j JID) IsEmpty() bool {
	return j.Server == ""
}

// ToNonAD strips the agent and device.
func (j JID) ToNonAD() JID {
	return JID{User: j.User, Server: j.Server}
}

// UserPart returns the text before the @: user, user:device or
// user:agent:device.
func (j JID) UserPart() string {
	switch {
	case j.Agent > 0:
		return fmt.Sprintf("%s:%d:%d", j.User, j.Agent, j.Device)
	case j.Device > 0:
		return fmt.Sprintf("%s:%d", j.User, j.Device)
	default:
		return j.User
	}
}

// String returns the canonical text form.
func (j JID) String() string {
	if j.User == "" && !j.IsAD() {
		return j.Server
	}
	return j.UserPart() + "@" + j.Server
}

// ParseJID parses user[:agent][:device]@server text. Both user and server must
// be non-empty.
func ParseJID(s string) (JID, error) {
	userPart, server, found := strings.Cut(s, "@")
	if !found {
		return JID{}, fmt.Errorf("%w: missing @ in %q", ErrInvalidJID, s)
	}
	if server == "" || strings.Contains(server, "@") {
		return JID{}, fmt.Errorf("%w: bad server in %q", ErrInvalidJID, s)
	}

	parts := strings.Split(userPart, ":")
	jid := JID{User: parts[0], Server: server}
	if jid.User == "" {
		return JID{}, fmt.Errorf("%w: empty user in %q", ErrInvalidJID, s)
	}

	switch len(parts) {
	case 1:
	case 2:
		device, err := strconv.ParseUint(parts[1], 10, 16)
		if err != nil {
			return JID{}, fmt.Errorf("%w: bad device in %q", ErrInvalidJID, s)
		}
		jid.Device = uint16(device)
	case 3:
		agent, err := strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return JID{}, fmt.Errorf("%w: bad agent in %q", ErrInvalidJID, s)
		}
		device, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return JID{}, fmt.Errorf("%w: bad device in %q", ErrInvalidJID, s)
		}
		jid.Agent = uint8(agent)
		jid.Device = uint16(device)
	default:
		return JID{}, fmt.Errorf("%w: too many separators in %q", ErrInvalidJID, s)
	}

	return jid, nil
}

// MarshalText implements encoding.TextMarshaler.
func (j JID) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields the
// empty JID.
func (j *JID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*j = JID{}
		return nil
	}
	parsed, err := ParseJID(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
