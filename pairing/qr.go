// Package pairing builds and parses the payload shown as a QR code when
// linking a device, and rotates it on a timer until pairing completes.
package pairing

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/opd-ai/wacore/store"
)

// ErrInvalidPayload indicates QR text that is not ref,noise,identity,adv.
var ErrInvalidPayload = errors.New("invalid pairing payload")

// Payload is the content of one QR code.
type Payload struct {
	Ref            string
	NoisePublic    [32]byte
	IdentityPublic [32]byte
	AdvSecret      [32]byte
}

// NewPayload takes the public keys and advertisement secret from d.
func NewPayload(ref string, d *store.Device) (Payload, error) {
	if err := d.Validate(); err != nil {
		return Payload{}, err
	}
	if ref == "" || strings.Contains(ref, ",") {
		return Payload{}, fmt.Errorf("%w: bad ref %q", ErrInvalidPayload, ref)
	}
	return Payload{
		Ref:            ref,
		NoisePublic:    d.NoiseKey.Public,
		IdentityPublic: d.IdentityKey.Public,
		AdvSecret:      d.AdvSecretKey,
	}, nil
}

// String renders ref,base64(noise),base64(identity),base64(adv).
func (p Payload) String() string {
	enc := base64.StdEncoding
	return strings.Join([]string{
		p.Ref,
		enc.EncodeToString(p.NoisePublic[:]),
		enc.EncodeToString(p.IdentityPublic[:]),
		enc.EncodeToString(p.AdvSecret[:]),
	}, ",")
}

// Parse reverses Payload.String.
func Parse(s string) (Payload, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Payload{}, fmt.Errorf("%w: %d fields", ErrInvalidPayload, len(parts))
	}
	if parts[0] == "" {
		return Payload{}, fmt.Errorf("%w: empty ref", ErrInvalidPayload)
	}

	p := Payload{Ref: parts[0]}
	fields := []struct {
		name string
		dst  *[32]byte
	}{
		{"noise key", &p.NoisePublic},
		{"identity key", &p.IdentityPublic},
		{"adv secret", &p.AdvSecret},
	}
	for i, f := range fields {
		raw, err := base64.StdEncoding.DecodeString(parts[i+1])
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, f.name, err)
		}
		if len(raw) != len(f.dst) {
			return Payload{}, fmt.Errorf("%w: %s is %d bytes", ErrInvalidPayload, f.name, len(raw))
		}
		copy(f.dst[:], raw)
	}
	return p, nil
}

// NewRef returns a random upper-case hex reference.
func NewRef() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("pairing ref: %w", err)
	}
	return strings.ToUpper(strconv.FormatUint(binary.BigEndian.Uint64(buf[:]), 16)), nil
}
