package store

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/opd-ai/wacore/crypto"
	"github.com/opd-ai/wacore/types"
)

// registrationIDMask keeps registration ids to 14 bits.
const registrationIDMask = 0x3FFF

// Device is the long-lived identity of this client: the Noise static key
// used for every handshake, the identity key and advertisement secret shown
// during pairing, and the JID assigned once paired.
type Device struct {
	ID             types.JID
	NoiseKey       *crypto.KeyPair
	IdentityKey    *crypto.KeyPair
	AdvSecretKey   [32]byte
	RegistrationID uint32
	Platform       string
	PushName       string
}

// NewDevice creates an unpaired device with fresh keys.
func NewDevice() (*Device, error) {
	noiseKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("noise key: %w", err)
	}
	identityKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("identity key: %w", err)
	}

	d := &Device{
		NoiseKey:    noiseKey,
		IdentityKey: identityKey,
		Platform:    "web",
	}
	if _, err := rand.Read(d.AdvSecretKey[:]); err != nil {
		return nil, fmt.Errorf("adv secret: %w", err)
	}
	if d.RegistrationID, err = newRegistrationID(); err != nil {
		return nil, err
	}
	return d, nil
}

func newRegistrationID() (uint32, error) {
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("registration id: %w", err)
		}
		if id := binary.BigEndian.Uint32(buf[:]) & registrationIDMask; id != 0 {
			return id, nil
		}
	}
}

// IsRegistered reports whether the device has been assigned a JID.
func (d *Device) IsRegistered() bool {
	return !d.ID.IsEmpty()
}

// Validate checks that the device carries both key pairs.
func (d *Device) Validate() error {
	if d.NoiseKey == nil {
		return fmt.Errorf("%w: missing noise key", ErrInvalidDevice)
	}
	if d.IdentityKey == nil {
		return fmt.Errorf("%w: missing identity key", ErrInvalidDevice)
	}
	return nil
}

// Wipe clears the private key material held by d.
func (d *Device) Wipe() {
	if d.NoiseKey != nil {
		_ = crypto.WipeKeyPair(d.NoiseKey)
	}
	if d.IdentityKey != nil {
		_ = crypto.WipeKeyPair(d.IdentityKey)
	}
	crypto.Zero32(&d.AdvSecretKey)
}

// deviceRecord is the persisted form. Public keys are derived on load.
type deviceRecord struct {
	ID             string `json:"id,omitempty"`
	NoisePrivate   []byte `json:"noise_private"`
	IdentityPriv   []byte `json:"identity_private"`
	AdvSecretKey   []byte `json:"adv_secret_key"`
	RegistrationID uint32 `json:"registration_id"`
	Platform       string `json:"platform,omitempty"`
	PushName       string `json:"push_name,omitempty"`
}

// MarshalJSON encodes the device with its private keys.
func (d *Device) MarshalJSON() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	rec := deviceRecord{
		NoisePrivate:   d.NoiseKey.Private[:],
		IdentityPriv:   d.IdentityKey.Private[:],
		AdvSecretKey:   d.AdvSecretKey[:],
		RegistrationID: d.RegistrationID,
		Platform:       d.Platform,
		PushName:       d.PushName,
	}
	if !d.ID.IsEmpty() {
		rec.ID = d.ID.String()
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a device written by MarshalJSON.
func (d *Device) UnmarshalJSON(data []byte) error {
	var rec deviceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	dev, err := DeviceFromParts(rec.ID, rec.NoisePrivate, rec.IdentityPriv, rec.AdvSecretKey, rec.RegistrationID)
	if err != nil {
		return err
	}
	dev.Platform = rec.Platform
	dev.PushName = rec.PushName
	*d = *dev
	return nil
}

// DeviceFromParts rebuilds a device from its stored columns. Backends that
// do not keep JSON use it directly.
func DeviceFromParts(id string, noisePriv, identityPriv, advSecret []byte, registrationID uint32) (*Device, error) {
	noiseKey, err := keyPairFromBytes(noisePriv)
	if err != nil {
		return nil, fmt.Errorf("%w: noise key: %w", ErrInvalidDevice, err)
	}
	identityKey, err := keyPairFromBytes(identityPriv)
	if err != nil {
		return nil, fmt.Errorf("%w: identity key: %w", ErrInvalidDevice, err)
	}
	if len(advSecret) != 32 {
		return nil, fmt.Errorf("%w: adv secret is %d bytes", ErrInvalidDevice, len(advSecret))
	}

	d := &Device{
		NoiseKey:       noiseKey,
		IdentityKey:    identityKey,
		RegistrationID: registrationID,
	}
	copy(d.AdvSecretKey[:], advSecret)
	if id != "" {
		if d.ID, err = types.ParseJID(id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDevice, err)
		}
	}
	return d, nil
}

func keyPairFromBytes(priv []byte) (*crypto.KeyPair, error) {
	if len(priv) != crypto.KeySize {
		return nil, fmt.Errorf("private key is %d bytes", len(priv))
	}
	var sk [32]byte
	copy(sk[:], priv)
	defer crypto.Zero32(&sk)
	return crypto.FromSecretKey(sk)
}
