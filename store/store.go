// Package store keeps the device identity and the remote static keys learned
// during handshakes.
//
// A Backend persists the records; Container layers the handshake's key store
// on top of any backend. MemoryStore lives here, boltstore and sqlstore in
// their own packages.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/wacore/crypto"
	"github.com/opd-ai/wacore/types"
)

var (
	// ErrNotFound is returned by a Backend when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNoDevice is returned when no device has been saved yet.
	ErrNoDevice = errors.New("no device stored")
	// ErrInvalidDevice indicates a device record that cannot be used.
	ErrInvalidDevice = errors.New("invalid device")
)

// Backend persists device and remote key records.
type Backend interface {
	// LoadDevice returns the stored device or ErrNoDevice.
	LoadDevice() (*Device, error)
	SaveDevice(d *Device) error
	// GetRemoteStatic returns the key stored for peer or ErrNotFound.
	GetRemoteStatic(peer string) ([32]byte, error)
	PutRemoteStatic(peer string, key [32]byte) error
	DeleteRemoteStatic(peer string) error
	Close() error
}

// Container serves the handshake from a Backend. The loaded device is cached.
type Container struct {
	backend Backend

	mu     sync.Mutex
	device *Device
}

// New wraps backend.
func New(backend Backend) *Container {
	return &Container{backend: backend}
}

// Device returns the stored device, loading it on first use.
func (c *Container) Device() (*Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Container) loadLocked() (*Device, error) {
	if c.device != nil {
		return c.device, nil
	}
	d, err := c.backend.LoadDevice()
	if err != nil {
		return nil, err
	}
	c.device = d
	return d, nil
}

// SaveDevice validates and persists d, replacing the cached device.
func (c *Container) SaveDevice(d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backend.SaveDevice(d); err != nil {
		return fmt.Errorf("save device: %w", err)
	}
	c.device = d
	return nil
}

// EnsureDevice loads the stored device, creating and saving a new one when
// none exists. created reports which happened.
func (c *Container) EnsureDevice() (d *Device, created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err = c.loadLocked()
	if err == nil {
		return d, false, nil
	}
	if !errors.Is(err, ErrNoDevice) {
		return nil, false, err
	}

	if d, err = NewDevice(); err != nil {
		return nil, false, err
	}
	if err := c.backend.SaveDevice(d); err != nil {
		return nil, false, fmt.Errorf("save device: %w", err)
	}
	c.device = d

	logrus.WithFields(crypto.SecureFieldHash(d.NoiseKey.Public[:], "noise_key")).WithFields(logrus.Fields{
		"function":        "EnsureDevice",
		"registration_id": d.RegistrationID,
	}).Info("Created new device")
	return d, true, nil
}

// LocalStaticKeyPair returns a copy of the device's Noise key pair.
func (c *Container) LocalStaticKeyPair() (*crypto.KeyPair, error) {
	d, err := c.Device()
	if err != nil {
		return nil, err
	}
	kp := *d.NoiseKey
	return &kp, nil
}

// RememberRemoteStaticKey stores key for peer.
func (c *Container) RememberRemoteStaticKey(peer types.JID, key [32]byte) error {
	if err := c.backend.PutRemoteStatic(peer.String(), key); err != nil {
		return fmt.Errorf("remember %s: %w", peer, err)
	}
	logrus.WithFields(crypto.SecureFieldHash(key[:], "key")).WithFields(logrus.Fields{
		"function": "RememberRemoteStaticKey",
		"peer":     peer.String(),
	}).Debug("Remembered remote static key")
	return nil
}

// LookupRemoteStaticKey returns the key stored for peer. A missing key is not
// an error.
func (c *Container) LookupRemoteStaticKey(peer types.JID) ([32]byte, bool, error) {
	key, err := c.backend.GetRemoteStatic(peer.String())
	if errors.Is(err, ErrNotFound) {
		return [32]byte{}, false, nil
	}
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("lookup %s: %w", peer, err)
	}
	return key, true, nil
}

// ForgetRemoteStaticKey removes the key stored for peer, allowing the next
// handshake to learn a new one.
func (c *Container) ForgetRemoteStaticKey(peer types.JID) error {
	return c.backend.DeleteRemoteStatic(peer.String())
}

// Close closes the backend.
func (c *Container) Close() error {
	return c.backend.Close()
}
