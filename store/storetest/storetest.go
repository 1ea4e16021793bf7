// Package storetest holds the behavior every store.Backend must share.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/wacore/store"
	"github.com/opd-ai/wacore/types"
)

// RunBackendTests exercises a backend created fresh by open for each case.
func RunBackendTests(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Run("NoDevice", func(t *testing.T) {
		b := open(t)
		_, err := b.LoadDevice()
		assert.ErrorIs(t, err, store.ErrNoDevice)
	})

	t.Run("DeviceRoundTrip", func(t *testing.T) {
		b := open(t)
		d, err := store.NewDevice()
		require.NoError(t, err)
		d.PushName = "wacore"
		require.NoError(t, b.SaveDevice(d))

		got, err := b.LoadDevice()
		require.NoError(t, err)
		AssertSameDevice(t, d, got)
		assert.False(t, got.IsRegistered())

		d.ID = types.NewADJID("123", types.WhatsAppDomain, 7)
		require.NoError(t, b.SaveDevice(d))
		got, err = b.LoadDevice()
		require.NoError(t, err)
		AssertSameDevice(t, d, got)
		assert.True(t, got.IsRegistered())
	})

	t.Run("RemoteStatic", func(t *testing.T) {
		b := open(t)
		peer := types.NewJID("", types.DefaultUserServer).String()

		_, err := b.GetRemoteStatic(peer)
		assert.ErrorIs(t, err, store.ErrNotFound)

		key := [32]byte{1, 2, 3}
		require.NoError(t, b.PutRemoteStatic(peer, key))
		got, err := b.GetRemoteStatic(peer)
		require.NoError(t, err)
		assert.Equal(t, key, got)

		key[0] = 9
		require.NoError(t, b.PutRemoteStatic(peer, key))
		got, err = b.GetRemoteStatic(peer)
		require.NoError(t, err)
		assert.Equal(t, key, got)

		require.NoError(t, b.DeleteRemoteStatic(peer))
		_, err = b.GetRemoteStatic(peer)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, b.DeleteRemoteStatic(peer))
	})
}

// AssertSameDevice compares the persisted fields of two devices.
func AssertSameDevice(t *testing.T, want, got *store.Device) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, *want.NoiseKey, *got.NoiseKey)
	assert.Equal(t, *want.IdentityKey, *got.IdentityKey)
	assert.Equal(t, want.AdvSecretKey, got.AdvSecretKey)
	assert.Equal(t, want.RegistrationID, got.RegistrationID)
	assert.Equal(t, want.Platform, got.Platform)
	assert.Equal(t, want.PushName, got.PushName)
}
