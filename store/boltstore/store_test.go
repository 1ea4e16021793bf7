package boltstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/opd-ai/wacore/store"
	"github.com/opd-ai/wacore/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "wacore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltBackend(t *testing.T) {
	storetest.RunBackendTests(t, func(t *testing.T) store.Backend {
		return openTemp(t)
	})
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestDevicePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wacore.db")

	s, err := Open(path)
	require.NoError(t, err)
	c := store.New(s)
	d, created, err := c.EnsureDevice()
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, s.PutRemoteStatic("s.whatsapp.net", [32]byte{4}))
	require.NoError(t, c.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, created, err := store.New(s).EnsureDevice()
	require.NoError(t, err)
	assert.False(t, created)
	storetest.AssertSameDevice(t, d, got)

	key, err := s.GetRemoteStatic("s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, [32]byte{4}, key)
}

func TestCorruptRemoteKey(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bRemote)).Put([]byte("peer"), []byte{1, 2, 3})
	}))

	_, err := s.GetRemoteStatic("peer")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestOpenLockedFileTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wacore.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	start := time.Now()
	_, err = Open(path)
	assert.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), defaultTO)
}
