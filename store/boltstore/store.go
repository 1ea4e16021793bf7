// Package boltstore is a store.Backend on a single bbolt file.
package boltstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/opd-ai/wacore/store"
)

const (
	bDevice = "device"
	bRemote = "remote_static"
	kDevice = "self"

	defaultTO = 2 * time.Second
)

// Store is a bbolt-backed store.Backend.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTO})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bDevice, bRemote} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) LoadDevice() (*store.Device, error) {
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bDevice)).Get([]byte(kDevice)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, store.ErrNoDevice
	}

	var d store.Device
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode device: %w", err)
	}
	return &d, nil
}

func (s *Store) SaveDevice(d *store.Device) error {
	val, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bDevice)).Put([]byte(kDevice), val)
	})
}

func (s *Store) GetRemoteStatic(peer string) ([32]byte, error) {
	var key [32]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bRemote)).Get([]byte(peer))
		if v == nil {
			return store.ErrNotFound
		}
		if len(v) != len(key) {
			return fmt.Errorf("remote key for %s is %d bytes", peer, len(v))
		}
		copy(key[:], v)
		return nil
	})
	return key, err
}

func (s *Store) PutRemoteStatic(peer string, key [32]byte) error {
	if peer == "" {
		return errors.New("missing peer")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bRemote)).Put([]byte(peer), key[:])
	})
}

func (s *Store) DeleteRemoteStatic(peer string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bRemote)).Delete([]byte(peer))
	})
}
