// Package sqlstore is a store.Backend on SQLite.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opd-ai/wacore/store"
)

// Store is a SQLite-backed store.Backend. The device table holds one row.
type Store struct {
	db *sql.DB
}

// Open opens db at path, enables WAL and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS device (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			jid TEXT NOT NULL DEFAULT '',
			noise_private BLOB NOT NULL,
			identity_private BLOB NOT NULL,
			adv_secret_key BLOB NOT NULL,
			registration_id INTEGER NOT NULL,
			platform TEXT NOT NULL DEFAULT '',
			push_name TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS remote_static (
			peer TEXT PRIMARY KEY,
			public_key BLOB NOT NULL,
			learned_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) LoadDevice() (*store.Device, error) {
	var (
		jid, platform, pushName      string
		noisePriv, identityPriv, adv []byte
		regID                        uint32
	)
	err := s.db.QueryRow(`SELECT jid, noise_private, identity_private, adv_secret_key,
		registration_id, platform, push_name FROM device WHERE id = 1`).
		Scan(&jid, &noisePriv, &identityPriv, &adv, &regID, &platform, &pushName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNoDevice
	}
	if err != nil {
		return nil, err
	}

	d, err := store.DeviceFromParts(jid, noisePriv, identityPriv, adv, regID)
	if err != nil {
		return nil, err
	}
	d.Platform = platform
	d.PushName = pushName
	return d, nil
}

func (s *Store) SaveDevice(d *store.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	jid := ""
	if d.IsRegistered() {
		jid = d.ID.String()
	}
	_, err := s.db.Exec(`INSERT INTO device (id, jid, noise_private, identity_private,
			adv_secret_key, registration_id, platform, push_name, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			jid = excluded.jid,
			noise_private = excluded.noise_private,
			identity_private = excluded.identity_private,
			adv_secret_key = excluded.adv_secret_key,
			registration_id = excluded.registration_id,
			platform = excluded.platform,
			push_name = excluded.push_name,
			updated_at = excluded.updated_at`,
		jid, d.NoiseKey.Private[:], d.IdentityKey.Private[:], d.AdvSecretKey[:],
		d.RegistrationID, d.Platform, d.PushName, time.Now().Unix())
	return err
}

func (s *Store) GetRemoteStatic(peer string) ([32]byte, error) {
	var key [32]byte
	var raw []byte
	err := s.db.QueryRow("SELECT public_key FROM remote_static WHERE peer = ?", peer).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return key, store.ErrNotFound
	}
	if err != nil {
		return key, err
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("remote key for %s is %d bytes", peer, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func (s *Store) PutRemoteStatic(peer string, key [32]byte) error {
	if peer == "" {
		return errors.New("missing peer")
	}
	_, err := s.db.Exec(`INSERT INTO remote_static (peer, public_key, learned_at) VALUES (?, ?, ?)
		ON CONFLICT(peer) DO UPDATE SET public_key = excluded.public_key, learned_at = excluded.learned_at`,
		peer, key[:], time.Now().Unix())
	return err
}

func (s *Store) DeleteRemoteStatic(peer string) error {
	_, err := s.db.Exec("DELETE FROM remote_static WHERE peer = ?", peer)
	return err
}
