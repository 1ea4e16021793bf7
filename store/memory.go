package store

import (
	"encoding/json"
	"sync"
)

// MemoryStore is a Backend that lives only as long as the process. The
// device is kept in its serialized form so callers cannot alias it.
type MemoryStore struct {
	mu     sync.RWMutex
	device []byte
	remote map[string][32]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{remote: make(map[string][32]byte)}
}

func (m *MemoryStore) LoadDevice() (*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.device == nil {
		return nil, ErrNoDevice
	}
	var d Device
	if err := json.Unmarshal(m.device, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *MemoryStore) SaveDevice(d *Device) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = data
	return nil
}

func (m *MemoryStore) GetRemoteStatic(peer string) ([32]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.remote[peer]
	if !ok {
		return [32]byte{}, ErrNotFound
	}
	return key, nil
}

func (m *MemoryStore) PutRemoteStatic(peer string, key [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote[peer] = key
	return nil
}

func (m *MemoryStore) DeleteRemoteStatic(peer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.remote, peer)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
