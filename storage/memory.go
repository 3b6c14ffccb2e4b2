package storage

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"rainlang.xyz/rainmeta/metahash"
)

// Memory is a process-local CAS. The zero value is ready to use.
type Memory struct {
	mu      sync.RWMutex
	objects map[metahash.Hash][]byte
}

var _ CAS = (*Memory)(nil)

func (m *Memory) Put(_ context.Context, data []byte) (metahash.Hash, error) {
	if len(data) == 0 {
		return metahash.Zero, errors.New("storage: refusing to store empty content")
	}
	h := metahash.Sum(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[h]; ok {
		if !bytes.Equal(existing, data) {
			return metahash.Zero, ErrImmutable
		}
		return h, nil
	}
	if m.objects == nil {
		m.objects = make(map[metahash.Hash][]byte)
	}
	m.objects[h] = bytes.Clone(data)
	return h, nil
}

func (m *Memory) Get(_ context.Context, h metahash.Hash) ([]byte, error) {
	if !h.Defined() {
		return nil, ErrInvalidHash
	}
	m.mu.RLock()
	b, ok := m.objects[h]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(b), nil
}

func (m *Memory) Has(_ context.Context, h metahash.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[h]
	return ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
