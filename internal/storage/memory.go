package storage

import (
	"context"
	"sync"
)

// Memory keeps blobs in process memory. It is used for local development
// and as the backend of tests in other packages.
type Memory struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	messages []string
}

func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

func (m *Memory) Fetch(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Commit(_ context.Context, name string, data []byte, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return ErrNotFound
	}
	m.blobs[name] = append([]byte(nil), data...)
	m.messages = append(m.messages, message)
	return nil
}

func (m *Memory) Create(_ context.Context, name string, data []byte, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; ok {
		return ErrExists
	}
	m.blobs[name] = append([]byte(nil), data...)
	m.messages = append(m.messages, message)
	return nil
}

// Messages returns the commit messages recorded so far, oldest first.
func (m *Memory) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}
