package presence

import (
	"context"
	"sync"
)

// Memory is the single-process Registry.
type Memory struct {
	mu      sync.Mutex
	sockets map[string]string              // socket id -> user id
	users   map[string]map[string]struct{} // user id -> socket ids
}

var _ Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		sockets: make(map[string]string),
		users:   make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Announce(_ context.Context, socketID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sockets[socketID] = userID
	if m.users[userID] == nil {
		m.users[userID] = make(map[string]struct{})
	}
	m.users[userID][socketID] = struct{}{}
	return nil
}

func (m *Memory) Touch(_ context.Context, _, _ string) error {
	return nil
}

func (m *Memory) Retire(_ context.Context, socketID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sockets, socketID)
	if set, ok := m.users[userID]; ok {
		delete(set, socketID)
		if len(set) == 0 {
			delete(m.users, userID)
		}
	}
	return nil
}

func (m *Memory) CountOnline(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sockets)), nil
}

func (m *Memory) IsOnline(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users[userID]) > 0, nil
}
