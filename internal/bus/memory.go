package bus

import (
	"context"
	"sync"
)

// Memory is the single-process Bus: publishes dispatch synchronously
// to local subscribers, preserving per-publisher order.
type Memory struct {
	mu       sync.RWMutex
	handlers []func(Event)
	closed   bool
}

var _ Bus = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil
	}
	for _, fn := range m.handlers {
		fn(ev)
	}
	return nil
}

func (m *Memory) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.handlers = nil
	return nil
}
