package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Expired sessions are dropped lazily on read.
type MemoryStore[T any] struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]Session[T]
}

// NewMemoryStore builds a store whose sessions expire after ttl of inactivity; ttl <= 0 disables expiry.
func NewMemoryStore[T any](ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]Session[T]),
	}
}

// WithClock replaces the time source; used by tests.
func (m *MemoryStore[T]) WithClock(now func() time.Time) *MemoryStore[T] {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *MemoryStore[T]) expired(s Session[T]) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

// Get returns the session for a chat if it exists and has not expired.
func (m *MemoryStore[T]) Get(_ context.Context, chatID int64) (Session[T], bool, error) {
	m.mu.RLock()
	s, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if !ok {
		return Session[T]{}, false, nil
	}
	if m.expired(s) {
		m.mu.Lock()
		if cur, ok := m.sessions[chatID]; ok && m.expired(cur) {
			delete(m.sessions, chatID)
		}
		m.mu.Unlock()
		return Session[T]{}, false, nil
	}
	return s, true, nil
}

// Put stores the session and refreshes its activity timestamp.
func (m *MemoryStore[T]) Put(_ context.Context, chatID int64, s Session[T]) error {
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[chatID] = s
	m.mu.Unlock()
	return nil
}

// Delete removes the session of a chat.
func (m *MemoryStore[T]) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.sessions, chatID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
