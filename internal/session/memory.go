package session

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	busy     map[int64]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		busy:     make(map[int64]struct{}),
	}
}

func (m *MemoryStore) Get(_ context.Context, telegramID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[telegramID]; ok {
		return s.clone(), nil
	}
	return &Session{TelegramID: telegramID}, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Idle() {
		delete(m.sessions, s.TelegramID)
		return nil
	}
	c := s.clone()
	c.UpdatedAt = time.Now()
	m.sessions[s.TelegramID] = c
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, telegramID)
	return nil
}

func (m *MemoryStore) TryAcquire(_ context.Context, telegramID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.busy[telegramID]; ok {
		return false, nil
	}
	m.busy[telegramID] = struct{}{}
	return true, nil
}

func (m *MemoryStore) Busy(_ context.Context, telegramID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.busy[telegramID]
	return ok, nil
}

func (m *MemoryStore) Release(_ context.Context, telegramID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.busy, telegramID)
	return nil
}
