package store

import (
	"context"
	"sync"

	"github.com/spooky-finn/go-polymarket-session/domain"
)

// MemoryStore keeps session checkpoints in process memory. Useful for
// tests and for runs without a redis instance; checkpoints do not survive
// a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.TradingSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.TradingSession)}
}

func (s *MemoryStore) Get(_ context.Context, accountID string) (*domain.TradingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[accountID]
	if !ok {
		return nil, nil
	}
	copied := session
	return &copied, nil
}

func (s *MemoryStore) Put(_ context.Context, session *domain.TradingSession) error {
	s.mu.Lock()
	s.sessions[session.AccountID] = *session
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	delete(s.sessions, accountID)
	s.mu.Unlock()
	return nil
}
