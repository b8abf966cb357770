package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-process message log for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]MessageRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]MessageRecord)}
}

func (s *InMemoryStore) SaveMessage(_ context.Context, record MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.records[record.SessionID] = append(s.records[record.SessionID], record)
	return nil
}

func (s *InMemoryStore) SessionMessages(_ context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[sessionID]
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]MessageRecord, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
