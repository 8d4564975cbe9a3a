package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

// ErrSessionNotFound is returned by a Store when no session exists under the id.
var ErrSessionNotFound = errors.New("session not found")

// Store persists session memories. Implementations must return copies so a
// caller never shares state with the store.
type Store interface {
	Get(ctx context.Context, id string) (*model.SessionMemory, error)
	Save(ctx context.Context, s *model.SessionMemory) error
	Delete(ctx context.Context, id string) error
	// List returns every stored session. Messages may be omitted.
	List(ctx context.Context) ([]*model.SessionMemory, error)
}

// InMemoryStore keeps sessions in a process-local map.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.SessionMemory
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*model.SessionMemory)}
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*model.SessionMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, sess *model.SessionMemory) error {
	s.mu.Lock()
	s.sessions[sess.ID] = sess.Clone()
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*model.SessionMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.SessionMemory, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out, nil
}

var _ Store = (*InMemoryStore)(nil)
