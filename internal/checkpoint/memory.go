package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/senga07/xAgentic/internal/engine"
)

// MemoryStore holds snapshots in a map, cloning on read and write so no
// caller can mutate a stored state in place. Suited for tests and
// single-process runs without durability needs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*engine.ExecutionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*engine.ExecutionState),
	}
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*engine.ExecutionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrNoSuchSession, sessionID)
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, sessionID string, st *engine.ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = st.Clone()
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*engine.ExecutionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]*engine.ExecutionState, 0, len(m.sessions))
	for _, st := range m.sessions {
		states = append(states, st.Clone())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	return states, nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", engine.ErrNoSuchSession, sessionID)
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, st := range m.sessions {
		if st.Status.Terminal() && st.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
