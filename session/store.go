package session

import "sync"

// Store abstracts session persistence so that sessions can live in memory
// (default) or in a durable backing store.
type Store interface {
	// Get retrieves a session by ID. Returns false if it does not exist.
	Get(id string) (*Session, bool)
	// Put creates or updates a session.
	Put(s *Session)
	// Delete removes a session by ID.
	Delete(id string)
	// ByUser returns all sessions for a user.
	ByUser(userID string) []*Session
	// All returns every stored session.
	All() []*Session
	// Len reports the number of stored sessions.
	Len() int
}

// MemoryStore is a thread-safe in-memory Store. Sessions are lost on
// restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Session)}
}

func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	m.data[s.ID] = s.Clone()
	m.mu.Unlock()
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
}

func (m *MemoryStore) ByUser(userID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.data {
		if s.UserID == userID {
			out = append(out, s.Clone())
		}
	}
	return out
}

func (m *MemoryStore) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.data))
	for _, s := range m.data {
		out = append(out, s.Clone())
	}
	return out
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
