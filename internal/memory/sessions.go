package memory

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxSessions bounds how many buffers a registry keeps.
const DefaultMaxSessions = 1000

// Sessions maps session ids to their context buffers. When a new session
// would exceed the cap, the least recently used buffer is dropped.
type Sessions struct {
	mu          sync.Mutex
	config      Config
	buffers     map[string]*ContextBuffer
	lastUsed    map[string]time.Time
	maxSessions int
	now         func() time.Time
}

// NewSessions creates a registry whose buffers share the given limits.
func NewSessions(config Config) *Sessions {
	return &Sessions{
		config:      config,
		buffers:     make(map[string]*ContextBuffer),
		lastUsed:    make(map[string]time.Time),
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
}

// SetMaxSessions changes the cap. Values below one mean one.
func (s *Sessions) SetMaxSessions(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSessions = n
	for len(s.buffers) > s.maxSessions {
		s.evictLRU()
	}
}

// Get returns the buffer for id, if any.
func (s *Sessions) Get(id string) (*ContextBuffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[id]
	if ok {
		s.lastUsed[id] = s.now()
	}
	return b, ok
}

// GetOrCreate returns the buffer for id, creating it on first use. An empty
// id creates a buffer under a generated session id.
func (s *Sessions) GetOrCreate(id string) *ContextBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buffers[id]; ok && id != "" {
		s.lastUsed[id] = s.now()
		return b
	}
	cfg := s.config
	cfg.SessionID = id
	b := NewContextBuffer(cfg)
	s.add(b)
	return b
}

// Put registers an existing buffer under its session id, replacing any
// previous buffer with that id.
func (s *Sessions) Put(b *ContextBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(b)
}

// Delete forgets the buffer for id.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, id)
	delete(s.lastUsed, id)
}

// Len returns the number of registered sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}

// IDs returns the registered session ids in sorted order.
func (s *Sessions) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.buffers))
	for id := range s.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// add registers b, evicting first if needed. Callers hold mu.
func (s *Sessions) add(b *ContextBuffer) {
	id := b.SessionID()
	if _, exists := s.buffers[id]; !exists {
		for len(s.buffers) >= s.maxSessions {
			s.evictLRU()
		}
	}
	s.buffers[id] = b
	s.lastUsed[id] = s.now()
}

func (s *Sessions) evictLRU() {
	var oldest string
	var oldestAt time.Time
	for id, at := range s.lastUsed {
		if oldest == "" || at.Before(oldestAt) {
			oldest, oldestAt = id, at
		}
	}
	delete(s.buffers, oldest)
	delete(s.lastUsed, oldest)
}
