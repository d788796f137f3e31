package server

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"literary-rag/internal/rag"
)

type sessionEntry struct {
	mu      sync.Mutex
	session *rag.Session
}

// SessionStore keeps chat sessions in memory. A session expires after ttl
// without requests.
type SessionStore struct {
	mu         sync.Mutex
	cache      *cache.Cache
	ttl        time.Duration
	newSession func(id string) *rag.Session
}

func NewSessionStore(ttl time.Duration, newSession func(id string) *rag.Session) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{
		cache:      cache.New(ttl, ttl/2),
		ttl:        ttl,
		newSession: newSession,
	}
}

// Create stores a fresh session under id, replacing any previous one.
func (s *SessionStore) Create(id string) *rag.Session {
	e := &sessionEntry{session: s.newSession(id)}
	s.mu.Lock()
	s.cache.Set(id, e, s.ttl)
	s.mu.Unlock()
	return e.session
}

// Acquire holds an existing session until release is called. Requests on
// one session run one at a time. ok is false for unknown or expired ids.
func (s *SessionStore) Acquire(id string) (session *rag.Session, release func(), ok bool) {
	s.mu.Lock()
	v, found := s.cache.Get(id)
	if !found {
		s.mu.Unlock()
		return nil, nil, false
	}
	e := v.(*sessionEntry)
	s.cache.Set(id, e, s.ttl)
	s.mu.Unlock()

	e.mu.Lock()
	return e.session, e.mu.Unlock, true
}

// Get returns an existing session and refreshes its expiry.
func (s *SessionStore) Get(id string) (*rag.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	s.cache.Set(id, v, s.ttl)
	return v.(*sessionEntry).session, true
}

func (s *SessionStore) Delete(id string) {
	s.cache.Delete(id)
}

func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}
