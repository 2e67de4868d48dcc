package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/humidity-comfort/internal/charts"
	"github.com/i474232898/humidity-comfort/internal/compare"
	"github.com/i474232898/humidity-comfort/internal/weather"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("comparison session not found")
	// ErrFull is returned when the session limit is reached.
	ErrFull = errors.New("too many comparison sessions")
)

// Session is one comparison with its chart renderer.
type Session struct {
	ID         string
	Controller *compare.Controller
	Charts     *charts.Renderer
	CreatedAt  time.Time
}

// NewSession creates a session with a fresh id.
func NewSession(provider weather.Provider, cities compare.CityResolver, opts compare.Options) *Session {
	r := charts.NewRenderer()
	return &Session{
		ID:         uuid.NewString(),
		Controller: compare.NewController(provider, cities, r, opts),
		Charts:     r,
		CreatedAt:  time.Now().UTC(),
	}
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// MemoryStore is a concurrency-safe in-memory registry of live sessions.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session id
	data map[string]*entry

	// retention configuration
	maxSessions int           // max number of live sessions
	maxIdle     time.Duration // sessions untouched for longer are evicted

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxSessions or maxIdle is <= 0, it is treated as unlimited.
func NewMemoryStore(maxSessions int, maxIdle time.Duration) *MemoryStore {
	return &MemoryStore{
		data:        make(map[string]*entry),
		maxSessions: maxSessions,
		maxIdle:     maxIdle,
		now:         time.Now,
	}
}

// Save registers a session. When the store is full, idle sessions are
// evicted first.
func (s *MemoryStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.data) >= s.maxSessions {
		s.evictLocked()
		if len(s.data) >= s.maxSessions {
			return ErrFull
		}
	}

	s.data[sess.ID] = &entry{session: sess, lastSeen: s.now()}
	return nil
}

// Get returns the session for id and marks it as used.
func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = s.now()
	return e.session, nil
}

// Delete removes a session and closes its controller.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.data[id]
	delete(s.data, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	e.session.Controller.Close()
	return nil
}

// Sessions returns the live sessions, oldest first.
func (s *MemoryStore) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e.session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes sessions idle for longer than the configured max idle time
// and returns how many were removed.
func (s *MemoryStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked()
}

func (s *MemoryStore) evictLocked() int {
	if s.maxIdle <= 0 {
		return 0
	}

	cutoff := s.now().Add(-s.maxIdle)
	n := 0
	for id, e := range s.data {
		if e.lastSeen.Before(cutoff) {
			e.session.Controller.Close()
			delete(s.data, id)
			n++
		}
	}
	return n
}
