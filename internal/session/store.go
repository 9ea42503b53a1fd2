// Package session keeps one selection controller per browser session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/zhunle/internal/selection"
)

// Session is one visitor's view state.
type Session struct {
	ID         string
	Controller *selection.Controller
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store manages sessions in memory. Controllers are only touched through
// Ensure, which holds the store lock, so each controller sees one
// transition at a time.
type Store struct {
	sessions map[string]*Session
	order    []string // Track insertion order for eviction
	maxSize  int
	ttl      time.Duration
	mu       sync.Mutex
	now      func() time.Time
}

// NewStore creates a new session store.
func NewStore(maxSize int, ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		order:    make([]string, 0, maxSize),
		maxSize:  maxSize,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *Store) create() *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Controller: selection.New(""),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Evict oldest if at capacity
	for len(s.sessions) >= s.maxSize && len(s.order) > 0 {
		oldest := s.order[0]
		delete(s.sessions, oldest)
		s.order = s.order[1:]
	}

	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	return sess
}

// Ensure runs fn against id's session, creating a fresh session when id
// is unknown or expired. It returns the id that was used.
func (s *Store) Ensure(id string, fn func(c *selection.Controller)) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok && s.expired(sess) {
		s.remove(id)
		ok = false
	}
	if !ok {
		sess = s.create()
	}

	fn(sess.Controller)
	sess.UpdatedAt = s.now()
	return sess.ID
}

// Len returns the number of sessions, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range append([]string(nil), s.order...) {
		if s.expired(s.sessions[id]) {
			s.remove(id)
			removed++
		}
	}
	return removed
}

func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}

func (s *Store) remove(id string) {
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
