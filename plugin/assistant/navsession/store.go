// Package navsession holds per-chat pending-navigation state: the window
// between "navigate somewhere" and the user sharing their location.
package navsession

import (
	"sync"
	"time"
)

// DefaultTTL is how long a pending navigation waits for a location share.
const DefaultTTL = 10 * time.Minute

// Session is one pending navigation. At most one exists per chat.
type Session struct {
	ChatID      int64
	Destination string
	Address     string
	Lat         float64
	Lng         float64
	CreatedAt   time.Time
}

// Store keeps pending sessions keyed by chat. Put overwrites (latest
// request wins), Take consumes exactly once, expired sessions read as
// absent.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[int64]*Session

	now func() time.Time // test hook
}

// NewStore creates a session store. ttl <= 0 selects DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Put stores a pending session, replacing any existing one for the chat.
func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	s.sessions[sess.ChatID] = sess
}

// Take atomically fetches and removes the chat's pending session.
// Returns nil when there is none or it has expired.
func (s *Store) Take(chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil
	}
	delete(s.sessions, chatID)
	if s.now().Sub(sess.CreatedAt) > s.ttl {
		return nil
	}
	return sess
}

// Sweep drops every expired session and reports how many were removed.
// Take already treats expired sessions as absent; Sweep just keeps the map
// from accumulating abandoned requests.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for chatID, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, chatID)
			removed++
		}
	}
	return removed
}
