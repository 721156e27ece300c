package memory

import (
	"container/list"
	"sync"
	"time"

	"puzzle-gate-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository with
// bounded growth: sessions expire after an idle TTL and the store evicts the
// least recently used entry once the cap is reached.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	cap      int
	clock    func() time.Time
	sessions map[string]*storeEntry
	order    *list.List // front = most recently used
}

type storeEntry struct {
	session   *app.Session
	touchedAt time.Time
	elem      *list.Element
}

func NewSessionStore(ttl time.Duration, cap int) *SessionStore {
	return newSessionStoreWithClock(ttl, cap, time.Now)
}

func newSessionStoreWithClock(ttl time.Duration, cap int, clock func() time.Time) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		cap:      cap,
		clock:    clock,
		sessions: make(map[string]*storeEntry),
		order:    list.New(),
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	now := s.clock()
	if s.ttl > 0 && now.Sub(entry.touchedAt) > s.ttl {
		s.removeLocked(sessionID, entry)
		return nil, false
	}
	entry.touchedAt = now
	s.order.MoveToFront(entry.elem)
	return entry.session, true
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := session.ID()
	if entry, ok := s.sessions[id]; ok {
		entry.session = session
		entry.touchedAt = s.clock()
		s.order.MoveToFront(entry.elem)
		return
	}

	entry := &storeEntry{session: session, touchedAt: s.clock()}
	entry.elem = s.order.PushFront(id)
	s.sessions[id] = entry

	if s.cap > 0 && len(s.sessions) > s.cap {
		if back := s.order.Back(); back != nil {
			oldest := back.Value.(string)
			s.removeLocked(oldest, s.sessions[oldest])
		}
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) removeLocked(sessionID string, entry *storeEntry) {
	s.order.Remove(entry.elem)
	delete(s.sessions, sessionID)
}
