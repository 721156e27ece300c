package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"puzzle-gate-service/internal/app"
	"puzzle-gate-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions are snapshotted to Redis as JSON with a TTL, so a session created
// by another instance (or evicted locally) can be rehydrated on Get. The
// local map keeps the hot path lock-cheap within one process.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		// best-effort sliding expiry
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Err()
		return session, true
	}

	raw, err := s.client.Get(context.Background(), s.key(sessionID)).Bytes()
	if err != nil {
		return nil, false
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false
	}
	session = app.RestoreSession(state)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, true
	}
	s.sessions[sessionID] = session
	return session, true
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	raw, err := json.Marshal(session.Snapshot())
	if err != nil {
		return
	}
	// best-effort snapshot write
	_ = s.client.Set(context.Background(), s.key(session.ID()), raw, s.ttl).Err()
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) key(sessionID string) string {
	return "puzzle:session:" + sessionID
}
