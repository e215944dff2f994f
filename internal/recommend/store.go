package recommend

import (
	"sync"
	"time"
)

// DefaultSessionTTL is how long an idle session is kept
const DefaultSessionTTL = 2 * time.Hour

// SessionStore keys sessions by an opaque id. Idle sessions expire lazily.
type SessionStore struct {
	engine *Engine
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*storedSession
}

type storedSession struct {
	session  *Session
	lastUsed time.Time
}

// NewSessionStore creates a store. A ttl of 0 uses DefaultSessionTTL.
func NewSessionStore(engine *Engine, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		engine:   engine,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*storedSession),
	}
}

// Get returns the session for id, creating it when missing or expired
func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.evictLocked(now)

	entry, ok := st.sessions[id]
	if !ok {
		entry = &storedSession{session: NewSession(st.engine)}
		st.sessions[id] = entry
	}
	entry.lastUsed = now
	return entry.session
}

// Delete drops the session for id
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// ResetAll clears the surfaced sets of every live session
func (st *SessionStore) ResetAll() {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, entry := range st.sessions {
		sessions = append(sessions, entry.session)
	}
	st.mu.Unlock()

	for _, s := range sessions {
		s.Reset()
	}
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.evictLocked(st.now())
	return len(st.sessions)
}

func (st *SessionStore) evictLocked(now time.Time) {
	for id, entry := range st.sessions {
		if now.Sub(entry.lastUsed) > st.ttl {
			delete(st.sessions, id)
		}
	}
}
