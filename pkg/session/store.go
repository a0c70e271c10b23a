package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the process-wide index of sessions.
// Store is safe for concurrent use. Its lock guards only the index; work on
// an individual session is serialized by that session's own lock.
type Store struct {
	ttl          time.Duration
	maxExchanges int
	now          Clock
	newID        func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(st *Store) {
		if now != nil {
			st.now = now
		}
	}
}

// WithIDGenerator overrides how identifiers for new sessions are produced.
func WithIDGenerator(gen func() string) Option {
	return func(st *Store) {
		if gen != nil {
			st.newID = gen
		}
	}
}

// NewStore creates an empty store. Non-positive values in cfg fall back to
// DefaultConfig.
func NewStore(cfg Config, opts ...Option) *Store {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxExchanges <= 0 {
		cfg.MaxExchanges = def.MaxExchanges
	}

	st := &Store{
		ttl:          cfg.TTL,
		maxExchanges: cfg.MaxExchanges,
		now:          time.Now,
		newID:        uuid.NewString,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// TTL returns the idle duration after which sessions expire.
func (st *Store) TTL() time.Duration {
	return st.ttl
}

// GetOrCreate returns the session for id, creating it when id is empty or
// unknown. A provided id is used verbatim for the new session; an empty id
// gets a freshly generated one. Concurrent calls with the same unseen id
// observe a single session.
func (st *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if sess, ok := st.Get(id); ok {
			return sess
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		// Double-check after acquiring write lock
		if sess, ok := st.sessions[id]; ok {
			sess.touch()
			return sess
		}
	} else {
		id = st.freshIDLocked()
	}

	sess := newSession(id, st.maxExchanges, st.now)
	st.sessions[id] = sess
	return sess
}

// Get looks up an existing session without creating one.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok {
		return nil, false
	}
	sess.touch()
	return sess, true
}

// Len returns the number of sessions in the store.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Stats returns the session and exchange counts.
func (st *Store) Stats() Stats {
	snapshot := st.snapshot()

	stats := Stats{Sessions: len(snapshot)}
	for _, sess := range snapshot {
		stats.Exchanges += sess.Len()
	}
	return stats
}

// Cleanup removes every session idle for longer than the TTL and returns how
// many were removed. Candidates are selected from a snapshot so lookups are
// not blocked while the sweep inspects sessions; each candidate is checked
// again under the write lock and spared if it was used in the meantime.
// Callers still holding a removed session can keep using it; it is simply no
// longer reachable through the store.
func (st *Store) Cleanup() int {
	now := st.now()

	var expired []*Session
	for _, sess := range st.snapshot() {
		if sess.idleSince(now) > st.ttl {
			expired = append(expired, sess)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for _, sess := range expired {
		current, ok := st.sessions[sess.id]
		if !ok || current != sess {
			continue
		}
		if sess.idleSince(now) <= st.ttl {
			continue
		}
		delete(st.sessions, sess.id)
		removed++
	}
	return removed
}

// snapshot copies the current set of sessions.
func (st *Store) snapshot() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sessions := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// freshIDLocked generates an identifier not present in the index.
// Callers must hold st.mu for writing.
func (st *Store) freshIDLocked() string {
	for {
		id := st.newID()
		if id == "" {
			continue
		}
		if _, taken := st.sessions[id]; !taken {
			return id
		}
	}
}
