package session

import (
	"strings"
	"sync"
	"time"
)

// Session is the server-side conversation state bound to one identifier.
// Sessions are safe for concurrent use; every mutation happens under the
// session's own lock so unrelated sessions never contend.
type Session struct {
	id           string
	createdAt    time.Time
	maxExchanges int
	now          Clock

	mu         sync.RWMutex
	exchanges  []Exchange
	lastUsedAt time.Time
}

// newSession creates an empty session. maxExchanges must be positive.
func newSession(id string, maxExchanges int, now Clock) *Session {
	ts := now()
	return &Session{
		id:           id,
		createdAt:    ts,
		lastUsedAt:   ts,
		maxExchanges: maxExchanges,
		now:          now,
		exchanges:    make([]Exchange, 0, maxExchanges),
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// MaxExchanges returns the retention bound of the session.
func (s *Session) MaxExchanges() int {
	return s.maxExchanges
}

// LastUsedAt returns the last time the session was accessed.
func (s *Session) LastUsedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsedAt
}

// Len returns the number of retained exchanges.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges)
}

// Exchanges returns a copy of the retained exchanges, oldest first.
func (s *Session) Exchanges() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]Exchange, len(s.exchanges))
	copy(copied, s.exchanges)
	return copied
}

// AddExchange appends a question/answer pair and returns the number of
// exchanges retained afterwards. When the bound is exceeded the oldest
// exchanges are dropped.
func (s *Session) AddExchange(question, answer string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	s.exchanges = append(s.exchanges, Exchange{
		Question:  question,
		Answer:    answer,
		CreatedAt: ts,
	})

	if overflow := len(s.exchanges) - s.maxExchanges; overflow > 0 {
		// Copy into a fresh slice so evicted entries are not pinned by the
		// backing array.
		kept := make([]Exchange, s.maxExchanges, s.maxExchanges+1)
		copy(kept, s.exchanges[overflow:])
		s.exchanges = kept
	}

	s.touchLocked(ts)
	return len(s.exchanges)
}

// RenderHistory serializes the transcript into prompt text: a "Human:" line
// followed by an "AI:" line per exchange, in conversational order.
func (s *Session) RenderHistory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.exchanges) == 0 {
		return ""
	}

	lines := make([]string, 0, 2*len(s.exchanges))
	for _, ex := range s.exchanges {
		lines = append(lines, "Human: "+ex.Question, "AI: "+ex.Answer)
	}
	return strings.Join(lines, "\n")
}

// Clear removes all exchanges. The identifier and creation time are kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges = make([]Exchange, 0, s.maxExchanges)
	s.touchLocked(s.now())
}

// touch records an access.
func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(s.now())
}

// idleSince reports how long the session has been idle at ts.
func (s *Session) idleSince(ts time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ts.Sub(s.lastUsedAt)
}

// touchLocked advances lastUsedAt; it never moves backwards even if the
// clock does. Callers must hold s.mu.
func (s *Session) touchLocked(ts time.Time) {
	if ts.After(s.lastUsedAt) {
		s.lastUsedAt = ts
	}
}
