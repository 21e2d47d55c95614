// Package session holds per-conversation state with an explicit lifecycle:
// created at session start, mutated by the orchestration pipeline, torn down
// on explicit end or inactivity timeout.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is the inactivity timeout after which a session expires.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxContext bounds how many recent slot values a session keeps
	// for anaphora resolution.
	DefaultMaxContext = 16

	// janitorInterval is how often expired sessions are swept.
	janitorInterval = 30 * time.Second
)

// Session is the per-conversation state.
type Session struct {
	// ID identifies the conversation.
	ID string
	// Context is a bounded mapping of recent slot values, used to resolve
	// anaphora ("it", "that file").
	Context map[string]any
	// LastIntent is the most recently submitted intent name.
	LastIntent string
	// ActivePlanID references the in-flight plan, if any.
	ActivePlanID string
	// LastActive is when the session was last touched.
	LastActive time.Time

	// contextOrder tracks insertion order for bounding Context.
	contextOrder []string
}

// Remember records a slot value in the conversation context, evicting the
// oldest slot when the bound is exceeded.
func (s *Session) Remember(slot string, value any, max int) {
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
	if _, exists := s.Context[slot]; !exists {
		s.contextOrder = append(s.contextOrder, slot)
	}
	s.Context[slot] = value

	if max <= 0 {
		max = DefaultMaxContext
	}
	for len(s.contextOrder) > max {
		oldest := s.contextOrder[0]
		s.contextOrder = s.contextOrder[1:]
		delete(s.Context, oldest)
	}
}

// clone returns a copy safe to read outside the store's locks.
func (s *Session) clone() *Session {
	out := &Session{
		ID:           s.ID,
		LastIntent:   s.LastIntent,
		ActivePlanID: s.ActivePlanID,
		LastActive:   s.LastActive,
	}
	if s.Context != nil {
		out.Context = make(map[string]any, len(s.Context))
		for k, v := range s.Context {
			out.Context[k] = v
		}
		out.contextOrder = append([]string(nil), s.contextOrder...)
	}
	return out
}

// entry pairs a session with its own mutex so mutation is serialized per
// session while other sessions proceed concurrently.
type entry struct {
	mu sync.Mutex
	s  *Session
}

// Store is the process-wide session collection keyed by session ID.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*entry
	ttl        time.Duration
	maxContext int
	logger     *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStore creates a Store and starts its expiry janitor.
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	st := &Store{
		sessions:   make(map[string]*entry),
		ttl:        ttl,
		maxContext: DefaultMaxContext,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go st.janitor()
	return st
}

// SetMaxContext adjusts the per-session context bound.
func (st *Store) SetMaxContext(n int) {
	if n > 0 {
		st.maxContext = n
	}
}

// MaxContext returns the per-session context bound.
func (st *Store) MaxContext() int {
	return st.maxContext
}

// Start creates the session if absent and returns a snapshot.
func (st *Store) Start(id string) *Session {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.LastActive = time.Now()
	return e.s.clone()
}

// Get returns a snapshot of the session, or nil if it does not exist.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.clone()
}

// Update applies the mutator under the session's lock, creating the session
// if needed. Mutation is serialized per session ID.
func (st *Store) Update(id string, fn func(*Session)) {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.s)
	e.s.LastActive = time.Now()
}

// End tears the session down explicitly.
func (st *Store) End(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Expire removes every session inactive longer than the TTL. It returns the
// number of sessions removed.
func (st *Store) Expire() int {
	cutoff := time.Now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, e := range st.sessions {
		e.mu.Lock()
		stale := e.s.LastActive.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		st.logger.Debug("expired sessions", zap.Int("count", removed))
	}
	return removed
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Close stops the janitor. Sessions are not persisted anywhere.
func (st *Store) Close() {
	st.stopOnce.Do(func() {
		close(st.stop)
		<-st.done
	})
}

// entryFor returns the session entry, creating it if needed.
func (st *Store) entryFor(id string) *entry {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return e
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok = st.sessions[id]; ok {
		return e
	}
	e = &entry{s: &Session{ID: id, LastActive: time.Now()}}
	st.sessions[id] = e
	st.logger.Debug("session started", zap.String("session_id", id))
	return e
}

// janitor sweeps expired sessions until Close.
func (st *Store) janitor() {
	defer close(st.done)
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.Expire()
		case <-st.stop:
			return
		}
	}
}
