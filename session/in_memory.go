package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
)

// DefaultIdleTimeout is the idle period after which Sweep evicts a session.
const DefaultIdleTimeout = 30 * time.Minute

// Options configures an InMemoryStore.
type Options struct {
	// IdleTimeout evicts sessions not updated for this long. Zero disables
	// eviction.
	IdleTimeout time.Duration
	// OnEvict is called for every session removed by Sweep.
	OnEvict func(id string)
	Logger  logging.Logger
}

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access.
//
// The map lock is held only for lookup and insert. Each session carries its
// own commit mutex so that commits for different sessions never contend.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*slot
	opts     Options
	logger   logging.Logger
}

type slot struct {
	commit sync.Mutex
	sess   *core.Session
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{IdleTimeout: DefaultIdleTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		sessions: make(map[string]*slot),
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// GetOrCreate returns the live session for id, creating it on first
// reference. userID is recorded only when the session is created.
func (s *InMemoryStore) GetOrCreate(id, userID string) *core.Session {
	s.mu.RLock()
	sl, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sl.sess.Touch()
		return sl.sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.sessions[id]; ok {
		sl.sess.Touch()
		return sl.sess
	}
	sess := core.NewSession(id, userID)
	s.sessions[id] = &slot{sess: sess}
	s.logger.Debug("session.created", "session_id", id, "user_id", userID)
	return sess
}

// Get returns the live session for id without creating it.
func (s *InMemoryStore) Get(id string) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sl.sess, true
}

// Commit runs fn under the session's commit lock.
func (s *InMemoryStore) Commit(id string, fn func(*core.Session) error) error {
	s.mu.RLock()
	sl, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("commit %s: %w", id, core.ErrSessionNotFound)
	}
	sl.commit.Lock()
	defer sl.commit.Unlock()
	return fn(sl.sess)
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *InMemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than IdleTimeout as of now and
// returns how many were removed. Sessions with a commit in flight are kept.
func (s *InMemoryStore) Sweep(now time.Time) int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-s.opts.IdleTimeout)

	s.mu.Lock()
	var evicted []string
	for id, sl := range s.sessions {
		if !sl.sess.LastUpdated().Before(cutoff) {
			continue
		}
		if !sl.commit.TryLock() {
			continue
		}
		delete(s.sessions, id)
		sl.commit.Unlock()
		evicted = append(evicted, id)
	}
	s.mu.Unlock()

	for _, id := range evicted {
		s.logger.Debug("session.evicted", "session_id", id)
		if s.opts.OnEvict != nil {
			s.opts.OnEvict(id)
		}
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is cancelled.
func (s *InMemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.opts.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.logger.Info("session.sweep", "evicted", n, "remaining", s.Len())
			}
		}
	}
}
