package core

import (
	"sync"
	"time"
)

// Session is the per-session context held by the orchestrator. It records
// the owning user and an append-only history of successful responses. It is
// safe for concurrent access.
//
// Contract:
//   - UserID is set once at creation and never changes
//   - History only grows; Responses returns a defensive copy
//   - Touch and AppendResponse update the Updated timestamp used for idle eviction
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	ID       string            `json:"id"`
	UserID   string            `json:"user_id,omitempty"`
	History  []AgentResponse   `json:"history"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates a new session with the given ID and owning user.
func NewSession(id, userID string) *Session {
	now := time.Now()
	return &Session{ID: id, UserID: userID, History: []AgentResponse{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// Owner returns the user the session was created for.
func (s *Session) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

// AppendResponse appends a response to the history.
func (s *Session) AppendResponse(r AgentResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, r)
	s.Updated = time.Now()
}

// Responses returns a defensive copy of the history.
func (s *Session) Responses() []AgentResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentResponse, len(s.History))
	copy(out, s.History)
	return out
}

// HistoryLen returns the number of recorded responses.
func (s *Session) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.History)
}

// Touch marks the session as used.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updated = time.Now()
}

// LastUpdated returns the last time the session was used.
func (s *Session) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Updated
}

// SetMetadata sets a metadata key.
func (s *Session) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, UserID: s.UserID, History: make([]AgentResponse, len(s.History)), Created: s.Created, Updated: s.Updated, Metadata: make(map[string]string, len(s.Metadata))}
	copy(clone.History, s.History)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore holds session contexts keyed by session id.
//
// GetOrCreate creates the session lazily on first reference; the userID is
// recorded only at creation (first write wins). Commit runs fn while holding
// the per-session commit lock so that persistence and history appends for a
// session never interleave. Commits for different sessions do not contend.
type SessionStore interface {
	GetOrCreate(id, userID string) *Session
	Get(id string) (*Session, bool)
	Commit(id string, fn func(*Session) error) error
	Delete(id string)
	Len() int
}
