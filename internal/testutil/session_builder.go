package testutil

import (
	"fmt"

	"github.com/hupe1980/coachmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User("u1").Responses(core.AgentPose, 3).Build()
type SessionBuilder struct {
	id       string
	userID   string
	history  []core.AgentResponse
	metadata map[string]string
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, metadata: map[string]string{}}
}

// User sets the owning user (chainable).
func (b *SessionBuilder) User(userID string) *SessionBuilder {
	b.userID = userID
	return b
}

// Metadata sets a metadata key (chainable).
func (b *SessionBuilder) Metadata(key, value string) *SessionBuilder {
	b.metadata[key] = value
	return b
}

// Response appends a single response to the history (chainable).
func (b *SessionBuilder) Response(r core.AgentResponse) *SessionBuilder {
	b.history = append(b.history, r)
	return b
}

// Responses appends n successful responses from agentID (chainable).
func (b *SessionBuilder) Responses(agentID core.AgentID, n int) *SessionBuilder {
	for i := 0; i < n; i++ {
		b.history = append(b.history, core.AgentResponse{
			AgentID:   agentID,
			Success:   true,
			Payload:   &core.Result{Extra: map[string]any{"n": fmt.Sprint(i)}},
			ToolsUsed: []string{},
		})
	}
	return b
}

// Build returns a *core.Session with the configured owner, history and metadata.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id, b.userID)
	for k, v := range b.metadata {
		s.SetMetadata(k, v)
	}
	for _, r := range b.history {
		s.AppendResponse(r)
	}
	return s
}
