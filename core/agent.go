package core

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// AgentID identifies a registered capability.
type AgentID string

const (
	// AgentPose analyzes exercise form from video frames.
	AgentPose AgentID = "pose"
	// AgentNutrition estimates nutrition from a food image.
	AgentNutrition AgentID = "nutrition"
	// AgentMindfulness produces coaching micro-lessons and breathing guides.
	AgentMindfulness AgentID = "mindfulness"
	// AgentCoordinator is reserved for a future routing agent and is never
	// registered by default.
	AgentCoordinator AgentID = "coordinator"
)

// Agent defines the capability contract every coachmesh agent implements.
//
// Agents receive a (possibly memory-enriched) Task and a read-only view of
// the session context. They must not mutate the session; the orchestrator is
// the only writer of session history and memory.
//
// Implementations must:
//   - Respect context cancellation
//   - Return an error instead of a partial Result on failure
//   - Make Initialize idempotent
type Agent interface {
	Name() AgentID
	Description() string
	Initialize(ctx context.Context) error
	Execute(ctx context.Context, task Task, sess *Session) (Result, error)
	ToolsUsed() []string
	State() AgentState
}

// AgentState is the introspection snapshot reported by ListAgents.
type AgentState struct {
	Name           AgentID           `json:"name"`
	Description    string            `json:"description"`
	Initialized    bool              `json:"initialized"`
	ExecutionCount int64             `json:"execution_count"`
	LastExecution  *time.Time        `json:"last_execution,omitempty"`
	AvailableTools []string          `json:"available_tools"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Registry is an immutable AgentID -> Agent mapping fixed at construction.
type Registry struct {
	agents map[AgentID]Agent
	ids    []AgentID
}

// NewRegistry builds a registry from the given agents. Two agents reporting
// the same Name yield ErrDuplicateAgent.
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{agents: make(map[AgentID]Agent, len(agents))}
	for _, a := range agents {
		if a == nil {
			continue
		}
		if _, exists := r.agents[a.Name()]; exists {
			return nil, fmt.Errorf("register %s: %w", a.Name(), ErrDuplicateAgent)
		}
		r.agents[a.Name()] = a
		r.ids = append(r.ids, a.Name())
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

// Get returns the agent registered under id.
func (r *Registry) Get(id AgentID) (Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []AgentID {
	out := make([]AgentID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Agents returns the registered agents ordered by identifier.
func (r *Registry) Agents() []Agent {
	out := make([]Agent, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.agents[id])
	}
	return out
}

// InitializeAll initializes every agent, stopping at the first failure.
func (r *Registry) InitializeAll(ctx context.Context) error {
	for _, id := range r.ids {
		if err := r.agents[id].Initialize(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", id, err)
		}
	}
	return nil
}
