package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/tool"
)

// BaseAgent bundles identity, one-shot initialization, execution accounting
// and tool ownership. Embed it in concrete agents and supply Execute to
// satisfy core.Agent. All exported methods are goroutine-safe.
type BaseAgent struct {
	name        core.AgentID
	description string
	tools       []tool.Tool
	initFn      func(ctx context.Context) error
	logger      logging.Logger

	initMu sync.Mutex

	mu            sync.Mutex
	initialized   bool
	executions    int64
	lastExecution *time.Time
	metadata      map[string]string
}

// NewBaseAgent constructs a BaseAgent. initFn runs once on the first
// successful Initialize and may be nil.
func NewBaseAgent(name core.AgentID, description string, initFn func(ctx context.Context) error, tools ...tool.Tool) *BaseAgent {
	return &BaseAgent{
		name:        name,
		description: description,
		tools:       tools,
		initFn:      initFn,
		logger:      logging.NoOpLogger{},
		metadata:    map[string]string{},
	}
}

// Name returns the agent identifier.
func (b *BaseAgent) Name() core.AgentID { return b.name }

// Description returns a human-readable description of the agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetLogger replaces the agent logger.
func (b *BaseAgent) SetLogger(l logging.Logger) { b.logger = logging.OrNoOp(l) }

// Logger returns the agent logger.
func (b *BaseAgent) Logger() logging.Logger { return b.logger }

// Initialize runs the init hook once. A failed hook leaves the agent
// uninitialized so a later call retries.
func (b *BaseAgent) Initialize(ctx context.Context) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if b.Initialized() {
		return nil
	}
	if b.initFn != nil {
		if err := b.initFn(ctx); err != nil {
			b.logger.Error("agent.initialize.failed", "agent", b.name, "error", err.Error())
			return fmt.Errorf("initialize %s: %w", b.name, err)
		}
	}
	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()
	b.logger.Info("agent.initialized", "agent", b.name)
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (b *BaseAgent) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// RecordExecution bumps the execution counter and timestamp.
func (b *BaseAgent) RecordExecution() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executions++
	b.lastExecution = &now
}

// SetMetadata stores an introspection key reported by State.
func (b *BaseAgent) SetMetadata(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metadata[key] = value
}

// Tools returns the tools owned by the agent.
func (b *BaseAgent) Tools() []tool.Tool {
	out := make([]tool.Tool, len(b.tools))
	copy(out, b.tools)
	return out
}

// ToolsUsed returns the names of the agent's tools.
func (b *BaseAgent) ToolsUsed() []string {
	names := make([]string, 0, len(b.tools))
	for _, t := range b.tools {
		names = append(names, t.Name())
	}
	return names
}

// State returns an introspection snapshot.
func (b *BaseAgent) State() core.AgentState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := core.AgentState{
		Name:           b.name,
		Description:    b.description,
		Initialized:    b.initialized,
		ExecutionCount: b.executions,
		AvailableTools: b.ToolsUsed(),
		Metadata:       make(map[string]string, len(b.metadata)),
	}
	if b.lastExecution != nil {
		t := *b.lastExecution
		st.LastExecution = &t
	}
	for k, v := range b.metadata {
		st.Metadata[k] = v
	}
	return st
}

// RegisterTools publishes the tools of every agent that exposes them into r,
// categorized by agent name.
func RegisterTools(r *tool.Registry, agents ...core.Agent) error {
	for _, a := range agents {
		owner, ok := a.(interface{ Tools() []tool.Tool })
		if !ok {
			continue
		}
		if err := r.Register(string(a.Name()), owner.Tools()...); err != nil {
			return err
		}
	}
	return nil
}
