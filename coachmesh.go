// Package coachmesh provides a high-level façade over the orchestrator and
// its services (sessions, memory, guardrails and logging) for building an
// AI fitness coach. Most applications interact with this package by:
//  1. Creating a CoachMesh via New() (optionally overriding the in-memory services)
//  2. Calling Initialize once at startup
//  3. Running workflows (OrchestrateWorkoutSession, OrchestrateNutritionAnalysis)
//     or single agents (ExecuteAgent, ExecuteMultiAgent)
//
// The façade delegates orchestration to engine.Engine and wires the three
// built-in agents (pose, nutrition, mindfulness) plus their tools. All
// defaults are safe for local development and testing; production
// deployments typically supply a journaled memory store, a zap logger and
// Prometheus metrics.
package coachmesh

import (
	"context"
	"fmt"

	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/engine"
	"github.com/hupe1980/coachmesh/guardrail"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/memory"
	"github.com/hupe1980/coachmesh/session"
	"github.com/hupe1980/coachmesh/tool"
)

// Options configures the CoachMesh instance.
type Options struct {
	// Engine configuration (timeout, memory limit, fan-out bound).
	EngineConfig engine.Config

	// Stores and policy (defaults to in-memory implementations if not provided).
	SessionStore core.SessionStore
	MemoryStore  core.MemoryStore
	Guardrail    core.Guardrail

	// Metrics enables Prometheus instrumentation when set.
	Metrics *engine.Metrics

	// Hooks observe the lifecycle of every agent call.
	Hooks *engine.Hooks

	// Per-agent options for the built-in agents.
	PoseOptions        []func(o *agent.PoseOptions)
	NutritionOptions   []func(o *agent.NutritionOptions)
	MindfulnessOptions []func(o *agent.MindfulnessOptions)

	// ExtraAgents are registered next to the built-in agents.
	ExtraAgents []core.Agent

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// CoachMesh is the high-level façade aggregating the orchestrator, the
// built-in agents and their tool registry.
type CoachMesh struct {
	opts   Options
	engine *engine.Engine
	tools  *tool.Registry
}

var _ core.Orchestrator = (*CoachMesh)(nil)

// New creates a CoachMesh with the built-in agents. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*CoachMesh, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(func(o *session.Options) { o.Logger = logger })
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.New(func(o *memory.Options) { o.Logger = logger })
	}
	if opts.Guardrail == nil {
		opts.Guardrail = guardrail.New(func(o *guardrail.Options) { o.Logger = logger })
	}

	pose := agent.NewPoseAgent(append([]func(o *agent.PoseOptions){func(o *agent.PoseOptions) { o.Logger = logger }}, opts.PoseOptions...)...)
	nutrition := agent.NewNutritionAgent(append([]func(o *agent.NutritionOptions){func(o *agent.NutritionOptions) { o.Logger = logger }}, opts.NutritionOptions...)...)
	mindfulness := agent.NewMindfulnessAgent(append([]func(o *agent.MindfulnessOptions){func(o *agent.MindfulnessOptions) { o.Logger = logger }}, opts.MindfulnessOptions...)...)

	agents := append([]core.Agent{pose, nutrition, mindfulness}, opts.ExtraAgents...)

	registry, err := core.NewRegistry(agents...)
	if err != nil {
		return nil, fmt.Errorf("build agent registry: %w", err)
	}

	tools := tool.NewRegistry()
	if err := agent.RegisterTools(tools, agents...); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	e := engine.New(registry, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.MemoryStore = opts.MemoryStore
		o.Guardrail = opts.Guardrail
		o.Metrics = opts.Metrics
		o.Hooks = opts.Hooks
		o.Logger = logger
	})

	return &CoachMesh{opts: opts, engine: e, tools: tools}, nil
}

// Engine returns the underlying orchestrator.
func (m *CoachMesh) Engine() *engine.Engine { return m.engine }

// Tools returns the registry of every agent tool.
func (m *CoachMesh) Tools() *tool.Registry { return m.tools }

// Memory returns the memory store.
func (m *CoachMesh) Memory() core.MemoryStore { return m.engine.Memory() }

// Sessions returns the session store.
func (m *CoachMesh) Sessions() core.SessionStore { return m.engine.Sessions() }

// Initialize initializes every registered agent.
func (m *CoachMesh) Initialize(ctx context.Context) error { return m.engine.Initialize(ctx) }

// ExecuteAgent runs a single agent call through the orchestration pipeline.
func (m *CoachMesh) ExecuteAgent(ctx context.Context, agentID core.AgentID, task core.Task, sessionID, userID string) core.AgentResponse {
	return m.engine.ExecuteAgent(ctx, agentID, task, sessionID, userID)
}

// ExecuteMultiAgent runs a batch of agent calls against one session.
func (m *CoachMesh) ExecuteMultiAgent(ctx context.Context, requests []core.Request, sessionID, userID string, parallel bool) []core.AgentResponse {
	return m.engine.ExecuteMultiAgent(ctx, requests, sessionID, userID, parallel)
}

// OrchestrateWorkoutSession runs pose analysis followed by post-workout coaching.
func (m *CoachMesh) OrchestrateWorkoutSession(ctx context.Context, sessionID string, frames []string, exerciseType, userID string) core.WorkoutOutcome {
	return m.engine.OrchestrateWorkoutSession(ctx, sessionID, frames, exerciseType, userID)
}

// OrchestrateNutritionAnalysis runs the nutrition agent on one image.
func (m *CoachMesh) OrchestrateNutritionAnalysis(ctx context.Context, sessionID, image string, hints map[string]string, userID string) core.NutritionOutcome {
	return m.engine.OrchestrateNutritionAnalysis(ctx, sessionID, image, hints, userID)
}

// SessionSummary reports the orchestration view of a session.
func (m *CoachMesh) SessionSummary(ctx context.Context, sessionID string) (core.SessionSummary, error) {
	return m.engine.SessionSummary(ctx, sessionID)
}

// ListAgents returns the state of every registered agent.
func (m *CoachMesh) ListAgents() map[core.AgentID]core.AgentState {
	return m.engine.ListAgents()
}
