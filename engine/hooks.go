package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
)

// State is a point in the lifecycle of a single ExecuteAgent call.
//
// A successful call walks
//
//	PENDING → CONTEXT_RESOLVED → MEMORY_LOADED → GUARDRAIL_CHECKED →
//	AGENT_EXECUTED → OUTPUT_VALIDATED → PERSISTED → COMPLETE
//
// A call rejected by pre-validation or blocked by post-validation ends in
// REJECTED. A call whose agent is unknown, fails, panics or times out, or
// whose interaction cannot be persisted, ends in FAILED. Terminal states never transition further.
type State string

const (
	StatePending          State = "PENDING"
	StateContextResolved  State = "CONTEXT_RESOLVED"
	StateMemoryLoaded     State = "MEMORY_LOADED"
	StateGuardrailChecked State = "GUARDRAIL_CHECKED"
	StateRejected         State = "REJECTED"
	StateAgentExecuted    State = "AGENT_EXECUTED"
	StateOutputValidated  State = "OUTPUT_VALIDATED"
	StatePersisted        State = "PERSISTED"
	StateComplete         State = "COMPLETE"
	StateFailed           State = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateRejected || s == StateFailed
}

// transitions lists the legal successors of every non-terminal state.
var transitions = map[State][]State{
	StatePending:          {StateContextResolved, StateFailed},
	StateContextResolved:  {StateMemoryLoaded},
	StateMemoryLoaded:     {StateGuardrailChecked},
	StateGuardrailChecked: {StateAgentExecuted, StateRejected, StateFailed},
	StateAgentExecuted:    {StateOutputValidated, StateRejected},
	StateOutputValidated:  {StatePersisted, StateFailed},
	StatePersisted:        {StateComplete},
}

// CanTransition reports whether the lifecycle allows moving from one state to
// another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition describes one lifecycle step observed by hooks.
type Transition struct {
	AgentID   core.AgentID
	SessionID string
	UserID    string
	From      State
	To        State
	// Reason is set when the call ends in REJECTED or FAILED.
	Reason core.ReasonCode
	// Detail carries the failure or rejection message, if any.
	Detail string
}

// Hook observes lifecycle transitions. Hooks run synchronously on the
// calling goroutine and cannot alter the outcome of the call.
type Hook interface {
	OnTransition(ctx context.Context, t Transition)
}

// HookFunc adapts a function to the Hook interface.
//
// Example:
//
//	hooks.Register(engine.HookFunc(func(ctx context.Context, t engine.Transition) {
//	    if t.To == engine.StateRejected {
//	        alert(t.AgentID, t.Detail)
//	    }
//	}))
type HookFunc func(ctx context.Context, t Transition)

// OnTransition calls f.
func (f HookFunc) OnTransition(ctx context.Context, t Transition) { f(ctx, t) }

// Hooks is an ordered set of lifecycle observers. Registration and dispatch
// are safe for concurrent use.
type Hooks struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewHooks creates an empty hook set, optionally seeded with hooks.
func NewHooks(hooks ...Hook) *Hooks {
	return &Hooks{hooks: append([]Hook(nil), hooks...)}
}

// Register appends a hook. Hooks fire in registration order.
func (h *Hooks) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hooks)
}

func (h *Hooks) fire(ctx context.Context, t Transition) {
	if h == nil {
		return
	}
	h.mu.RLock()
	hooks := h.hooks
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.OnTransition(ctx, t)
	}
}

// LoggingHook logs every transition at debug level and terminal failures at
// warn level.
func LoggingHook(logger logging.Logger) Hook {
	logger = logging.OrNoOp(logger)
	return HookFunc(func(_ context.Context, t Transition) {
		if t.To == StateRejected || t.To == StateFailed {
			logger.Warn("agent call ended", "agent", t.AgentID, "session_id", t.SessionID, "state", t.To, "reason", t.Reason, "detail", t.Detail)
			return
		}
		logger.Debug("lifecycle transition", "agent", t.AgentID, "session_id", t.SessionID, "from", t.From, "to", t.To)
	})
}

// lifecycle tracks the state of one call and reports each step to the hooks.
type lifecycle struct {
	hooks  *Hooks
	logger logging.Logger
	base   Transition
	state  State
}

func newLifecycle(hooks *Hooks, logger logging.Logger, agentID core.AgentID, sessionID, userID string) *lifecycle {
	return &lifecycle{
		hooks:  hooks,
		logger: logger,
		base:   Transition{AgentID: agentID, SessionID: sessionID, UserID: userID},
		state:  StatePending,
	}
}

func (l *lifecycle) advance(ctx context.Context, to State) {
	l.move(ctx, to, core.ReasonNone, "")
}

func (l *lifecycle) end(ctx context.Context, to State, reason core.ReasonCode, detail string) {
	l.move(ctx, to, reason, detail)
}

func (l *lifecycle) move(ctx context.Context, to State, reason core.ReasonCode, detail string) {
	if !CanTransition(l.state, to) {
		l.logger.Error("illegal lifecycle transition", "agent", l.base.AgentID, "from", l.state, "to", to)
		return
	}
	t := l.base
	t.From, t.To, t.Reason, t.Detail = l.state, to, reason, detail
	l.state = to
	l.hooks.fire(ctx, t)
}
