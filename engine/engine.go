package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/guardrail"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/memory"
	"github.com/hupe1980/coachmesh/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used for orchestration spans.
const InstrumentationName = "github.com/hupe1980/coachmesh/engine"

// Config holds the operational parameters of the orchestrator.
type Config struct {
	// AgentTimeout bounds a single agent execution (step 5 of ExecuteAgent).
	// A timed-out call is converted into a failed response with reason
	// timeout. Zero disables the timeout.
	AgentTimeout time.Duration

	// MemoryContextLimit is the number of history entries retrieved from
	// memory and attached to each task.
	MemoryContextLimit int

	// MaxConcurrentInvocations bounds the fan-out of ExecuteMultiAgent in
	// parallel mode. Zero means unlimited.
	MaxConcurrentInvocations int
}

// DefaultConfig provides the production defaults.
var DefaultConfig = Config{
	AgentTimeout:             30 * time.Second,
	MemoryContextLimit:       memory.DefaultContextLimit,
	MaxConcurrentInvocations: 10,
}

// Options configures an Engine. Every unset dependency is replaced by its
// in-memory default.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// SessionStore holds per-session context and history.
	// Defaults to session.NewInMemoryStore().
	SessionStore core.SessionStore

	// MemoryStore persists interactions and serves memory context.
	// Defaults to memory.New().
	MemoryStore core.MemoryStore

	// Guardrail validates tasks and results.
	// Defaults to guardrail.New().
	Guardrail core.Guardrail

	// Logger defaults to a NoOpLogger.
	Logger logging.Logger

	// Metrics is optional; nil disables Prometheus instrumentation.
	Metrics *Metrics

	// Hooks observe lifecycle transitions of every ExecuteAgent call.
	Hooks *Hooks

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Engine is the orchestrator. It resolves session context, enriches tasks
// with memory, enforces guardrails around agent execution and records the
// outcome in memory and session history.
//
// The agent registry is fixed at construction and read without locking.
// Writes for one session are serialized through SessionStore.Commit, so
// history order and memory order agree for every session while different
// sessions proceed independently.
//
// Example:
//
//	reg, _ := core.NewRegistry(agent.NewPoseAgent(), agent.NewMindfulnessAgent())
//	e := engine.New(reg, func(o *engine.Options) {
//	    o.Logger = logger
//	})
//	resp := e.ExecuteAgent(ctx, core.AgentPose, task, "s1", "")
type Engine struct {
	registry  *core.Registry
	sessions  core.SessionStore
	memory    core.MemoryStore
	guardrail core.Guardrail
	logger    logging.Logger
	metrics   *Metrics
	hooks     *Hooks
	tracer    trace.Tracer
	config    Config
}

var _ core.Orchestrator = (*Engine)(nil)

// New creates an orchestrator over the given registry.
func New(registry *core.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if registry == nil {
		registry, _ = core.NewRegistry()
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.New()
	}
	if opts.Guardrail == nil {
		opts.Guardrail = guardrail.New()
	}
	if opts.Hooks == nil {
		opts.Hooks = NewHooks()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(InstrumentationName)
	}
	if opts.Config.MemoryContextLimit <= 0 {
		opts.Config.MemoryContextLimit = DefaultConfig.MemoryContextLimit
	}

	return &Engine{
		registry:  registry,
		sessions:  opts.SessionStore,
		memory:    opts.MemoryStore,
		guardrail: opts.Guardrail,
		logger:    logging.OrNoOp(opts.Logger),
		metrics:   opts.Metrics,
		hooks:     opts.Hooks,
		tracer:    opts.Tracer,
		config:    opts.Config,
	}
}

// Memory returns the memory store used by the engine.
func (e *Engine) Memory() core.MemoryStore { return e.memory }

// Sessions returns the session store used by the engine.
func (e *Engine) Sessions() core.SessionStore { return e.sessions }

// Hooks returns the lifecycle hook set so observers can be added after
// construction.
func (e *Engine) Hooks() *Hooks { return e.hooks }

// Config returns the operational parameters in effect.
func (e *Engine) Config() Config { return e.config }

// ExecuteAgent runs one agent through the full orchestration pipeline:
//
//  1. resolve or create the session context (first write wins on userID)
//  2. retrieve memory context for the session, user and agent
//  3. merge it into the task; caller-supplied fields win
//  4. pre-validate the enriched task; a rejection stops here
//  5. execute the agent under AgentTimeout with panic recovery
//  6. post-validate the result; sanitized payloads replace the original
//  7. persist the interaction to memory
//  8. append the response to the session history
//
// Steps 7 and 8 run under the session commit lock. Every failure is returned
// as a response with Success=false, a non-empty Error and a Reason code;
// nothing is persisted on a failure path.
func (e *Engine) ExecuteAgent(ctx context.Context, agentID core.AgentID, task core.Task, sessionID, userID string) (resp core.AgentResponse) {
	ctx, span := e.tracer.Start(ctx, "coachmesh.execute_agent", trace.WithAttributes(
		attribute.String("coachmesh.agent", string(agentID)),
		attribute.String("coachmesh.session_id", sessionID),
		attribute.Bool("coachmesh.has_user", userID != ""),
	))
	start := time.Now()
	lc := newLifecycle(e.hooks, e.logger, agentID, sessionID, userID)

	defer func() {
		e.metrics.observe(resp)
		span.SetAttributes(
			attribute.Bool("coachmesh.success", resp.Success),
			attribute.Float64("coachmesh.execution_seconds", resp.ExecutionTimeSeconds()),
		)
		if !resp.Success {
			span.SetAttributes(attribute.String("coachmesh.reason", string(resp.Reason)))
			span.SetStatus(codes.Error, resp.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	fail := func(to State, reason core.ReasonCode, msg string) core.AgentResponse {
		lc.end(ctx, to, reason, msg)
		return core.FailedResponse(agentID, reason, msg, time.Since(start))
	}

	a, ok := e.registry.Get(agentID)
	if !ok {
		lc.end(ctx, StateFailed, core.ReasonAgentNotFound, core.ErrAgentNotFound.Error())
		return core.FailedResponse(agentID, core.ReasonAgentNotFound, core.ErrAgentNotFound.Error(), 0)
	}

	// 1. session context
	sess := e.sessions.GetOrCreate(sessionID, userID)
	lc.advance(ctx, StateContextResolved)

	// 2. memory context
	mc, err := e.memory.GetContext(ctx, sessionID, userID, agentID, e.config.MemoryContextLimit)
	if err != nil {
		e.logger.Warn("memory context unavailable", "agent", agentID, "session_id", sessionID, "error", err)
		mc = core.MemoryContext{}
	}
	lc.advance(ctx, StateMemoryLoaded)

	// 3. merge
	enriched := mergeTask(task, mc)

	// 4. pre-validation
	verdict := e.guardrail.Validate(ctx, agentID, enriched, sess)
	lc.advance(ctx, StateGuardrailChecked)
	if !verdict.Allowed {
		e.metrics.rejected(PhaseInput)
		return fail(StateRejected, core.ReasonGuardrailRejected, "guardrail violation: "+verdict.Reason)
	}

	// 5. execution
	result, reason, err := e.invoke(ctx, a, enriched, sess)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("agent execution failed", "agent", agentID, "session_id", sessionID, "reason", reason, "error", err)
		return fail(StateFailed, reason, err.Error())
	}
	lc.advance(ctx, StateAgentExecuted)

	// 6. post-validation
	out := e.guardrail.ValidateOutput(ctx, agentID, result, sess)
	if !out.Allowed {
		e.metrics.rejected(PhaseOutput)
		return fail(StateRejected, core.ReasonOutputBlocked, "output blocked: "+out.Reason)
	}
	metadata := map[string]string{}
	if out.Sanitized != nil {
		result = *out.Sanitized
		metadata["guardrail"] = out.Reason
		e.metrics.sanitized(agentID)
	}
	lc.advance(ctx, StateOutputValidated)

	resp = core.AgentResponse{
		AgentID:   agentID,
		Success:   true,
		Payload:   &result,
		ToolsUsed: a.ToolsUsed(),
	}

	// 7 + 8. persistence and history append
	if err := e.commit(ctx, sessionID, userID, agentID, enriched, &resp, metadata, start); err != nil {
		span.RecordError(err)
		e.logger.Error("persist interaction failed", "agent", agentID, "session_id", sessionID, "error", err)
		return fail(StateFailed, core.ReasonPersistFailed, err.Error())
	}
	lc.advance(ctx, StatePersisted)

	lc.advance(ctx, StateComplete)
	return resp
}

// commit stores the interaction and appends the response while holding the
// session commit lock. A session evicted between resolution and commit is
// recreated once.
func (e *Engine) commit(ctx context.Context, sessionID, userID string, agentID core.AgentID, task core.Task, resp *core.AgentResponse, metadata map[string]string, start time.Time) error {
	fn := func(s *core.Session) error {
		if err := e.memory.StoreInteraction(ctx, sessionID, userID, agentID, task.WithoutMemory(), *resp.Payload, metadata); err != nil {
			return fmt.Errorf("store interaction: %w", err)
		}
		resp.ExecutionTime = time.Since(start)
		resp.Timestamp = time.Now()
		s.AppendResponse(*resp)
		return nil
	}

	err := e.sessions.Commit(sessionID, fn)
	if errors.Is(err, core.ErrSessionNotFound) {
		e.logger.Warn("session evicted during execution, recreating", "session_id", sessionID)
		e.sessions.GetOrCreate(sessionID, userID)
		err = e.sessions.Commit(sessionID, fn)
	}
	return err
}

type execution struct {
	result core.Result
	err    error
}

// invoke initializes and executes the agent under the configured timeout.
// Panics are recovered and reported as errors. The returned reason code is
// meaningful only when err is non-nil.
func (e *Engine) invoke(ctx context.Context, a core.Agent, task core.Task, sess *core.Session) (core.Result, core.ReasonCode, error) {
	if e.config.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.AgentTimeout)
		defer cancel()
	}

	done := make(chan execution, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execution{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()

		if err := a.Initialize(ctx); err != nil {
			done <- execution{err: fmt.Errorf("initialize %s: %w", a.Name(), err)}
			return
		}
		res, err := a.Execute(ctx, task, sess)
		done <- execution{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return core.Result{}, core.ReasonTimeout, out.err
			}
			return core.Result{}, core.ReasonAgentFailed, out.err
		}
		if out.result.IsZero() {
			return core.Result{}, core.ReasonAgentFailed, fmt.Errorf("agent %s returned an empty result", a.Name())
		}
		return out.result, core.ReasonNone, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return core.Result{}, core.ReasonTimeout, fmt.Errorf("agent %s timed out after %s", a.Name(), e.timeoutLabel())
		}
		return core.Result{}, core.ReasonAgentFailed, fmt.Errorf("agent %s: %w", a.Name(), ctx.Err())
	}
}

func (e *Engine) timeoutLabel() string {
	if e.config.AgentTimeout > 0 {
		return e.config.AgentTimeout.String()
	}
	return "caller deadline"
}

// mergeTask overlays the caller task on the retrieved memory context. A
// caller-supplied memory context is kept as is.
func mergeTask(task core.Task, mc core.MemoryContext) core.Task {
	out := task.Clone()
	if out.Memory == nil {
		out.Memory = &mc
	}
	return out
}

// ExecuteMultiAgent runs a batch of requests against one session.
//
// Sequential mode runs the requests strictly in order, each one complete
// (including its memory write) before the next begins. Parallel mode runs
// them concurrently, bounded by MaxConcurrentInvocations. In both modes the
// i-th response belongs to the i-th request and a failure never aborts the
// rest of the batch.
func (e *Engine) ExecuteMultiAgent(ctx context.Context, requests []core.Request, sessionID, userID string, parallel bool) []core.AgentResponse {
	responses := make([]core.AgentResponse, len(requests))

	if !parallel {
		for i, req := range requests {
			responses[i] = e.ExecuteAgent(ctx, req.AgentID, req.Task, sessionID, userID)
		}
		return responses
	}

	var sem chan struct{}
	if e.config.MaxConcurrentInvocations > 0 {
		sem = make(chan struct{}, e.config.MaxConcurrentInvocations)
	}

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req core.Request) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					reason := core.ReasonAgentFailed
					if errors.Is(ctx.Err(), context.DeadlineExceeded) {
						reason = core.ReasonTimeout
					}
					responses[i] = core.FailedResponse(req.AgentID, reason, ctx.Err().Error(), 0)
					return
				}
			}

			responses[i] = e.ExecuteAgent(ctx, req.AgentID, req.Task, sessionID, userID)
		}(i, req)
	}
	wg.Wait()

	return responses
}

// OrchestrateWorkoutSession runs pose analysis and, when the set is complete,
// post-workout mindfulness coaching seeded with the pose summary. A failed or
// untriggered coaching step leaves MindfulnessCoaching nil.
func (e *Engine) OrchestrateWorkoutSession(ctx context.Context, sessionID string, frames []string, exerciseType, userID string) core.WorkoutOutcome {
	pose := e.ExecuteAgent(ctx, core.AgentPose, core.Task{
		Pose: &core.PoseTask{
			Frames:       frames,
			ExerciseType: exerciseType,
			Mode:         core.PoseModeRealTime,
		},
	}, sessionID, userID)

	outcome := core.WorkoutOutcome{PoseAnalysis: pose, SessionID: sessionID}

	if pose.Success && pose.Payload != nil && pose.Payload.Pose != nil && pose.Payload.Pose.WorkoutComplete {
		summary := pose.Payload.Pose.Summary.Clone()
		coaching := e.ExecuteAgent(ctx, core.AgentMindfulness, core.Task{
			Mindfulness: &core.MindfulnessTask{
				Context:        core.ContextPostWorkout,
				WorkoutSummary: &summary,
			},
		}, sessionID, userID)
		if coaching.Success {
			outcome.MindfulnessCoaching = &coaching
		} else {
			e.logger.Warn("post-workout coaching failed", "session_id", sessionID, "reason", coaching.Reason, "error", coaching.Error)
		}
	}

	outcome.Timestamp = time.Now()
	return outcome
}

// OrchestrateNutritionAnalysis runs the nutrition agent on a single image.
func (e *Engine) OrchestrateNutritionAnalysis(ctx context.Context, sessionID, image string, hints map[string]string, userID string) core.NutritionOutcome {
	resp := e.ExecuteAgent(ctx, core.AgentNutrition, core.Task{
		Nutrition: &core.NutritionTask{
			Image:     image,
			Mode:      core.NutritionModeEstimate,
			UserHints: hints,
		},
	}, sessionID, userID)

	return core.NutritionOutcome{Nutrition: resp, SessionID: sessionID, Timestamp: time.Now()}
}

// SessionSummary reports the orchestration view of a session, computed from
// its live history.
func (e *Engine) SessionSummary(_ context.Context, sessionID string) (core.SessionSummary, error) {
	sess, ok := e.sessions.Get(sessionID)
	if !ok {
		return core.SessionSummary{}, fmt.Errorf("session %s: %w", sessionID, core.ErrSessionNotFound)
	}

	history := sess.Responses()
	seen := make(map[core.AgentID]struct{}, len(history))
	var total time.Duration
	for _, r := range history {
		seen[r.AgentID] = struct{}{}
		total += r.ExecutionTime
	}

	agents := make([]core.AgentID, 0, len(seen))
	for id := range seen {
		agents = append(agents, id)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i] < agents[j] })

	clone := sess.Clone()
	return core.SessionSummary{
		SessionID:          sessionID,
		UserID:             clone.UserID,
		StartTime:          clone.Created,
		AgentExecutions:    len(history),
		AgentsUsed:         agents,
		TotalExecutionTime: total.Seconds(),
	}, nil
}

// ListAgents returns the state of every registered agent.
func (e *Engine) ListAgents() map[core.AgentID]core.AgentState {
	out := make(map[core.AgentID]core.AgentState)
	for _, a := range e.registry.Agents() {
		out[a.Name()] = a.State()
	}
	return out
}

// AgentIDs returns the registered agent identifiers in sorted order.
func (e *Engine) AgentIDs() []core.AgentID {
	return e.registry.IDs()
}

// Initialize initializes every registered agent.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.registry.InitializeAll(ctx); err != nil {
		return err
	}
	ids := make([]string, 0)
	for _, id := range e.registry.IDs() {
		ids = append(ids, string(id))
	}
	e.logger.Info("agents initialized", "agents", strings.Join(ids, ","))
	return nil
}
