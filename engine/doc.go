// Package engine implements the coachmesh orchestrator.
//
// The Engine is the single entry point that coordinates the registered
// agents with the session context store, the memory manager and the
// guardrail validator. It implements core.Orchestrator.
//
// # Execution pipeline
//
// Every ExecuteAgent call walks the same eight steps in order:
//
//	resolve session → load memory → merge task → pre-validate →
//	execute agent → post-validate → persist memory → append history
//
// Failures never escape as errors or panics. Each one is reported through
// core.AgentResponse with Success=false and a ReasonCode:
//
//   - agent_not_found: the agent is not registered; no side effects
//   - guardrail_rejected: pre-validation rejected the task; the agent is not called
//   - agent_failed: the agent returned an error or panicked
//   - timeout: the agent exceeded Config.AgentTimeout
//   - output_blocked: post-validation rejected the result; nothing is released
//   - persist_failed: the interaction could not be stored
//
// Nothing is persisted on a failure path.
//
// # Concurrency
//
// Persistence and history appends for one session run under the session's
// commit lock, so memory order and history order agree. Different sessions
// never contend. ExecuteMultiAgent in parallel mode fans out under a
// semaphore of Config.MaxConcurrentInvocations and gathers results by input
// index.
//
// # Workflows
//
// OrchestrateWorkoutSession runs pose analysis and, only when the pose agent
// reports a complete set, post-workout mindfulness coaching seeded with the
// pose summary. OrchestrateNutritionAnalysis wraps a single nutrition call.
//
// # Observability
//
// Each call opens an OpenTelemetry span named coachmesh.execute_agent.
// Optional Prometheus collectors (see Metrics) count executions, guardrail
// rejections and sanitizations. Hooks observe the lifecycle transitions:
//
//	PENDING → CONTEXT_RESOLVED → MEMORY_LOADED → GUARDRAIL_CHECKED →
//	{REJECTED | AGENT_EXECUTED} → OUTPUT_VALIDATED → PERSISTED → COMPLETE
//
// Example:
//
//	reg, err := core.NewRegistry(agent.NewPoseAgent(), agent.NewNutritionAgent(), agent.NewMindfulnessAgent())
//	if err != nil {
//	    return err
//	}
//	e := engine.New(reg, func(o *engine.Options) {
//	    o.Logger = logger
//	    o.Metrics = engine.NewMetrics(prometheus.NewRegistry())
//	})
//	outcome := e.OrchestrateWorkoutSession(ctx, "s1", frames, "squat", "u1")
package engine
