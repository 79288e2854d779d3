package core

import (
	"context"
	"time"
)

// Request names one agent call inside a multi-agent batch.
type Request struct {
	AgentID AgentID `json:"agent"`
	Task    Task    `json:"task"`
}

// SessionSummary is the orchestration view of a session, derived from its
// live history.
type SessionSummary struct {
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id,omitempty"`
	StartTime          time.Time `json:"start_time"`
	AgentExecutions    int       `json:"agent_executions"`
	AgentsUsed         []AgentID `json:"agents_used"`
	TotalExecutionTime float64   `json:"total_execution_time"`
}

// WorkoutOutcome is the result of the workout workflow. MindfulnessCoaching
// is nil unless pose analysis succeeded and the workout was complete.
type WorkoutOutcome struct {
	PoseAnalysis        AgentResponse  `json:"pose_analysis"`
	MindfulnessCoaching *AgentResponse `json:"mindfulness_coaching,omitempty"`
	SessionID           string         `json:"session_id"`
	Timestamp           time.Time      `json:"timestamp"`
}

// NutritionOutcome is the result of the nutrition workflow.
type NutritionOutcome struct {
	Nutrition AgentResponse `json:"nutrition"`
	SessionID string        `json:"session_id"`
	Timestamp time.Time     `json:"timestamp"`
}

// Orchestrator is the single entry point coordinating agents, memory and
// guardrails.
//
// ExecuteAgent never returns an error: every failure is reported through
// AgentResponse.Success and AgentResponse.Error. ExecuteMultiAgent returns
// one response per request in request order regardless of the parallel flag.
type Orchestrator interface {
	ExecuteAgent(ctx context.Context, agentID AgentID, task Task, sessionID, userID string) AgentResponse
	ExecuteMultiAgent(ctx context.Context, requests []Request, sessionID, userID string, parallel bool) []AgentResponse
	OrchestrateWorkoutSession(ctx context.Context, sessionID string, frames []string, exerciseType, userID string) WorkoutOutcome
	OrchestrateNutritionAnalysis(ctx context.Context, sessionID, image string, hints map[string]string, userID string) NutritionOutcome
	SessionSummary(ctx context.Context, sessionID string) (SessionSummary, error)
	ListAgents() map[AgentID]AgentState
}
