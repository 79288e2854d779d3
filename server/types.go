package server

import (
	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/tool"
)

// RootResponse is the response body for GET /.
type RootResponse struct {
	Message string         `json:"message"`
	Version string         `json:"version"`
	Agents  []core.AgentID `json:"agents"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	AgentsInitialized bool   `json:"agents_initialized"`
}

// PoseRequest is the request body for POST /api/v1/pose/infer.
type PoseRequest struct {
	Frames       []string `json:"frames"`
	ExerciseType string   `json:"exercise_type"`
	SessionID    string   `json:"session_id,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
}

// NutritionRequest is the request body for POST /api/v1/food/estimate.
type NutritionRequest struct {
	Image     string            `json:"image"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	UserHints map[string]string `json:"user_hints,omitempty"`
}

// MindfulnessRequest is the request body for POST /api/v1/mind/short.
type MindfulnessRequest struct {
	Context        string               `json:"context"`
	SessionID      string               `json:"session_id,omitempty"`
	UserID         string               `json:"user_id,omitempty"`
	MoodHint       string               `json:"mood_hint,omitempty"`
	WorkoutSummary *core.WorkoutSummary `json:"workout_summary,omitempty"`
}

// ExecuteRequest is the request body for POST /api/v1/agents/:agent/execute.
type ExecuteRequest struct {
	Task      core.Task `json:"task"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
}

// MultiRequest is the request body for POST /api/v1/multi.
type MultiRequest struct {
	Requests  []core.Request `json:"requests"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Parallel  bool           `json:"parallel"`
}

// MultiResponse is the response body for POST /api/v1/multi.
type MultiResponse struct {
	SessionID string               `json:"session_id"`
	Responses []core.AgentResponse `json:"responses"`
}

// SummaryResponse combines the orchestration and memory views of a session.
// Either side is null when it has no record of the session.
type SummaryResponse struct {
	Orchestration *core.SessionSummary `json:"orchestration"`
	Memory        *core.MemorySummary  `json:"memory"`
}

// ToolsResponse is the response body for GET /api/v1/tools.
type ToolsResponse struct {
	Tools []tool.Info `json:"tools"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message string `json:"message"`
}
