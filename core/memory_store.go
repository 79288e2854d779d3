package core

import (
	"context"
	"time"
)

// MemoryEntry is one recorded interaction. Entries are immutable once stored.
type MemoryEntry struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id,omitempty"`
	AgentID   AgentID           `json:"agent"`
	Task      Task              `json:"task"`
	Result    Result            `json:"result"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// HistoryItem is the projection of an entry returned in a MemoryContext.
type HistoryItem struct {
	AgentID   AgentID   `json:"agent"`
	Task      Task      `json:"task"`
	Result    Result    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Item projects the entry into a HistoryItem.
func (e MemoryEntry) Item() HistoryItem {
	return HistoryItem{AgentID: e.AgentID, Task: e.Task, Result: e.Result, Timestamp: e.Timestamp}
}

// Preferences are derived from a user's history on every read.
type Preferences struct {
	FavoriteExercises []string `json:"favorite_exercises"`
	CommonMoods       []string `json:"common_moods"`
}

// ScorePoint is one sample of the form score trend.
type ScorePoint struct {
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// PatternSummary aggregates per-agent usage patterns.
type PatternSummary struct {
	ExerciseFrequency map[string]int `json:"exercise_frequency,omitempty"`
	FormScoreTrend    []ScorePoint   `json:"form_score_trend,omitempty"`
}

// MemoryContext is the retrieved memory handed to agents in Task.Memory.
// UserHistory is nil when no user is known.
type MemoryContext struct {
	SessionHistory  []HistoryItem  `json:"session_history"`
	UserPreferences Preferences    `json:"user_preferences"`
	UserHistory     []HistoryItem  `json:"user_history,omitempty"`
	Patterns        PatternSummary `json:"patterns"`
}

// MemorySummary is the memory view of a session.
type MemorySummary struct {
	SessionID         string        `json:"session_id"`
	TotalInteractions int           `json:"total_interactions"`
	AgentsUsed        []AgentID     `json:"agents_used"`
	Duration          time.Duration `json:"-"`
	DurationSeconds   float64       `json:"duration_seconds"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
}

// MemoryStore persists interactions and serves retrieved context.
//
// An empty userID means "no user"; an empty agentID means "no agent filter".
// GetContext treats limit <= 0 as the default limit. ClearSession and
// ClearUserMemory are idempotent.
type MemoryStore interface {
	StoreInteraction(ctx context.Context, sessionID, userID string, agentID AgentID, task Task, result Result, metadata map[string]string) error
	GetContext(ctx context.Context, sessionID, userID string, agentID AgentID, limit int) (MemoryContext, error)
	SessionSummary(ctx context.Context, sessionID string) (MemorySummary, error)
	ClearSession(ctx context.Context, sessionID string) error
	ClearUserMemory(ctx context.Context, userID string) error
	SessionLen(sessionID string) int
	UserLen(userID string) int
}
