package model

import (
	"strings"
	"testing"

	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonPrompt(t *testing.T) {
	history := make([]core.HistoryItem, 0, 7)
	for i := 0; i < 6; i++ {
		history = append(history, core.HistoryItem{AgentID: core.AgentNutrition})
	}
	history = append(history, core.HistoryItem{
		AgentID: core.AgentPose,
		Task:    core.Task{Pose: &core.PoseTask{ExerciseType: "squat"}},
		Result:  core.Result{Pose: &core.PoseResult{FormScore: core.FormScore{OverallScore: 88}}},
	})

	prompt := LessonPrompt(agent.LessonRequest{
		Context:         core.ContextPostWorkout,
		Mood:            &core.MoodAnalysis{Mood: "Tired", Valence: -0.2, Energy: -0.5},
		WorkoutSummary:  &core.WorkoutSummary{TotalReps: 12, FormScore: 88, Recommendations: []string{"Keep front knee over ankle"}},
		History:         history,
		DurationSeconds: 60,
	})

	assert.Contains(t, prompt, "Context: post workout.")
	assert.Contains(t, prompt, "about 60 seconds")
	assert.Contains(t, prompt, "feels tired")
	assert.Contains(t, prompt, "12 reps with a form score of 88/100")
	assert.Contains(t, prompt, "Form focus: Keep front knee over ankle.")
	assert.Contains(t, prompt, "- pose (squat) score 88")
	assert.Equal(t, 4, strings.Count(prompt, "- nutrition"), "history is truncated to the newest entries")
}

func TestLessonPrompt_Minimal(t *testing.T) {
	assert.Equal(t, "Context: general.", LessonPrompt(agent.LessonRequest{}))
}

func TestCleanLesson(t *testing.T) {
	out, err := CleanLesson("  \"Breathe in.\n\n  Breathe out.\"  ")
	require.NoError(t, err)
	assert.Equal(t, "Breathe in. Breathe out.", out)

	_, err = CleanLesson(" \n ")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
