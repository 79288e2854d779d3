package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func first(int) int { return 0 }

func newTestMindfulness(optFns ...func(o *MindfulnessOptions)) *MindfulnessAgent {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewMindfulnessAgent(append([]func(o *MindfulnessOptions){func(o *MindfulnessOptions) {
		o.Pick = first
		o.Now = func() time.Time { return fixed }
	}}, optFns...)...)
}

func TestMindfulnessAgent_GeneralDefault(t *testing.T) {
	res, err := newTestMindfulness().Execute(context.Background(), core.Task{}, nil)
	require.NoError(t, err)

	m := res.Mindfulness
	require.NotNil(t, m)
	assert.Equal(t, core.ContextGeneral, m.Context)
	assert.Equal(t, lessonTemplates[core.ContextGeneral][0], m.MicroLesson.LessonText)
	assert.Equal(t, "micro_lesson", m.MicroLesson.Type)
	assert.Nil(t, m.MoodAnalysis, "mood is only analyzed with a hint")
	assert.Equal(t, "Box Breathing", m.BreathingGuide.PatternName)
	assert.Equal(t, 3, m.BreathingGuide.Cycles)
	assert.Equal(t, "Repeat 3 cycles of Inhale 4, hold 4, exhale 4, hold 4", m.BreathingGuide.Instructions)
	assert.Equal(t, 50, m.JournalPrompt.MaxWords)
	assert.Equal(t, "What's one thing you're grateful for today?", m.JournalPrompt.Prompt)
	assert.Equal(t, 2024, m.Timestamp.Year())
}

func TestMindfulnessAgent_PostWorkout(t *testing.T) {
	task := core.Task{Mindfulness: &core.MindfulnessTask{
		Context:        core.ContextPostWorkout,
		MoodHint:       "Motivated",
		WorkoutSummary: &core.WorkoutSummary{TotalReps: 30, FormScore: 95},
	}}
	res, err := newTestMindfulness().Execute(context.Background(), task, nil)
	require.NoError(t, err)

	m := res.Mindfulness
	assert.True(t, strings.HasSuffix(m.MicroLesson.LessonText, " Excellent form today!"))
	require.NotNil(t, m.MoodAnalysis)
	assert.Equal(t, "Motivated", m.MoodAnalysis.Mood)
	assert.Equal(t, 0.9, m.MoodAnalysis.Valence)
	assert.Equal(t, "What did you push through just now?", m.JournalPrompt.Prompt)
}

func TestAnalyzeMood(t *testing.T) {
	unknown := AnalyzeMood("ecstatic", core.ContextGeneral, nil)
	assert.Equal(t, "Neutral", unknown.Mood)
	assert.Equal(t, []string{"Stay present", "Focus on the process"}, unknown.Recommendations)

	tired := AnalyzeMood("tired", core.ContextPostWorkout, &core.WorkoutSummary{FormScore: 50})
	assert.Equal(t, -0.3, tired.Valence)
	assert.Equal(t, -0.5, tired.Energy)
	assert.Equal(t, core.ContextPostWorkout, tired.Context)
}

func TestLessonTail(t *testing.T) {
	assert.Equal(t, " Excellent form today!", LessonTail(90))
	assert.Equal(t, " Good effort — keep refining.", LessonTail(80))
	assert.Empty(t, LessonTail(74.9))
}

type recordingWriter struct {
	req LessonRequest
	err error
}

func (w *recordingWriter) WriteLesson(_ context.Context, req LessonRequest) (string, error) {
	w.req = req
	return "Custom lesson.", w.err
}

func TestMindfulnessAgent_CustomWriter(t *testing.T) {
	w := &recordingWriter{}
	a := newTestMindfulness(func(o *MindfulnessOptions) { o.Writer = w })

	task := core.Task{
		Mindfulness: &core.MindfulnessTask{Context: core.ContextPreWorkout, WorkoutSummary: &core.WorkoutSummary{FormScore: 80}},
		Memory:      &core.MemoryContext{SessionHistory: []core.HistoryItem{{AgentID: core.AgentPose}}},
	}
	res, err := a.Execute(context.Background(), task, nil)
	require.NoError(t, err)
	assert.Equal(t, "Custom lesson. Good effort — keep refining.", res.Mindfulness.MicroLesson.LessonText)
	assert.Equal(t, core.ContextPreWorkout, w.req.Context)
	assert.Len(t, w.req.History, 1)
	assert.Equal(t, DefaultLessonSeconds, w.req.DurationSeconds)

	w.err = errors.New("llm down")
	_, err = a.Execute(context.Background(), task, nil)
	assert.ErrorContains(t, err, "llm down")
}
