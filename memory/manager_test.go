package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var _ core.MemoryStore = (*Manager)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestManager(optFns ...func(o *Options)) *Manager {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(append([]func(o *Options){func(o *Options) { o.Now = clock.Now }}, optFns...)...)
}

func poseTask(exercise string) core.Task {
	return core.Task{Pose: &core.PoseTask{ExerciseType: exercise, Frames: []string{"f1"}}}
}

func poseResult(score float64) core.Result {
	return core.Result{Pose: &core.PoseResult{FormScore: core.FormScore{OverallScore: score}}}
}

func moodResult(mood string) core.Result {
	return core.Result{Mindfulness: &core.MindfulnessResult{MoodAnalysis: &core.MoodAnalysis{Mood: mood}}}
}

func TestManager_SessionOnlyWithoutUser(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentPose, poseTask("squat"), poseResult(90), nil))

	assert.Equal(t, 1, m.SessionLen("s1"))
	assert.Equal(t, 0, m.UserLen(""))

	mc, err := m.GetContext(ctx, "s1", "", "", 0)
	require.NoError(t, err)
	assert.Len(t, mc.SessionHistory, 1)
	assert.Nil(t, mc.UserHistory)
}

func TestManager_SessionCapFIFO(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(func(o *Options) { o.MaxSessionEntries = 5 })

	for i := 0; i < 6; i++ {
		task := core.Task{Extra: map[string]any{"n": i}}
		require.NoError(t, m.StoreInteraction(ctx, "s1", "u1", core.AgentNutrition, task, core.Result{}, nil))
	}

	assert.Equal(t, 5, m.SessionLen("s1"))
	mc, err := m.GetContext(ctx, "s1", "", "", 100)
	require.NoError(t, err)
	require.Len(t, mc.SessionHistory, 5)
	for i, item := range mc.SessionHistory {
		assert.Equal(t, i+1, item.Task.Extra["n"], "oldest entry is dropped first")
	}
	assert.Equal(t, 6, m.UserLen("u1"), "user cap is ten times the session cap")
}

func TestManager_UserCap(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(func(o *Options) { o.MaxSessionEntries = 1; o.UserMultiplier = 3 })

	for i := 0; i < 5; i++ {
		require.NoError(t, m.StoreInteraction(ctx, fmt.Sprintf("s%d", i), "u1", core.AgentPose, poseTask("squat"), poseResult(80), nil))
	}
	assert.Equal(t, 3, m.UserLen("u1"))
}

func TestManager_GetContextLimitAndFilter(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	for i := 0; i < 4; i++ {
		require.NoError(t, m.StoreInteraction(ctx, "s1", "u1", core.AgentPose, poseTask(fmt.Sprintf("ex%d", i)), poseResult(70), nil))
		require.NoError(t, m.StoreInteraction(ctx, "s1", "u1", core.AgentMindfulness, core.Task{Mindfulness: &core.MindfulnessTask{}}, moodResult("Tired"), nil))
	}

	mc, err := m.GetContext(ctx, "s1", "u1", core.AgentPose, 2)
	require.NoError(t, err)
	require.Len(t, mc.SessionHistory, 2)
	assert.Equal(t, "ex2", mc.SessionHistory[0].Task.ExerciseType())
	assert.Equal(t, "ex3", mc.SessionHistory[1].Task.ExerciseType())
	require.Len(t, mc.UserHistory, 2)
	assert.True(t, mc.SessionHistory[0].Timestamp.Before(mc.SessionHistory[1].Timestamp))

	assert.Equal(t, []string{"ex0", "ex1", "ex2", "ex3"}, mc.UserPreferences.FavoriteExercises)
	assert.Empty(t, mc.UserPreferences.CommonMoods, "agent filter applies to preferences")

	all, err := m.GetContext(ctx, "s1", "u1", "", 0)
	require.NoError(t, err)
	assert.Len(t, all.SessionHistory, 8)
	assert.Equal(t, []string{"Tired"}, all.UserPreferences.CommonMoods)
	assert.Empty(t, all.Patterns.ExerciseFrequency, "patterns need an agent")
}

func TestManager_Patterns(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(func(o *Options) { o.TrendCap = 3 })

	for i, score := range []float64{50, 60, 70, 80} {
		ex := "squat"
		if i%2 == 1 {
			ex = "lunge"
		}
		require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentPose, poseTask(ex), poseResult(score), nil))
	}
	require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentNutrition, core.Task{}, core.Result{}, nil))

	p := m.Patterns(core.AgentPose)
	assert.Equal(t, map[string]int{"squat": 2, "lunge": 2}, p.ExerciseFrequency)
	require.Len(t, p.FormScoreTrend, 3)
	assert.Equal(t, 60.0, p.FormScoreTrend[0].Score)
	assert.Equal(t, 80.0, p.FormScoreTrend[2].Score)

	assert.Empty(t, m.Patterns(core.AgentNutrition).ExerciseFrequency)
}

func TestManager_StoredTaskDropsMemory(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	task := poseTask("squat")
	task.Memory = &core.MemoryContext{SessionHistory: []core.HistoryItem{{AgentID: core.AgentPose}}}
	require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentPose, task, poseResult(90), nil))

	mc, _ := m.GetContext(ctx, "s1", "", "", 0)
	require.Len(t, mc.SessionHistory, 1)
	assert.Nil(t, mc.SessionHistory[0].Task.Memory)
}

func TestManager_SessionSummary(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	_, err := m.SessionSummary(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrSessionNotFound))

	require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentPose, poseTask("squat"), poseResult(90), nil))
	require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentMindfulness, core.Task{}, core.Result{}, nil))
	require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentPose, poseTask("squat"), poseResult(92), nil))

	sum, err := m.SessionSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalInteractions)
	assert.Equal(t, []core.AgentID{core.AgentMindfulness, core.AgentPose}, sum.AgentsUsed)
	assert.Equal(t, 2.0, sum.DurationSeconds)
	assert.Equal(t, sum.StartTime.Add(2*time.Second), sum.EndTime)
}

func TestManager_ClearIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	require.NoError(t, m.StoreInteraction(ctx, "s1", "u1", core.AgentPose, poseTask("squat"), poseResult(90), nil))

	require.NoError(t, m.ClearSession(ctx, "s1"))
	_, err := m.SessionSummary(ctx, "s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	require.NoError(t, m.ClearSession(ctx, "s1"))
	assert.Equal(t, 1, m.UserLen("u1"), "clearing a session keeps user memory")

	require.NoError(t, m.ClearUserMemory(ctx, "u1"))
	require.NoError(t, m.ClearUserMemory(ctx, "u1"))
	assert.Equal(t, 0, m.UserLen("u1"))
}

func TestManager_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	m := New()

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			sid := fmt.Sprintf("s%d", s)
			for i := 0; i < 50; i++ {
				_ = m.StoreInteraction(ctx, sid, "shared", core.AgentPose, poseTask("squat"), poseResult(80), nil)
				_, _ = m.GetContext(ctx, sid, "shared", core.AgentPose, 5)
			}
		}(s)
	}
	wg.Wait()

	for s := 0; s < 8; s++ {
		assert.Equal(t, 50, m.SessionLen(fmt.Sprintf("s%d", s)))
	}
	assert.Equal(t, 400, m.UserLen("shared"))
	assert.Equal(t, 400, m.Patterns(core.AgentPose).ExerciseFrequency["squat"])
}

type memJournal struct {
	mu        sync.Mutex
	entries   []core.MemoryEntry
	sessions  map[string]time.Time
	users     map[string]time.Time
	appendErr error
}

func newMemJournal() *memJournal {
	return &memJournal{sessions: map[string]time.Time{}, users: map[string]time.Time{}}
}

func (j *memJournal) Append(_ context.Context, e core.MemoryEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.appendErr != nil {
		return j.appendErr
	}
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) ClearSession(_ context.Context, id string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions[id] = at
	return nil
}

func (j *memJournal) ClearUser(_ context.Context, id string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.users[id] = at
	return nil
}

func (j *memJournal) Replay(_ context.Context, fn func(core.MemoryEntry, bool, bool) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		inSession := true
		if at, ok := j.sessions[e.SessionID]; ok && !e.Timestamp.After(at) {
			inSession = false
		}
		inUser := e.UserID != ""
		if at, ok := j.users[e.UserID]; ok && !e.Timestamp.After(at) {
			inUser = false
		}
		if err := fn(e, inSession, inUser); err != nil {
			return err
		}
	}
	return nil
}

func (j *memJournal) Close() error { return nil }

func TestManager_RestoreFromJournal(t *testing.T) {
	ctx := context.Background()
	j := newMemJournal()
	m := newTestManager(func(o *Options) { o.Journal = j })

	require.NoError(t, m.StoreInteraction(ctx, "s1", "u1", core.AgentPose, poseTask("squat"), poseResult(90), nil))
	require.NoError(t, m.StoreInteraction(ctx, "s2", "u1", core.AgentPose, poseTask("lunge"), poseResult(70), nil))
	require.NoError(t, m.ClearSession(ctx, "s1"))

	restored := newTestManager(func(o *Options) { o.Journal = j })
	n, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, restored.SessionLen("s1"))
	assert.Equal(t, 1, restored.SessionLen("s2"))
	assert.Equal(t, 2, restored.UserLen("u1"))
	assert.Equal(t, map[string]int{"squat": 1, "lunge": 1}, restored.Patterns(core.AgentPose).ExerciseFrequency)
}

func TestManager_JournalFailureDoesNotFailStore(t *testing.T) {
	ctx := context.Background()
	j := newMemJournal()
	j.appendErr = errors.New("disk full")
	m := newTestManager(func(o *Options) { o.Journal = j })

	require.NoError(t, m.StoreInteraction(ctx, "s1", "", core.AgentPose, poseTask("squat"), poseResult(90), nil))
	assert.Equal(t, 1, m.SessionLen("s1"))
}
