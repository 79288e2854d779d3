package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/guardrail"
	"github.com/hupe1980/coachmesh/internal/testutil"
	"github.com/hupe1980/coachmesh/memory"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine  *Engine
	memory  *memory.Manager
	metrics *Metrics
}

func newFixture(t *testing.T, agents []core.Agent, optFns ...func(o *Options)) *fixture {
	t.Helper()

	reg, err := core.NewRegistry(agents...)
	require.NoError(t, err)

	mem := memory.New()
	metrics := NewMetrics(prometheus.NewRegistry())

	e := New(reg, append([]func(o *Options){func(o *Options) {
		o.MemoryStore = mem
		o.Metrics = metrics
	}}, optFns...)...)

	return &fixture{engine: e, memory: mem, metrics: metrics}
}

func textAgent(id core.AgentID, text string) *testutil.FuncAgent {
	return testutil.NewFuncAgent(id, func(context.Context, core.Task, *core.Session) (core.Result, error) {
		return core.Result{Extra: map[string]any{"text": text}}, nil
	})
}

func TestExecuteAgent_UnknownAgent(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.engine.ExecuteAgent(context.Background(), "yoga", core.Task{}, "s1", "u1")

	assert.False(t, resp.Success)
	assert.Equal(t, "agent not found", resp.Error)
	assert.Equal(t, core.ReasonAgentNotFound, resp.Reason)
	assert.Nil(t, resp.Payload)
	assert.Zero(t, f.engine.Sessions().Len(), "no session is created")
	assert.Zero(t, f.memory.SessionLen("s1"))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Executions.WithLabelValues("yoga", "agent_not_found")))
}

func TestExecuteAgent_PoseWithoutUser(t *testing.T) {
	f := newFixture(t, []core.Agent{agent.NewPoseAgent()})
	task := testutil.NewTaskBuilder().Pose("squat", "f1", "f2").Build()

	resp := f.engine.ExecuteAgent(context.Background(), core.AgentPose, task, "s1", "")

	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Payload)
	require.NotNil(t, resp.Payload.Pose)
	assert.Equal(t, 0, resp.Payload.Pose.RepCount)
	assert.Equal(t, "squat", resp.Payload.Pose.FormScore.ExerciseType)
	assert.NotEmpty(t, resp.ToolsUsed)
	assert.NotZero(t, resp.ExecutionTime)

	assert.Equal(t, 1, f.memory.SessionLen("s1"))
	assert.Zero(t, f.memory.UserLen(""))

	sess, ok := f.engine.Sessions().Get("s1")
	require.True(t, ok)
	assert.Equal(t, 1, sess.HistoryLen())
	assert.Empty(t, sess.Owner())
}

func TestExecuteAgent_SummaryAfterCalls(t *testing.T) {
	f := newFixture(t, []core.Agent{testutil.EchoAgent("a"), testutil.EchoAgent("b")})
	ctx := context.Background()

	for _, id := range []core.AgentID{"b", "a", "b", "b"} {
		require.True(t, f.engine.ExecuteAgent(ctx, id, core.Task{}, "s1", "u1").Success)
	}

	summary, err := f.engine.SessionSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.AgentExecutions)
	assert.Equal(t, []core.AgentID{"a", "b"}, summary.AgentsUsed)
	assert.Equal(t, "u1", summary.UserID)
	assert.GreaterOrEqual(t, summary.TotalExecutionTime, 0.0)

	_, err = f.engine.SessionSummary(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestExecuteAgent_FirstUserWins(t *testing.T) {
	f := newFixture(t, []core.Agent{testutil.EchoAgent("a")})
	ctx := context.Background()

	f.engine.ExecuteAgent(ctx, "a", core.Task{}, "s1", "u1")
	f.engine.ExecuteAgent(ctx, "a", core.Task{}, "s1", "u2")

	summary, err := f.engine.SessionSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", summary.UserID)
}

func TestExecuteAgent_PreValidationRejects(t *testing.T) {
	echo := testutil.EchoAgent("a")
	var states []State
	hooks := NewHooks(HookFunc(func(_ context.Context, tr Transition) { states = append(states, tr.To) }))
	f := newFixture(t, []core.Agent{echo}, func(o *Options) { o.Hooks = hooks })

	task := testutil.NewTaskBuilder().Extra("note", "Coach said to IGNORE DOCTOR orders").Build()
	resp := f.engine.ExecuteAgent(context.Background(), "a", task, "s1", "u1")

	assert.False(t, resp.Success)
	assert.Equal(t, core.ReasonGuardrailRejected, resp.Reason)
	assert.Equal(t, "guardrail violation: dangerous exercise advice detected: ignore doctor", resp.Error)
	assert.Zero(t, echo.Calls(), "the agent is never called")
	assert.Zero(t, f.memory.SessionLen("s1"))
	assert.Zero(t, f.memory.UserLen("u1"))
	assert.Equal(t, []State{StateContextResolved, StateMemoryLoaded, StateGuardrailChecked, StateRejected}, states)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Rejections.WithLabelValues(PhaseInput)))
}

func TestExecuteAgent_SelfHarmInputRejected(t *testing.T) {
	f := newFixture(t, []core.Agent{testutil.EchoAgent("a")})

	task := testutil.NewTaskBuilder().Mood("thinking about self-harm").Build()
	resp := f.engine.ExecuteAgent(context.Background(), "a", task, "s1", "")

	assert.Equal(t, "guardrail violation: self-harm content detected: self-harm", resp.Error)
	assert.Zero(t, f.memory.SessionLen("s1"))
}

func TestExecuteAgent_RateLimit(t *testing.T) {
	f := newFixture(t, []core.Agent{testutil.EchoAgent("a")}, func(o *Options) {
		o.Guardrail = guardrail.New(func(o *guardrail.Options) { o.HistoryCeiling = 2 })
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, f.engine.ExecuteAgent(ctx, "a", core.Task{}, "s1", "").Success)
	}
	resp := f.engine.ExecuteAgent(ctx, "a", core.Task{}, "s1", "")
	assert.Equal(t, "guardrail violation: "+guardrail.ReasonRateLimit, resp.Error)
}

func TestExecuteAgent_MedicalSanitization(t *testing.T) {
	a := textAgent("a", "Stretch after every set. This routine can cure back pain! Drink water.")
	f := newFixture(t, []core.Agent{a})

	resp := f.engine.ExecuteAgent(context.Background(), "a", core.Task{}, "s1", "")
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "Stretch after every set. Drink water.", resp.Payload.Extra["text"])

	mc, err := f.memory.GetContext(context.Background(), "s1", "", "", 10)
	require.NoError(t, err)
	require.Len(t, mc.SessionHistory, 1)
	assert.Equal(t, "Stretch after every set. Drink water.", mc.SessionHistory[0].Result.Extra["text"])
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Sanitizations.WithLabelValues("a")))
}

func TestExecuteAgent_OutputBlocked(t *testing.T) {
	f := newFixture(t, []core.Agent{textAgent("a", "Some would say suicide is an option.")})

	resp := f.engine.ExecuteAgent(context.Background(), "a", core.Task{}, "s1", "u1")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Payload)
	assert.Equal(t, core.ReasonOutputBlocked, resp.Reason)
	assert.Equal(t, "output blocked: self-harm content in output: suicide", resp.Error)
	assert.Zero(t, f.memory.SessionLen("s1"))

	sess, ok := f.engine.Sessions().Get("s1")
	require.True(t, ok)
	assert.Zero(t, sess.HistoryLen())
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Rejections.WithLabelValues(PhaseOutput)))
}

func TestExecuteAgent_AgentFailures(t *testing.T) {
	failing := testutil.NewFuncAgent("err", func(context.Context, core.Task, *core.Session) (core.Result, error) {
		return core.Result{}, errors.New("estimator offline")
	})
	panicking := testutil.NewFuncAgent("panic", func(context.Context, core.Task, *core.Session) (core.Result, error) {
		panic("boom")
	})
	empty := testutil.NewFuncAgent("empty", func(context.Context, core.Task, *core.Session) (core.Result, error) {
		return core.Result{}, nil
	})
	f := newFixture(t, []core.Agent{failing, panicking, empty})
	ctx := context.Background()

	resp := f.engine.ExecuteAgent(ctx, "err", core.Task{}, "s1", "")
	assert.Equal(t, core.ReasonAgentFailed, resp.Reason)
	assert.Equal(t, "estimator offline", resp.Error)
	assert.NotZero(t, resp.ExecutionTime)

	resp = f.engine.ExecuteAgent(ctx, "panic", core.Task{}, "s1", "")
	assert.Equal(t, core.ReasonAgentFailed, resp.Reason)
	assert.Equal(t, "agent panic: boom", resp.Error)

	resp = f.engine.ExecuteAgent(ctx, "empty", core.Task{}, "s1", "")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "empty result")

	assert.Zero(t, f.memory.SessionLen("s1"))
	summary, err := f.engine.SessionSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, summary.AgentExecutions)
}

func TestExecuteAgent_Timeout(t *testing.T) {
	f := newFixture(t, []core.Agent{testutil.SleepyAgent("slow", time.Second)}, func(o *Options) {
		o.Config.AgentTimeout = 20 * time.Millisecond
	})

	resp := f.engine.ExecuteAgent(context.Background(), "slow", core.Task{}, "s1", "")

	assert.False(t, resp.Success)
	assert.Equal(t, core.ReasonTimeout, resp.Reason)
	assert.NotEmpty(t, resp.Error)
	assert.GreaterOrEqual(t, resp.ExecutionTime, 20*time.Millisecond)
	assert.Zero(t, f.memory.SessionLen("s1"))
}

func TestExecuteAgent_MemoryEnrichment(t *testing.T) {
	echo := testutil.EchoAgent("a")
	f := newFixture(t, []core.Agent{echo})
	ctx := context.Background()

	f.engine.ExecuteAgent(ctx, "a", testutil.NewTaskBuilder().Extra("turn", 1).Build(), "s1", "u1")
	f.engine.ExecuteAgent(ctx, "a", testutil.NewTaskBuilder().Extra("turn", 2).Build(), "s1", "u1")

	tasks := echo.Tasks()
	require.Len(t, tasks, 2)
	require.NotNil(t, tasks[0].Memory)
	assert.Empty(t, tasks[0].Memory.SessionHistory)

	require.NotNil(t, tasks[1].Memory)
	require.Len(t, tasks[1].Memory.SessionHistory, 1)
	stored := tasks[1].Memory.SessionHistory[0]
	assert.Equal(t, 1, stored.Task.Extra["turn"])
	assert.Nil(t, stored.Task.Memory, "stored tasks do not nest memory")
	assert.Len(t, tasks[1].Memory.UserHistory, 1)
	assert.Equal(t, 2, tasks[1].Extra["turn"])
}

func TestExecuteAgent_CallerMemoryWins(t *testing.T) {
	echo := testutil.EchoAgent("a")
	f := newFixture(t, []core.Agent{echo})
	ctx := context.Background()
	f.engine.ExecuteAgent(ctx, "a", core.Task{}, "s1", "")

	preset := core.MemoryContext{UserPreferences: core.Preferences{CommonMoods: []string{"Calm"}}}
	f.engine.ExecuteAgent(ctx, "a", testutil.NewTaskBuilder().Memory(preset).Build(), "s1", "")

	tasks := echo.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, &preset, tasks[1].Memory)
}

func TestExecuteAgent_WithMockAgent(t *testing.T) {
	m := testutil.NewMockAgent("mock")
	m.On("Initialize", mock.Anything).Return(nil)
	m.On("Execute", mock.Anything, mock.MatchedBy(func(task core.Task) bool {
		return task.Memory != nil && task.ExerciseType() == "lunge"
	}), mock.AnythingOfType("*core.Session")).Return(core.Result{Extra: map[string]any{"ok": true}}, nil)
	m.On("ToolsUsed").Return([]string{"t1", "t2"})

	f := newFixture(t, []core.Agent{m})
	resp := f.engine.ExecuteAgent(context.Background(), "mock", testutil.NewTaskBuilder().Pose("lunge").Build(), "s1", "")

	require.True(t, resp.Success)
	assert.Equal(t, []string{"t1", "t2"}, resp.ToolsUsed)
	m.AssertExpectations(t)
}

func TestExecuteAgent_InitializeFailure(t *testing.T) {
	m := testutil.NewMockAgent("mock")
	m.On("Initialize", mock.Anything).Return(errors.New("weights missing"))

	f := newFixture(t, []core.Agent{m})
	resp := f.engine.ExecuteAgent(context.Background(), "mock", core.Task{}, "s1", "")

	assert.Equal(t, core.ReasonAgentFailed, resp.Reason)
	assert.Contains(t, resp.Error, "weights missing")
	m.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteAgent_LifecycleOnSuccess(t *testing.T) {
	var transitions []Transition
	f := newFixture(t, []core.Agent{testutil.EchoAgent("a")})
	f.engine.Hooks().Register(HookFunc(func(_ context.Context, tr Transition) { transitions = append(transitions, tr) }))

	f.engine.ExecuteAgent(context.Background(), "a", core.Task{}, "s1", "u1")

	states := make([]State, 0, len(transitions))
	for _, tr := range transitions {
		states = append(states, tr.To)
		assert.Equal(t, "s1", tr.SessionID)
	}
	assert.Equal(t, []State{
		StateContextResolved, StateMemoryLoaded, StateGuardrailChecked,
		StateAgentExecuted, StateOutputValidated, StatePersisted, StateComplete,
	}, states)
	assert.Equal(t, StatePending, transitions[0].From)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Executions.WithLabelValues("a", "success")))
}

type failingMemory struct {
	*memory.Manager
}

func (failingMemory) StoreInteraction(context.Context, string, string, core.AgentID, core.Task, core.Result, map[string]string) error {
	return errors.New("disk full")
}

func TestExecuteAgent_PersistFailure(t *testing.T) {
	f := newFixture(t, []core.Agent{textAgent("echo", "hello")}, func(o *Options) {
		o.MemoryStore = failingMemory{Manager: memory.New()}
	})

	resp := f.engine.ExecuteAgent(context.Background(), "echo", core.Task{}, "s1", "u1")

	assert.False(t, resp.Success)
	assert.Equal(t, core.ReasonPersistFailed, resp.Reason)
	assert.Contains(t, resp.Error, "disk full")
	assert.Nil(t, resp.Payload)

	sess, ok := f.engine.Sessions().Get("s1")
	require.True(t, ok)
	assert.Zero(t, sess.HistoryLen())
}

func TestExecuteMultiAgent_ParallelOrderStable(t *testing.T) {
	f := newFixture(t, []core.Agent{
		testutil.SleepyAgent("first", 60*time.Millisecond),
		testutil.SleepyAgent("second", 0),
		testutil.SleepyAgent("third", 20*time.Millisecond),
	})

	reqs := []core.Request{{AgentID: "first"}, {AgentID: "second"}, {AgentID: "third"}}
	resps := f.engine.ExecuteMultiAgent(context.Background(), reqs, "s1", "", true)

	require.Len(t, resps, 3)
	for i, r := range resps {
		require.True(t, r.Success, r.Error)
		assert.Equal(t, reqs[i].AgentID, r.AgentID)
		assert.Equal(t, string(reqs[i].AgentID), r.Payload.Extra["agent"])
	}

	sess, _ := f.engine.Sessions().Get("s1")
	history := sess.Responses()
	require.Len(t, history, 3)
	assert.Equal(t, core.AgentID("second"), history[0].AgentID, "history is in completion order")
}

func TestExecuteMultiAgent_Sequential(t *testing.T) {
	f := newFixture(t, []core.Agent{testutil.EchoAgent("a"), testutil.EchoAgent("b")})

	reqs := []core.Request{{AgentID: "b"}, {AgentID: "missing"}, {AgentID: "a"}}
	resps := f.engine.ExecuteMultiAgent(context.Background(), reqs, "s1", "", false)

	require.Len(t, resps, 3)
	assert.True(t, resps[0].Success)
	assert.Equal(t, core.ReasonAgentNotFound, resps[1].Reason)
	assert.True(t, resps[2].Success, "a failure does not abort the batch")

	sess, _ := f.engine.Sessions().Get("s1")
	history := sess.Responses()
	require.Len(t, history, 2)
	assert.Equal(t, core.AgentID("b"), history[0].AgentID)
	assert.Equal(t, core.AgentID("a"), history[1].AgentID)
}

func TestExecuteMultiAgent_BoundedConcurrency(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	tracked := testutil.NewFuncAgent("t", func(context.Context, core.Task, *core.Session) (core.Result, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return core.Result{Extra: map[string]any{"ok": true}}, nil
	})
	f := newFixture(t, []core.Agent{tracked}, func(o *Options) {
		o.Config.MaxConcurrentInvocations = 2
	})

	reqs := make([]core.Request, 8)
	for i := range reqs {
		reqs[i] = core.Request{AgentID: "t"}
	}
	resps := f.engine.ExecuteMultiAgent(context.Background(), reqs, "s1", "", true)

	assert.Len(t, resps, 8)
	assert.LessOrEqual(t, peak, 2)
}

func TestExecuteAgent_SameSessionSerialized(t *testing.T) {
	agents := make([]core.Agent, 0, 4)
	for i := 0; i < 4; i++ {
		agents = append(agents, testutil.EchoAgent(core.AgentID(fmt.Sprintf("a%d", i))))
	}
	f := newFixture(t, agents)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.engine.ExecuteAgent(context.Background(), core.AgentID(fmt.Sprintf("a%d", i%4)), core.Task{}, "shared", "")
		}(i)
	}
	wg.Wait()

	sess, _ := f.engine.Sessions().Get("shared")
	history := sess.Responses()
	require.Len(t, history, 40)

	mc, err := f.memory.GetContext(context.Background(), "shared", "", "", 40)
	require.NoError(t, err)
	require.Len(t, mc.SessionHistory, 40)
	for i := range history {
		assert.Equal(t, history[i].AgentID, mc.SessionHistory[i].AgentID, "memory and history order agree at %d", i)
	}
}

func TestOrchestrateWorkoutSession(t *testing.T) {
	newEngine := func() *fixture {
		return newFixture(t, []core.Agent{
			agent.NewPoseAgent(func(o *agent.PoseOptions) { o.WorkoutCompleteReps = 2 }),
			agent.NewMindfulnessAgent(),
		})
	}

	t.Run("complete set triggers coaching", func(t *testing.T) {
		f := newEngine()
		frames := make([]string, 60)
		for i := range frames {
			frames[i] = fmt.Sprintf("frame-%d", i)
		}

		out := f.engine.OrchestrateWorkoutSession(context.Background(), "s1", frames, "squat", "u1")

		require.True(t, out.PoseAnalysis.Success, out.PoseAnalysis.Error)
		assert.True(t, out.PoseAnalysis.Payload.Pose.WorkoutComplete)
		require.NotNil(t, out.MindfulnessCoaching)
		m := out.MindfulnessCoaching.Payload.Mindfulness
		require.NotNil(t, m)
		assert.Equal(t, core.ContextPostWorkout, m.Context)
		assert.True(t, strings.HasSuffix(m.MicroLesson.LessonText, guardrail.DefaultDisclaimer))
		assert.Equal(t, "s1", out.SessionID)
		assert.False(t, out.Timestamp.IsZero())

		summary, err := f.engine.SessionSummary(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, []core.AgentID{core.AgentMindfulness, core.AgentPose}, summary.AgentsUsed)
	})

	t.Run("incomplete set skips coaching", func(t *testing.T) {
		f := newEngine()
		out := f.engine.OrchestrateWorkoutSession(context.Background(), "s1", []string{"f1", "f2"}, "squat", "")
		require.True(t, out.PoseAnalysis.Success)
		assert.Nil(t, out.MindfulnessCoaching)
	})

	t.Run("failed coaching yields no coaching branch", func(t *testing.T) {
		failing := testutil.NewFuncAgent(core.AgentMindfulness, func(context.Context, core.Task, *core.Session) (core.Result, error) {
			return core.Result{}, errors.New("lesson writer unavailable")
		})
		f := newFixture(t, []core.Agent{
			agent.NewPoseAgent(func(o *agent.PoseOptions) { o.WorkoutCompleteReps = 2 }),
			failing,
		})
		frames := make([]string, 60)
		for i := range frames {
			frames[i] = fmt.Sprintf("frame-%d", i)
		}

		out := f.engine.OrchestrateWorkoutSession(context.Background(), "s1", frames, "squat", "u1")

		require.True(t, out.PoseAnalysis.Success, out.PoseAnalysis.Error)
		assert.True(t, out.PoseAnalysis.Payload.Pose.WorkoutComplete)
		assert.Nil(t, out.MindfulnessCoaching)
		assert.Equal(t, 1, failing.Calls())

		sess, ok := f.engine.Sessions().Get("s1")
		require.True(t, ok)
		history := sess.Responses()
		require.Len(t, history, 1)
		assert.Equal(t, core.AgentPose, history[0].AgentID)
	})

	t.Run("failed pose skips coaching", func(t *testing.T) {
		f := newEngine()
		out := f.engine.OrchestrateWorkoutSession(context.Background(), "s1", nil, "squat", "")
		assert.False(t, out.PoseAnalysis.Success)
		assert.Nil(t, out.MindfulnessCoaching)
	})
}

func TestOrchestrateNutritionAnalysis(t *testing.T) {
	f := newFixture(t, []core.Agent{agent.NewNutritionAgent()})

	out := f.engine.OrchestrateNutritionAnalysis(context.Background(), "s1", "base64-image", map[string]string{agent.SizeHintKey: "small"}, "")

	require.True(t, out.Nutrition.Success, out.Nutrition.Error)
	n := out.Nutrition.Payload.Nutrition
	require.NotNil(t, n)
	assert.Equal(t, 100.0, n.Portion.PortionGrams)
	assert.Equal(t, "s1", out.SessionID)
}

func TestListAgents(t *testing.T) {
	f := newFixture(t, []core.Agent{agent.NewPoseAgent(), agent.NewNutritionAgent(), agent.NewMindfulnessAgent()})
	require.NoError(t, f.engine.Initialize(context.Background()))

	states := f.engine.ListAgents()
	require.Len(t, states, 3)
	for id, st := range states {
		assert.Equal(t, id, st.Name)
		assert.True(t, st.Initialized)
		assert.NotEmpty(t, st.AvailableTools)
	}
	assert.Equal(t, []core.AgentID{core.AgentMindfulness, core.AgentNutrition, core.AgentPose}, f.engine.AgentIDs())
}
