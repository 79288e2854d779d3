package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/stretchr/testify/mock"
)

// MockAgent is a testify mock implementing core.Agent. Name is fixed at
// construction; every other method is recorded.
type MockAgent struct {
	mock.Mock
	name core.AgentID
}

var _ core.Agent = (*MockAgent)(nil)

// NewMockAgent creates a mock agent reporting the given name.
func NewMockAgent(name core.AgentID) *MockAgent {
	return &MockAgent{name: name}
}

func (m *MockAgent) Name() core.AgentID { return m.name }

func (m *MockAgent) Description() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAgent) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAgent) Execute(ctx context.Context, task core.Task, sess *core.Session) (core.Result, error) {
	args := m.Called(ctx, task, sess)
	return args.Get(0).(core.Result), args.Error(1)
}

func (m *MockAgent) ToolsUsed() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockAgent) State() core.AgentState {
	args := m.Called()
	return args.Get(0).(core.AgentState)
}

// FuncAgent is a core.Agent backed by a function. It records the tasks it
// receives and counts executions, which makes it convenient for concurrency
// tests where mock expectations are awkward.
type FuncAgent struct {
	ID    core.AgentID
	Tools []string
	Fn    func(ctx context.Context, task core.Task, sess *core.Session) (core.Result, error)

	calls atomic.Int64
	mu    sync.Mutex
	tasks []core.Task
}

var _ core.Agent = (*FuncAgent)(nil)

// NewFuncAgent creates a function-backed agent.
func NewFuncAgent(id core.AgentID, fn func(ctx context.Context, task core.Task, sess *core.Session) (core.Result, error)) *FuncAgent {
	return &FuncAgent{ID: id, Fn: fn, Tools: []string{"stub"}}
}

// EchoAgent returns an agent whose result echoes the agent id in Extra.
func EchoAgent(id core.AgentID) *FuncAgent {
	return NewFuncAgent(id, func(context.Context, core.Task, *core.Session) (core.Result, error) {
		return core.Result{Extra: map[string]any{"agent": string(id)}}, nil
	})
}

// SleepyAgent is an EchoAgent that waits d (or until ctx is done) first.
func SleepyAgent(id core.AgentID, d time.Duration) *FuncAgent {
	return NewFuncAgent(id, func(ctx context.Context, _ core.Task, _ *core.Session) (core.Result, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return core.Result{}, ctx.Err()
		}
		return core.Result{Extra: map[string]any{"agent": string(id)}}, nil
	})
}

func (a *FuncAgent) Name() core.AgentID { return a.ID }
func (a *FuncAgent) Description() string { return "stub agent " + string(a.ID) }
func (a *FuncAgent) Initialize(context.Context) error { return nil }
func (a *FuncAgent) ToolsUsed() []string { return append([]string(nil), a.Tools...) }

func (a *FuncAgent) Execute(ctx context.Context, task core.Task, sess *core.Session) (core.Result, error) {
	a.calls.Add(1)
	a.mu.Lock()
	a.tasks = append(a.tasks, task)
	a.mu.Unlock()
	return a.Fn(ctx, task, sess)
}

// Calls returns the number of Execute calls.
func (a *FuncAgent) Calls() int { return int(a.calls.Load()) }

// Tasks returns the tasks received so far.
func (a *FuncAgent) Tasks() []core.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Task(nil), a.tasks...)
}

func (a *FuncAgent) State() core.AgentState {
	return core.AgentState{
		Name:           a.ID,
		Description:    a.Description(),
		Initialized:    true,
		ExecutionCount: a.calls.Load(),
		AvailableTools: a.ToolsUsed(),
	}
}
