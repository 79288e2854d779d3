package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseAgent_InitializeOnce(t *testing.T) {
	calls := 0
	b := NewBaseAgent("test", "a test agent", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, b.Initialize(context.Background()))
	require.NoError(t, b.Initialize(context.Background()))
	assert.Equal(t, 1, calls)
	assert.True(t, b.State().Initialized)
}

func TestBaseAgent_InitializeRetriesAfterFailure(t *testing.T) {
	fail := true
	b := NewBaseAgent("test", "", func(context.Context) error {
		if fail {
			return errors.New("not ready")
		}
		return nil
	})

	err := b.Initialize(context.Background())
	require.Error(t, err)
	assert.False(t, b.Initialized())

	fail = false
	require.NoError(t, b.Initialize(context.Background()))
	assert.True(t, b.Initialized())
}

func TestBaseAgent_State(t *testing.T) {
	noop := tool.NewFunc("noop", "", func(context.Context, struct{}) (int, error) { return 0, nil })
	b := NewBaseAgent("test", "desc", nil, noop)

	st := b.State()
	assert.Zero(t, st.ExecutionCount)
	assert.Nil(t, st.LastExecution)

	b.RecordExecution()
	b.SetMetadata("model", "static")
	st = b.State()
	assert.Equal(t, int64(1), st.ExecutionCount)
	assert.NotNil(t, st.LastExecution)
	assert.Equal(t, []string{"noop"}, st.AvailableTools)
	assert.Equal(t, map[string]string{"model": "static"}, st.Metadata)
	assert.Equal(t, core.AgentID("test"), st.Name)
}

func TestRegisterTools(t *testing.T) {
	r := tool.NewRegistry()
	pose, nutrition, mind := NewPoseAgent(), NewNutritionAgent(), NewMindfulnessAgent()
	require.NoError(t, RegisterTools(r, pose, nutrition, mind))

	assert.Len(t, r.List(), 12)
	assert.Equal(t, []string{"analyze_pose", "calculate_form_score", "count_reps", "detect_form_errors"}, r.ByCategory("pose"))

	require.NoError(t, pose.Initialize(context.Background()))
	assert.Equal(t, "agent.StaticEstimator", pose.State().Metadata["estimator"])
}
