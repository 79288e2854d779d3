package testutil

import "github.com/hupe1980/coachmesh/core"

// TaskBuilder provides a fluent helper for constructing tasks in tests.
// Example:
//
//	task := NewTaskBuilder().Pose("squat", "f1", "f2").Build()
//
// Chain only the parts you need.
type TaskBuilder struct {
	task core.Task
}

// NewTaskBuilder creates an empty task builder.
func NewTaskBuilder() *TaskBuilder { return &TaskBuilder{} }

// Pose sets a pose payload (chainable).
func (b *TaskBuilder) Pose(exercise string, frames ...string) *TaskBuilder {
	b.task.Pose = &core.PoseTask{ExerciseType: exercise, Frames: frames}
	return b
}

// Nutrition sets a nutrition payload in estimate mode (chainable).
func (b *TaskBuilder) Nutrition(image string) *TaskBuilder {
	b.task.Nutrition = &core.NutritionTask{Image: image, Mode: core.NutritionModeEstimate}
	return b
}

// Hint adds a nutrition user hint, creating the payload if needed (chainable).
func (b *TaskBuilder) Hint(key, value string) *TaskBuilder {
	if b.task.Nutrition == nil {
		b.task.Nutrition = &core.NutritionTask{}
	}
	if b.task.Nutrition.UserHints == nil {
		b.task.Nutrition.UserHints = map[string]string{}
	}
	b.task.Nutrition.UserHints[key] = value
	return b
}

// Mindfulness sets a mindfulness payload for the given context (chainable).
func (b *TaskBuilder) Mindfulness(context string) *TaskBuilder {
	b.task.Mindfulness = &core.MindfulnessTask{Context: context}
	return b
}

// Mood sets the mood hint, creating the mindfulness payload if needed (chainable).
func (b *TaskBuilder) Mood(mood string) *TaskBuilder {
	if b.task.Mindfulness == nil {
		b.task.Mindfulness = &core.MindfulnessTask{}
	}
	b.task.Mindfulness.MoodHint = mood
	return b
}

// Memory presets the memory context, which the orchestrator then keeps (chainable).
func (b *TaskBuilder) Memory(mc core.MemoryContext) *TaskBuilder {
	b.task.Memory = &mc
	return b
}

// Extra sets a forward-compatible caller field (chainable).
func (b *TaskBuilder) Extra(key string, value any) *TaskBuilder {
	if b.task.Extra == nil {
		b.task.Extra = map[string]any{}
	}
	b.task.Extra[key] = value
	return b
}

// Build returns the constructed task.
func (b *TaskBuilder) Build() core.Task { return b.task.Clone() }
