package core

// Task is the input to an agent. Exactly one of the domain payloads is
// expected to be set for a given agent; Memory is the enrichment slot filled
// by the orchestrator and Extra carries forward-compatible caller fields.
type Task struct {
	Pose        *PoseTask        `json:"pose,omitempty"`
	Nutrition   *NutritionTask   `json:"nutrition,omitempty"`
	Mindfulness *MindfulnessTask `json:"mindfulness,omitempty"`
	Memory      *MemoryContext   `json:"memory_context,omitempty"`
	Extra       map[string]any   `json:"extra,omitempty"`
}

// PoseTask asks the pose agent to analyze a sequence of frames.
type PoseTask struct {
	Frames       []string `json:"frames"`
	ExerciseType string   `json:"exercise_type,omitempty"`
	Mode         string   `json:"mode,omitempty"`
}

// Pose task modes.
const (
	PoseModeRealTime = "real_time"
	PoseModeBatch    = "batch"
)

// NutritionTask asks the nutrition agent to analyze a food image.
type NutritionTask struct {
	Image     string            `json:"image"`
	Mode      string            `json:"mode,omitempty"`
	UserHints map[string]string `json:"user_hints,omitempty"`
}

// Nutrition task modes.
const (
	NutritionModeEstimate     = "estimate"
	NutritionModeClassifyOnly = "classify_only"
)

// MindfulnessTask asks the mindfulness agent for coaching content.
type MindfulnessTask struct {
	Context        string          `json:"context,omitempty"`
	MoodHint       string          `json:"mood_hint,omitempty"`
	WorkoutSummary *WorkoutSummary `json:"workout_summary,omitempty"`
}

// Coaching contexts.
const (
	ContextPostWorkout = "post_workout"
	ContextPreWorkout  = "pre_workout"
	ContextGeneral     = "general"
)

// WithoutMemory returns a copy of the task with the memory enrichment
// removed. Stored history uses it so contexts do not nest.
func (t Task) WithoutMemory() Task {
	t.Memory = nil
	return t
}

// ExerciseType reports the pose exercise named by the task, if any.
func (t Task) ExerciseType() string {
	if t.Pose == nil {
		return ""
	}
	return t.Pose.ExerciseType
}

// Clone returns a copy safe for independent mutation of its top-level
// fields, slices and maps.
func (t Task) Clone() Task {
	out := t
	if t.Pose != nil {
		p := *t.Pose
		p.Frames = append([]string(nil), t.Pose.Frames...)
		out.Pose = &p
	}
	if t.Nutrition != nil {
		n := *t.Nutrition
		if t.Nutrition.UserHints != nil {
			n.UserHints = make(map[string]string, len(t.Nutrition.UserHints))
			for k, v := range t.Nutrition.UserHints {
				n.UserHints[k] = v
			}
		}
		out.Nutrition = &n
	}
	if t.Mindfulness != nil {
		m := *t.Mindfulness
		if t.Mindfulness.WorkoutSummary != nil {
			ws := t.Mindfulness.WorkoutSummary.Clone()
			m.WorkoutSummary = &ws
		}
		out.Mindfulness = &m
	}
	if t.Extra != nil {
		out.Extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
