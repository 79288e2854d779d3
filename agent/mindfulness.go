package agent

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/tool"
)

// DefaultLessonSeconds is the duration of generated lessons and breathing
// guides.
const DefaultLessonSeconds = 60

var lessonTemplates = map[string][]string{
	core.ContextPostWorkout: {
		"Breathe in for 4 counts, hold for 2, out for 6. Repeat 6 times. You built consistency today — that compounds. Remember one progress point.",
		"Take 5 deep breaths. Each rep you completed is a step toward your goal. Progress isn't always linear, but you showed up. That's what matters.",
		"Inhale strength, exhale doubt. You pushed through today. Notice how your body feels — acknowledge the effort you just made.",
	},
	core.ContextPreWorkout: {
		"Take 3 deep breaths. Set your intention: what do you want to accomplish today? Visualize success.",
		"Breathe in confidence, out any hesitation. You're prepared. Trust your training and give your best effort.",
	},
	core.ContextGeneral: {
		"Breathe in for 4, hold 2, out 6. This moment is yours. What's one thing you're grateful for today?",
		"Take a moment. Inhale presence, exhale distraction. You're exactly where you need to be right now.",
	},
}

var journalPrompts = map[string][]string{
	core.ContextPostWorkout: {
		"What did you push through just now?",
		"What's one thing you learned about yourself during this workout?",
		"How did your body feel during the hardest part?",
		"What progress did you notice today, even if small?",
	},
	core.ContextPreWorkout: {
		"What's your intention for today's session?",
		"What are you hoping to achieve or improve?",
	},
	core.ContextGeneral: {
		"What's one thing you're grateful for today?",
		"What challenge did you overcome recently?",
		"How are you feeling right now, and why?",
	},
}

type breathingPattern struct {
	name        string
	pattern     string
	description string
	cycle       int
}

var breathingPatterns = []breathingPattern{
	{name: "Box Breathing", pattern: "4-4-4-4", description: "Inhale 4, hold 4, exhale 4, hold 4", cycle: 16},
	{name: "4-7-8 Breathing", pattern: "4-7-8", description: "Inhale 4, hold 7, exhale 8", cycle: 19},
	{name: "Equal Breathing", pattern: "4-4", description: "Inhale 4, exhale 4", cycle: 8},
}

type moodProfile struct {
	label   string
	valence float64
	energy  float64
}

var moodMap = map[string]moodProfile{
	"frustrated": {label: "Frustrated", valence: -0.5, energy: 0.3},
	"tired":      {label: "Tired", valence: -0.2, energy: -0.5},
	"motivated":  {label: "Motivated", valence: 0.7, energy: 0.8},
	"neutral":    {label: "Neutral", valence: 0, energy: 0},
}

var moodRecommendations = map[string][]string{
	"Frustrated": {"Focus on one small win", "Take a moment to breathe", "Remember progress takes time"},
	"Tired":      {"Listen to your body", "Consider a lighter session", "Rest is part of training"},
	"Motivated":  {"Channel this energy", "Set a challenging but achievable goal", "Enjoy the momentum"},
}

// Picker returns an index in [0, n).
type Picker func(n int) int

// LessonRequest carries everything a LessonWriter may use.
type LessonRequest struct {
	Context         string
	Mood            *core.MoodAnalysis
	WorkoutSummary  *core.WorkoutSummary
	History         []core.HistoryItem
	DurationSeconds int
}

// LessonWriter produces the text of a micro-lesson.
type LessonWriter interface {
	WriteLesson(ctx context.Context, req LessonRequest) (string, error)
}

// TemplateWriter picks one of the built-in lesson templates.
type TemplateWriter struct {
	Pick Picker
}

// WriteLesson implements LessonWriter.
func (w TemplateWriter) WriteLesson(_ context.Context, req LessonRequest) (string, error) {
	templates, ok := lessonTemplates[req.Context]
	if !ok {
		templates = lessonTemplates[core.ContextGeneral]
	}
	pick := w.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return templates[pick(len(templates))], nil
}

// LessonTail is appended to lessons that follow a scored workout.
func LessonTail(score float64) string {
	switch {
	case score >= 90:
		return " Excellent form today!"
	case score >= 75:
		return " Good effort — keep refining."
	default:
		return ""
	}
}

// AnalyzeMood maps a free-form mood hint onto a mood profile, nudging the
// valence by workout performance when a summary is present.
func AnalyzeMood(hint, coachingContext string, summary *core.WorkoutSummary) core.MoodAnalysis {
	profile, ok := moodMap[strings.ToLower(strings.TrimSpace(hint))]
	if !ok {
		profile = moodMap["neutral"]
	}
	valence := profile.valence
	if summary != nil {
		switch {
		case summary.FormScore >= 90:
			valence += 0.2
		case summary.FormScore < 60:
			valence -= 0.1
		}
	}
	recs, ok := moodRecommendations[profile.label]
	if !ok {
		recs = []string{"Stay present", "Focus on the process"}
	}
	return core.MoodAnalysis{
		Mood:            profile.label,
		Valence:         round(valence, 2),
		Energy:          profile.energy,
		Context:         coachingContext,
		Recommendations: append([]string(nil), recs...),
	}
}

// MindfulnessOptions configures a MindfulnessAgent.
type MindfulnessOptions struct {
	// Writer produces lesson text. Defaults to TemplateWriter.
	Writer LessonWriter
	// Pick selects templates, prompts and breathing patterns.
	Pick   Picker
	Now    func() time.Time
	Logger logging.Logger
}

type (
	moodInput struct {
		MoodHint       string               `json:"mood_hint"`
		Context        string               `json:"context"`
		WorkoutSummary *core.WorkoutSummary `json:"workout_summary,omitempty"`
	}
	lessonInput struct {
		Context         string               `json:"context"`
		MoodAnalysis    *core.MoodAnalysis   `json:"mood_analysis,omitempty"`
		WorkoutSummary  *core.WorkoutSummary `json:"workout_summary,omitempty"`
		History         []core.HistoryItem   `json:"user_history,omitempty"`
		DurationSeconds int                  `json:"duration_seconds"`
	}
	breathingInput struct {
		Context         string `json:"context"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	journalInput struct {
		Context string `json:"context"`
	}
)

// MindfulnessAgent produces coaching micro-lessons, breathing guides and
// journal prompts.
type MindfulnessAgent struct {
	*BaseAgent
	opts MindfulnessOptions

	analyzeMood *tool.Func[moodInput, core.MoodAnalysis]
	lesson      *tool.Func[lessonInput, core.MicroLesson]
	breathing   *tool.Func[breathingInput, core.BreathingGuide]
	journal     *tool.Func[journalInput, core.JournalPrompt]
}

var _ core.Agent = (*MindfulnessAgent)(nil)

// NewMindfulnessAgent creates a mindfulness agent.
func NewMindfulnessAgent(optFns ...func(o *MindfulnessOptions)) *MindfulnessAgent {
	opts := MindfulnessOptions{
		Pick:   rand.IntN,
		Now:    time.Now,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Writer == nil {
		opts.Writer = TemplateWriter{Pick: opts.Pick}
	}
	logger := logging.OrNoOp(opts.Logger)

	a := &MindfulnessAgent{opts: opts}
	a.analyzeMood = tool.NewFunc("analyze_mood", "Analyze user mood and emotional state",
		func(_ context.Context, in moodInput) (core.MoodAnalysis, error) {
			return AnalyzeMood(in.MoodHint, in.Context, in.WorkoutSummary), nil
		}).WithLogger(logger)
	a.lesson = tool.NewFunc("generate_micro_lesson", "Generate a short mindfulness or grit micro-lesson",
		func(ctx context.Context, in lessonInput) (core.MicroLesson, error) {
			text, err := a.opts.Writer.WriteLesson(ctx, LessonRequest{
				Context:         in.Context,
				Mood:            in.MoodAnalysis,
				WorkoutSummary:  in.WorkoutSummary,
				History:         in.History,
				DurationSeconds: in.DurationSeconds,
			})
			if err != nil {
				return core.MicroLesson{}, err
			}
			if in.WorkoutSummary != nil {
				text += LessonTail(in.WorkoutSummary.FormScore)
			}
			return core.MicroLesson{LessonText: text, Context: in.Context, DurationSeconds: in.DurationSeconds, Type: "micro_lesson"}, nil
		}).WithLogger(logger)
	a.breathing = tool.NewFunc("generate_breathing_guide", "Generate a guided breathing exercise",
		func(_ context.Context, in breathingInput) (core.BreathingGuide, error) {
			p := breathingPatterns[a.opts.Pick(len(breathingPatterns))]
			cycles := max(1, in.DurationSeconds/p.cycle)
			return core.BreathingGuide{
				PatternName:     p.name,
				Pattern:         p.pattern,
				Description:     p.description,
				Cycles:          cycles,
				DurationSeconds: in.DurationSeconds,
				Instructions:    fmt.Sprintf("Repeat %d cycles of %s", cycles, p.description),
			}, nil
		}).WithLogger(logger)
	a.journal = tool.NewFunc("create_journal_prompt", "Create a journaling prompt for reflection",
		func(_ context.Context, in journalInput) (core.JournalPrompt, error) {
			prompts, ok := journalPrompts[in.Context]
			if !ok {
				prompts = journalPrompts[core.ContextGeneral]
			}
			return core.JournalPrompt{Prompt: prompts[a.opts.Pick(len(prompts))], Context: in.Context, MaxWords: 50, Type: "journal_prompt"}, nil
		}).WithLogger(logger)

	a.BaseAgent = NewBaseAgent(core.AgentMindfulness, "Mindfulness coaching and grit micro-lessons",
		func(context.Context) error {
			a.SetMetadata("writer", fmt.Sprintf("%T", a.opts.Writer))
			return nil
		},
		a.analyzeMood, a.lesson, a.breathing, a.journal)
	a.SetLogger(logger)
	return a
}

// Execute produces coaching content for the task's context. Mood analysis
// runs only when a mood hint is given.
func (a *MindfulnessAgent) Execute(ctx context.Context, task core.Task, _ *core.Session) (core.Result, error) {
	a.RecordExecution()

	var mt core.MindfulnessTask
	if task.Mindfulness != nil {
		mt = *task.Mindfulness
	}
	coachingContext := mt.Context
	if coachingContext == "" {
		coachingContext = core.ContextGeneral
	}

	var mood *core.MoodAnalysis
	if mt.MoodHint != "" {
		m, err := a.analyzeMood.Call(ctx, moodInput{MoodHint: mt.MoodHint, Context: coachingContext, WorkoutSummary: mt.WorkoutSummary})
		if err != nil {
			return core.Result{}, err
		}
		mood = &m
	}

	var history []core.HistoryItem
	if task.Memory != nil {
		history = task.Memory.SessionHistory
	}
	lesson, err := a.lesson.Call(ctx, lessonInput{
		Context:         coachingContext,
		MoodAnalysis:    mood,
		WorkoutSummary:  mt.WorkoutSummary,
		History:         history,
		DurationSeconds: DefaultLessonSeconds,
	})
	if err != nil {
		return core.Result{}, err
	}
	breathing, err := a.breathing.Call(ctx, breathingInput{Context: coachingContext, DurationSeconds: DefaultLessonSeconds})
	if err != nil {
		return core.Result{}, err
	}
	prompt, err := a.journal.Call(ctx, journalInput{Context: coachingContext})
	if err != nil {
		return core.Result{}, err
	}

	return core.Result{Mindfulness: &core.MindfulnessResult{
		Context:        coachingContext,
		MicroLesson:    lesson,
		BreathingGuide: breathing,
		JournalPrompt:  prompt,
		MoodAnalysis:   mood,
		Timestamp:      a.opts.Now(),
	}}, nil
}
