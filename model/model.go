package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/core"
)

// ErrEmptyCompletion is returned when a provider answers without text.
var ErrEmptyCompletion = errors.New("model returned no text")

// Info contains metadata about a lesson writer implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", ...
}

// SystemPrompt frames the coach persona shared by all providers.
const SystemPrompt = "You are a supportive fitness and mindfulness coach. " +
	"Write one short micro-lesson of two to four sentences in plain text. " +
	"Combine a breathing cue with encouragement. " +
	"Do not give medical advice, diagnoses or treatment suggestions."

// maxHistoryLines bounds how much session history is summarized into a prompt.
const maxHistoryLines = 5

// LessonPrompt renders the user prompt for a lesson request.
func LessonPrompt(req agent.LessonRequest) string {
	var b strings.Builder

	coachingContext := req.Context
	if coachingContext == "" {
		coachingContext = core.ContextGeneral
	}
	fmt.Fprintf(&b, "Context: %s.\n", strings.ReplaceAll(coachingContext, "_", " "))

	if req.DurationSeconds > 0 {
		fmt.Fprintf(&b, "The lesson should take about %d seconds to read aloud.\n", req.DurationSeconds)
	}
	if req.Mood != nil {
		fmt.Fprintf(&b, "The user feels %s (valence %.1f, energy %.1f).\n", strings.ToLower(req.Mood.Mood), req.Mood.Valence, req.Mood.Energy)
	}
	if s := req.WorkoutSummary; s != nil {
		fmt.Fprintf(&b, "They just completed %d reps with a form score of %.0f/100.\n", s.TotalReps, s.FormScore)
		if len(s.Recommendations) > 0 {
			fmt.Fprintf(&b, "Form focus: %s.\n", strings.Join(s.Recommendations, "; "))
		}
	}

	history := req.History
	if len(history) > maxHistoryLines {
		history = history[len(history)-maxHistoryLines:]
	}
	if len(history) > 0 {
		b.WriteString("Recent activity:\n")
		for _, h := range history {
			fmt.Fprintf(&b, "- %s", h.AgentID)
			if ex := h.Task.ExerciseType(); ex != "" {
				fmt.Fprintf(&b, " (%s)", ex)
			}
			if score, ok := h.Result.FormScore(); ok {
				fmt.Fprintf(&b, " score %.0f", score)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// CleanLesson normalizes provider output into a single paragraph.
func CleanLesson(text string) (string, error) {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.Trim(text, "\"")
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
