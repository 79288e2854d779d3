package core

import "time"

// Result is the agent-specific output. One payload is set per agent kind;
// Extra is reserved for agents outside the built-in set.
type Result struct {
	Pose        *PoseResult        `json:"pose,omitempty"`
	Nutrition   *NutritionResult   `json:"nutrition,omitempty"`
	Mindfulness *MindfulnessResult `json:"mindfulness,omitempty"`
	Extra       map[string]any     `json:"extra,omitempty"`
}

// IsZero reports whether no payload is set.
func (r Result) IsZero() bool {
	return r.Pose == nil && r.Nutrition == nil && r.Mindfulness == nil && len(r.Extra) == 0
}

// FormScore returns the pose form score carried by the result.
func (r Result) FormScore() (float64, bool) {
	if r.Pose == nil {
		return 0, false
	}
	return r.Pose.FormScore.OverallScore, true
}

// Mood returns the analyzed mood label carried by a mindfulness result.
func (r Result) Mood() (string, bool) {
	if r.Mindfulness == nil || r.Mindfulness.MoodAnalysis == nil || r.Mindfulness.MoodAnalysis.Mood == "" {
		return "", false
	}
	return r.Mindfulness.MoodAnalysis.Mood, true
}

// Keypoint is a normalized body landmark.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// FrameKeypoints holds the landmarks extracted from one frame.
type FrameKeypoints struct {
	Keypoints      map[string]Keypoint `json:"keypoints"`
	Model          string              `json:"model"`
	FrameTimestamp time.Time           `json:"frame_timestamp"`
}

// FormError is a detected deviation from correct exercise form.
type FormError struct {
	Type     string  `json:"type"`
	Severity float64 `json:"severity"`
	Message  string  `json:"message"`
}

// FormErrors aggregates the detection output for a frame sequence.
type FormErrors struct {
	Errors          []FormError `json:"errors"`
	TopErrors       []FormError `json:"top_errors"`
	Recommendations []string    `json:"recommendations"`
	ExerciseType    string      `json:"exercise_type"`
}

// FormScore grades a set.
type FormScore struct {
	OverallScore float64 `json:"overall_score"`
	Grade        string  `json:"grade"`
	ErrorCount   int     `json:"error_count"`
	RepCount     int     `json:"rep_count"`
	ExerciseType string  `json:"exercise_type"`
}

// WorkoutSummary condenses a pose analysis for follow-up coaching.
type WorkoutSummary struct {
	TotalReps       int         `json:"total_reps"`
	FormScore       float64     `json:"form_score"`
	TopErrors       []FormError `json:"top_errors"`
	Recommendations []string    `json:"recommendations"`
}

// Clone returns a deep copy of the summary.
func (w WorkoutSummary) Clone() WorkoutSummary {
	w.TopErrors = append([]FormError(nil), w.TopErrors...)
	w.Recommendations = append([]string(nil), w.Recommendations...)
	return w
}

// PoseResult is the pose agent output.
type PoseResult struct {
	ExerciseType    string           `json:"exercise_type"`
	Keypoints       []FrameKeypoints `json:"keypoints"`
	FormErrors      FormErrors       `json:"form_errors"`
	RepCount        int              `json:"rep_count"`
	FramesAnalyzed  int              `json:"frames_analyzed"`
	FormScore       FormScore        `json:"form_score"`
	WorkoutComplete bool             `json:"workout_complete"`
	Summary         WorkoutSummary   `json:"summary"`
}

// FoodPrediction is one classifier candidate.
type FoodPrediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classification is the food classifier output.
type Classification struct {
	TopClass    string           `json:"top_class"`
	Confidence  float64          `json:"confidence"`
	Predictions []FoodPrediction `json:"predictions"`
	Model       string           `json:"model"`
}

// PortionEstimate describes the estimated serving size.
type PortionEstimate struct {
	PortionGrams float64 `json:"portion_grams"`
	SizeEstimate string  `json:"size_estimate"`
	Confidence   float64 `json:"confidence"`
	FoodClass    string  `json:"food_class"`
}

// NutritionFacts holds calories and protein with confidence-derived ranges.
type NutritionFacts struct {
	Calories      float64    `json:"calories"`
	CaloriesRange [2]float64 `json:"calories_range"`
	ProteinGrams  float64    `json:"protein_grams"`
	ProteinRange  [2]float64 `json:"protein_range"`
	PortionGrams  float64    `json:"portion_grams"`
	FoodClass     string     `json:"food_class"`
	Confidence    float64    `json:"confidence"`
}

// FoodSwap proposes a healthier alternative.
type FoodSwap struct {
	Swap           string  `json:"swap"`
	Reason         string  `json:"reason"`
	CalorieSavings float64 `json:"calorie_savings"`
}

// Suggestions collects swaps and general tips.
type Suggestions struct {
	Swaps []FoodSwap `json:"suggestions"`
	Tips  []string   `json:"tips"`
}

// NutritionResult is the nutrition agent output. Portion, Nutrition and
// Suggestions are nil in classify-only mode.
type NutritionResult struct {
	Mode           string           `json:"mode"`
	Classification Classification   `json:"classification"`
	Portion        *PortionEstimate `json:"portion_estimate,omitempty"`
	Nutrition      *NutritionFacts  `json:"nutrition,omitempty"`
	Suggestions    *Suggestions     `json:"suggestions,omitempty"`
	Confidence     float64          `json:"confidence"`
}

// MicroLesson is a short coaching text.
type MicroLesson struct {
	LessonText      string `json:"lesson_text"`
	Context         string `json:"context"`
	DurationSeconds int    `json:"duration_seconds"`
	Type            string `json:"type"`
}

// BreathingGuide describes a guided breathing exercise.
type BreathingGuide struct {
	PatternName     string `json:"pattern_name"`
	Pattern         string `json:"pattern"`
	Description     string `json:"description"`
	Cycles          int    `json:"cycles"`
	DurationSeconds int    `json:"duration_seconds"`
	Instructions    string `json:"instructions"`
}

// JournalPrompt is a reflection question.
type JournalPrompt struct {
	Prompt   string `json:"prompt"`
	Context  string `json:"context"`
	MaxWords int    `json:"max_words"`
	Type     string `json:"type"`
}

// MoodAnalysis is derived from a caller-supplied mood hint.
type MoodAnalysis struct {
	Mood            string   `json:"mood"`
	Valence         float64  `json:"valence"`
	Energy          float64  `json:"energy"`
	Context         string   `json:"context"`
	Recommendations []string `json:"recommendations"`
}

// MindfulnessResult is the mindfulness agent output.
type MindfulnessResult struct {
	Context        string         `json:"context"`
	MicroLesson    MicroLesson    `json:"micro_lesson"`
	BreathingGuide BreathingGuide `json:"breathing_guide"`
	JournalPrompt  JournalPrompt  `json:"journal_prompt"`
	MoodAnalysis   *MoodAnalysis  `json:"mood_analysis,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}
