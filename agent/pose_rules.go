package agent

import (
	"math"
	"sort"

	"github.com/hupe1980/coachmesh/core"
)

// Supported exercise types.
const (
	ExerciseSquat           = "squat"
	ExercisePushup          = "pushup"
	ExerciseBicepCurl       = "bicep_curl"
	ExerciseTricepExtension = "tricep_extension"
	ExerciseChestPress      = "chest_press"
	ExerciseShoulderPress   = "shoulder_press"
	ExerciseLunge           = "lunge"
	ExercisePlank           = "plank"
	ExerciseRow             = "row"
)

// Form grades.
const (
	GradeExcellent        = "Excellent"
	GradeGood             = "Good"
	GradeFair             = "Fair"
	GradeNeedsImprovement = "Needs Improvement"
)

// formRule inspects one frame. A zero-valued keypoint stands in for a
// missing landmark.
type formRule func(kp map[string]core.Keypoint) (core.FormError, string, bool)

var formRules = map[string]formRule{
	ExerciseSquat: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if math.Abs(kp["left_knee"].X-kp["left_ankle"].X) > 0.1 {
			return core.FormError{Type: "knee_valgus", Severity: 0.7, Message: "Knees tracking inward - keep them aligned with ankles"},
				"Focus on pushing knees out over toes", true
		}
		return core.FormError{}, "", false
	},
	ExercisePushup: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if kp["left_hip"].Y-kp["left_shoulder"].Y > 0.15 {
			return core.FormError{Type: "torso_sag", Severity: 0.6, Message: "Torso sagging - engage core and maintain straight line"},
				"Tighten your core and keep your body straight", true
		}
		return core.FormError{}, "", false
	},
	ExerciseBicepCurl: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if math.Abs(kp["left_elbow"].X-kp["left_shoulder"].X) > 0.2 {
			return core.FormError{Type: "elbow_swing", Severity: 0.65, Message: "Elbows moving forward - keep them close to your body"},
				"Control the weight, avoid swinging", true
		}
		return core.FormError{}, "", false
	},
	ExerciseTricepExtension: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if math.Abs(kp["left_elbow"].Y-kp["left_shoulder"].Y) < 0.05 {
			return core.FormError{Type: "upper_arm_movement", Severity: 0.6, Message: "Upper arm moving - keep it stationary"},
				"Lock your upper arm in place", true
		}
		return core.FormError{}, "", false
	},
	ExerciseChestPress: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if math.Abs(kp["left_elbow"].X-kp["left_shoulder"].X) > 0.3 {
			return core.FormError{Type: "elbow_flare", Severity: 0.7, Message: "Elbows flaring out - keep them at 45-60 degrees"},
				"Keep elbows closer to body", true
		}
		return core.FormError{}, "", false
	},
	ExerciseShoulderPress: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if kp["left_shoulder"].X < kp["left_hip"].X-0.1 {
			return core.FormError{Type: "back_arch", Severity: 0.65, Message: "Excessive back arch - engage core"},
				"Keep core tight and avoid arching", true
		}
		return core.FormError{}, "", false
	},
	ExerciseLunge: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if math.Abs(kp["left_knee"].X-kp["left_ankle"].X) > 0.15 {
			return core.FormError{Type: "knee_position", Severity: 0.7, Message: "Knee not aligned with ankle - step forward more"},
				"Keep front knee over ankle", true
		}
		return core.FormError{}, "", false
	},
	ExercisePlank: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		hip, shoulder := kp["left_hip"].Y, kp["left_shoulder"].Y
		switch {
		case hip > shoulder+0.1:
			return core.FormError{Type: "hip_sag", Severity: 0.7, Message: "Hips sagging - engage core and glutes"},
				"Tighten core and squeeze glutes", true
		case hip < shoulder-0.1:
			return core.FormError{Type: "hip_raised", Severity: 0.6, Message: "Hips too high - lower to straight line"},
				"Lower hips to align with shoulders", true
		}
		return core.FormError{}, "", false
	},
	ExerciseRow: func(kp map[string]core.Keypoint) (core.FormError, string, bool) {
		if kp["left_elbow"].X > kp["left_shoulder"].X+0.1 {
			return core.FormError{Type: "shoulder_retraction", Severity: 0.65, Message: "Not retracting shoulder blades - pull elbows back"},
				"Squeeze shoulder blades together", true
		}
		return core.FormError{}, "", false
	},
}

// DetectFormErrors applies the exercise's rule to every frame. Errors are
// reported per frame; TopErrors holds at most three distinct error types
// ordered by severity and recommendations are de-duplicated in first-seen
// order. Unknown exercises yield no errors.
func DetectFormErrors(frames []core.FrameKeypoints, exercise string) core.FormErrors {
	out := core.FormErrors{
		Errors:          []core.FormError{},
		TopErrors:       []core.FormError{},
		Recommendations: []string{},
		ExerciseType:    exercise,
	}
	rule, ok := formRules[exercise]
	if !ok {
		return out
	}

	seenRec := map[string]bool{}
	for _, f := range frames {
		fe, rec, hit := rule(f.Keypoints)
		if !hit {
			continue
		}
		out.Errors = append(out.Errors, fe)
		if !seenRec[rec] {
			seenRec[rec] = true
			out.Recommendations = append(out.Recommendations, rec)
		}
	}

	sorted := append([]core.FormError(nil), out.Errors...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Severity > sorted[j].Severity })
	seenType := map[string]bool{}
	for _, fe := range sorted {
		if len(out.TopErrors) == 3 {
			break
		}
		if seenType[fe.Type] {
			continue
		}
		seenType[fe.Type] = true
		out.TopErrors = append(out.TopErrors, fe)
	}
	return out
}

// CountReps estimates repetitions from the number of analyzed frames.
// Sequences of ten frames or fewer are too short to contain a rep for the
// tracked exercises; planks are held, not repeated.
func CountReps(frames int, exercise string) int {
	perRep := 0
	switch exercise {
	case ExerciseSquat:
		perRep = 30
	case ExerciseBicepCurl, ExerciseTricepExtension, ExerciseShoulderPress:
		perRep = 25
	case ExerciseLunge:
		perRep = 40
	case ExercisePlank:
		return 0
	default:
		return max(1, frames/20)
	}
	if frames <= 10 {
		return 0
	}
	return max(1, frames/perRep)
}

// ScoreForm grades a set: 100 minus ten points per unit of error severity,
// clamped to [0, 100] and rounded to one decimal.
func ScoreForm(errs core.FormErrors, reps int, exercise string) core.FormScore {
	score := 100.0
	for _, fe := range errs.Errors {
		score -= fe.Severity * 10
	}
	score = math.Round(math.Max(0, math.Min(100, score))*10) / 10

	return core.FormScore{
		OverallScore: score,
		Grade:        Grade(score),
		ErrorCount:   len(errs.Errors),
		RepCount:     reps,
		ExerciseType: exercise,
	}
}

// Grade maps a form score to its label.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return GradeExcellent
	case score >= 75:
		return GradeGood
	case score >= 60:
		return GradeFair
	default:
		return GradeNeedsImprovement
	}
}
