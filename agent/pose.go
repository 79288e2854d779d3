package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/tool"
)

// DefaultWorkoutCompleteReps is the rep count at which a set is considered
// a completed workout.
const DefaultWorkoutCompleteReps = 30

// PoseEstimator extracts body landmarks from an encoded frame.
type PoseEstimator interface {
	Estimate(ctx context.Context, frame string) (core.FrameKeypoints, error)
}

// StaticEstimator returns a fixed standing skeleton for every frame. It
// stands in for a real landmark model.
type StaticEstimator struct {
	Model string
	Now   func() time.Time
}

var staticSkeleton = map[string]core.Keypoint{
	"left_shoulder":  {X: 0.3, Y: 0.2, Visibility: 0.9},
	"right_shoulder": {X: 0.7, Y: 0.2, Visibility: 0.9},
	"left_elbow":     {X: 0.25, Y: 0.4, Visibility: 0.85},
	"right_elbow":    {X: 0.75, Y: 0.4, Visibility: 0.85},
	"left_hip":       {X: 0.35, Y: 0.5, Visibility: 0.9},
	"right_hip":      {X: 0.65, Y: 0.5, Visibility: 0.9},
	"left_knee":      {X: 0.35, Y: 0.7, Visibility: 0.85},
	"right_knee":     {X: 0.65, Y: 0.7, Visibility: 0.85},
	"left_ankle":     {X: 0.35, Y: 0.9, Visibility: 0.8},
	"right_ankle":    {X: 0.65, Y: 0.9, Visibility: 0.8},
}

// Estimate implements PoseEstimator.
func (s StaticEstimator) Estimate(ctx context.Context, _ string) (core.FrameKeypoints, error) {
	if err := ctx.Err(); err != nil {
		return core.FrameKeypoints{}, err
	}
	kp := make(map[string]core.Keypoint, len(staticSkeleton))
	for k, v := range staticSkeleton {
		kp[k] = v
	}
	model, now := s.Model, s.Now
	if model == "" {
		model = "static"
	}
	if now == nil {
		now = time.Now
	}
	return core.FrameKeypoints{Keypoints: kp, Model: model, FrameTimestamp: now()}, nil
}

// PoseOptions configures a PoseAgent.
type PoseOptions struct {
	Estimator           PoseEstimator
	WorkoutCompleteReps int
	Logger              logging.Logger
}

// Tool input types.
type (
	analyzePoseInput struct {
		Frame string `json:"frame" description:"Encoded video frame"`
	}
	frameSeriesInput struct {
		Keypoints    []core.FrameKeypoints `json:"keypoints_list"`
		ExerciseType string                `json:"exercise_type"`
	}
	repCount struct {
		RepCount       int    `json:"rep_count"`
		ExerciseType   string `json:"exercise_type"`
		FramesAnalyzed int    `json:"frames_analyzed"`
	}
	formScoreInput struct {
		FormErrors   core.FormErrors `json:"form_errors"`
		RepCount     int             `json:"rep_count"`
		ExerciseType string          `json:"exercise_type"`
	}
)

// PoseAgent analyzes exercise form from a frame sequence.
type PoseAgent struct {
	*BaseAgent
	opts PoseOptions

	analyzePose   *tool.Func[analyzePoseInput, core.FrameKeypoints]
	detectErrors  *tool.Func[frameSeriesInput, core.FormErrors]
	countReps     *tool.Func[frameSeriesInput, repCount]
	calculateForm *tool.Func[formScoreInput, core.FormScore]
}

var _ core.Agent = (*PoseAgent)(nil)

// NewPoseAgent creates a pose agent using the static estimator by default.
func NewPoseAgent(optFns ...func(o *PoseOptions)) *PoseAgent {
	opts := PoseOptions{
		Estimator:           StaticEstimator{},
		WorkoutCompleteReps: DefaultWorkoutCompleteReps,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.WorkoutCompleteReps <= 0 {
		opts.WorkoutCompleteReps = DefaultWorkoutCompleteReps
	}
	logger := logging.OrNoOp(opts.Logger)

	a := &PoseAgent{opts: opts}
	a.analyzePose = tool.NewFunc("analyze_pose", "Extract pose keypoints from a video frame",
		func(ctx context.Context, in analyzePoseInput) (core.FrameKeypoints, error) {
			return a.opts.Estimator.Estimate(ctx, in.Frame)
		}).WithLogger(logger)
	a.detectErrors = tool.NewFunc("detect_form_errors", "Detect exercise form errors from keypoint sequences",
		func(_ context.Context, in frameSeriesInput) (core.FormErrors, error) {
			return DetectFormErrors(in.Keypoints, in.ExerciseType), nil
		}).WithLogger(logger)
	a.countReps = tool.NewFunc("count_reps", "Count exercise repetitions from keypoint sequence",
		func(_ context.Context, in frameSeriesInput) (repCount, error) {
			return repCount{
				RepCount:       CountReps(len(in.Keypoints), in.ExerciseType),
				ExerciseType:   in.ExerciseType,
				FramesAnalyzed: len(in.Keypoints),
			}, nil
		}).WithLogger(logger)
	a.calculateForm = tool.NewFunc("calculate_form_score", "Calculate overall exercise form score",
		func(_ context.Context, in formScoreInput) (core.FormScore, error) {
			return ScoreForm(in.FormErrors, in.RepCount, in.ExerciseType), nil
		}).WithLogger(logger)

	a.BaseAgent = NewBaseAgent(core.AgentPose, "Real-time exercise form analysis and correction",
		func(context.Context) error {
			a.SetMetadata("estimator", fmt.Sprintf("%T", a.opts.Estimator))
			return nil
		},
		a.analyzePose, a.detectErrors, a.countReps, a.calculateForm)
	a.SetLogger(logger)
	return a
}

// Execute analyzes the task's frames. An empty exercise type defaults to a
// squat.
func (a *PoseAgent) Execute(ctx context.Context, task core.Task, _ *core.Session) (core.Result, error) {
	a.RecordExecution()

	if task.Pose == nil || len(task.Pose.Frames) == 0 {
		return core.Result{}, core.ErrNoFrames
	}
	exercise := task.Pose.ExerciseType
	if exercise == "" {
		exercise = ExerciseSquat
	}

	frames := make([]core.FrameKeypoints, 0, len(task.Pose.Frames))
	for _, f := range task.Pose.Frames {
		kp, err := a.analyzePose.Call(ctx, analyzePoseInput{Frame: f})
		if err != nil {
			return core.Result{}, err
		}
		frames = append(frames, kp)
	}

	series := frameSeriesInput{Keypoints: frames, ExerciseType: exercise}
	formErrors, err := a.detectErrors.Call(ctx, series)
	if err != nil {
		return core.Result{}, err
	}
	reps, err := a.countReps.Call(ctx, series)
	if err != nil {
		return core.Result{}, err
	}
	score, err := a.calculateForm.Call(ctx, formScoreInput{FormErrors: formErrors, RepCount: reps.RepCount, ExerciseType: exercise})
	if err != nil {
		return core.Result{}, err
	}

	a.Logger().Debug("pose.analyzed", "exercise", exercise, "frames", len(frames), "reps", reps.RepCount, "score", score.OverallScore)

	return core.Result{Pose: &core.PoseResult{
		ExerciseType:    exercise,
		Keypoints:       frames,
		FormErrors:      formErrors,
		RepCount:        reps.RepCount,
		FramesAnalyzed:  reps.FramesAnalyzed,
		FormScore:       score,
		WorkoutComplete: reps.RepCount >= a.opts.WorkoutCompleteReps,
		Summary: core.WorkoutSummary{
			TotalReps:       reps.RepCount,
			FormScore:       score.OverallScore,
			TopErrors:       append([]core.FormError(nil), formErrors.TopErrors...),
			Recommendations: append([]string(nil), formErrors.Recommendations...),
		},
	}}, nil
}
