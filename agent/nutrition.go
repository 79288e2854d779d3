package agent

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/tool"
)

// FoodFacts are reference values per 100 g.
type FoodFacts struct {
	CaloriesPer100g float64 `json:"calories_per_100g"`
	ProteinPer100g  float64 `json:"protein_per_100g"`
}

// FoodDatabase is the reference table used to compute nutrition.
var FoodDatabase = map[string]FoodFacts{
	"grilled_chicken": {CaloriesPer100g: 165, ProteinPer100g: 31},
	"rice":            {CaloriesPer100g: 130, ProteinPer100g: 2.7},
	"pasta":           {CaloriesPer100g: 131, ProteinPer100g: 5},
	"salad":           {CaloriesPer100g: 20, ProteinPer100g: 1},
	"burger":          {CaloriesPer100g: 295, ProteinPer100g: 16},
	"fries":           {CaloriesPer100g: 312, ProteinPer100g: 3.4},
	"banana":          {CaloriesPer100g: 89, ProteinPer100g: 1.1},
	"apple":           {CaloriesPer100g: 52, ProteinPer100g: 0.3},
	"eggs":            {CaloriesPer100g: 155, ProteinPer100g: 13},
	"salmon":          {CaloriesPer100g: 208, ProteinPer100g: 20},
}

// DefaultFood is used when a class is missing from FoodDatabase.
const DefaultFood = "grilled_chicken"

// Portion sizes in grams keyed by the size_hint user hint.
var portionGrams = map[string]float64{
	"small":  100,
	"medium": 200,
	"large":  300,
}

const (
	defaultPortionGrams      = 200
	defaultPortionConfidence = 0.7
	// SizeHintKey is the user hint naming the portion size.
	SizeHintKey = "size_hint"
)

// FoodClassifier labels a food image with its top-k candidates.
type FoodClassifier interface {
	Classify(ctx context.Context, image string, topK int) (core.Classification, error)
}

// HashClassifier is a deterministic stand-in for an image model: the image
// content seeds the candidate draw, so the same image always yields the same
// classification.
type HashClassifier struct {
	Model string
}

// Classify implements FoodClassifier.
func (h HashClassifier) Classify(ctx context.Context, image string, topK int) (core.Classification, error) {
	if err := ctx.Err(); err != nil {
		return core.Classification{}, err
	}
	if topK <= 0 {
		topK = 3
	}
	model := h.Model
	if model == "" {
		model = "hash_classifier"
	}

	labels := make([]string, 0, len(FoodDatabase))
	for l := range FoodDatabase {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(image))
	seed := hasher.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	preds := make([]core.FoodPrediction, 0, topK)
	for i := 0; i < topK; i++ {
		preds = append(preds, core.FoodPrediction{
			Label:      labels[rng.IntN(len(labels))],
			Confidence: round(0.6+rng.Float64()*0.35, 2),
		})
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Confidence > preds[j].Confidence })

	return core.Classification{
		TopClass:    preds[0].Label,
		Confidence:  preds[0].Confidence,
		Predictions: preds,
		Model:       model,
	}, nil
}

// EstimatePortion maps the size hint to grams. Unknown or missing hints
// fall back to a medium portion.
func EstimatePortion(food string, hints map[string]string) core.PortionEstimate {
	size, ok := hints[SizeHintKey]
	if !ok {
		size = "medium"
	}
	grams, ok := portionGrams[size]
	if !ok {
		grams = defaultPortionGrams
	}
	return core.PortionEstimate{
		PortionGrams: grams,
		SizeEstimate: size,
		Confidence:   defaultPortionConfidence,
		FoodClass:    food,
	}
}

// CalculateNutrition scales the reference values to the portion and widens
// them into ranges by the classifier's uncertainty.
func CalculateNutrition(food string, grams, confidence float64) core.NutritionFacts {
	facts, ok := FoodDatabase[food]
	if !ok {
		facts = FoodDatabase[DefaultFood]
	}
	calories := facts.CaloriesPer100g * grams / 100
	protein := facts.ProteinPer100g * grams / 100
	u := 1 - confidence

	return core.NutritionFacts{
		Calories:      round(calories, 1),
		CaloriesRange: [2]float64{round(calories*(1-u), 1), round(calories*(1+u), 1)},
		ProteinGrams:  round(protein, 1),
		ProteinRange:  [2]float64{round(protein*(1-u), 1), round(protein*(1+u), 1)},
		PortionGrams:  grams,
		FoodClass:     food,
		Confidence:    confidence,
	}
}

// SuggestImprovements proposes swaps for known indulgent foods plus general
// tips.
func SuggestImprovements(food string) core.Suggestions {
	out := core.Suggestions{
		Swaps: []core.FoodSwap{},
		Tips: []string{
			"Add a side of vegetables for more fiber",
			"Consider portion size - aim for palm-sized protein portions",
		},
	}
	switch food {
	case "fries":
		out.Swaps = append(out.Swaps, core.FoodSwap{Swap: "roasted_sweet_potato", Reason: "Lower calories, more fiber and nutrients", CalorieSavings: 50})
	case "burger":
		out.Swaps = append(out.Swaps, core.FoodSwap{Swap: "grilled_chicken", Reason: "Higher protein, lower saturated fat", CalorieSavings: 30})
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// NutritionOptions configures a NutritionAgent.
type NutritionOptions struct {
	Classifier FoodClassifier
	TopK       int
	Logger     logging.Logger
}

type (
	classifyInput struct {
		Image string `json:"image"`
		TopK  int    `json:"top_k,omitempty"`
	}
	portionInput struct {
		FoodClass string            `json:"food_class"`
		UserHints map[string]string `json:"user_hints,omitempty"`
	}
	nutritionInput struct {
		FoodClass    string  `json:"food_class"`
		PortionGrams float64 `json:"portion_grams"`
		Confidence   float64 `json:"confidence"`
	}
	suggestInput struct {
		FoodClass string `json:"food_class"`
	}
)

// NutritionAgent classifies food images and estimates nutrition.
type NutritionAgent struct {
	*BaseAgent
	opts NutritionOptions

	classify  *tool.Func[classifyInput, core.Classification]
	portion   *tool.Func[portionInput, core.PortionEstimate]
	nutrition *tool.Func[nutritionInput, core.NutritionFacts]
	suggest   *tool.Func[suggestInput, core.Suggestions]
}

var _ core.Agent = (*NutritionAgent)(nil)

// NewNutritionAgent creates a nutrition agent using the hash classifier by
// default.
func NewNutritionAgent(optFns ...func(o *NutritionOptions)) *NutritionAgent {
	opts := NutritionOptions{
		Classifier: HashClassifier{},
		TopK:       3,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	a := &NutritionAgent{opts: opts}
	a.classify = tool.NewFunc("classify_food", "Classify food type from image",
		func(ctx context.Context, in classifyInput) (core.Classification, error) {
			return a.opts.Classifier.Classify(ctx, in.Image, in.TopK)
		}).WithLogger(logger)
	a.portion = tool.NewFunc("estimate_portion", "Estimate food portion size in grams",
		func(_ context.Context, in portionInput) (core.PortionEstimate, error) {
			return EstimatePortion(in.FoodClass, in.UserHints), nil
		}).WithLogger(logger)
	a.nutrition = tool.NewFunc("calculate_nutrition", "Calculate calories and macros from food and portion",
		func(_ context.Context, in nutritionInput) (core.NutritionFacts, error) {
			return CalculateNutrition(in.FoodClass, in.PortionGrams, in.Confidence), nil
		}).WithLogger(logger)
	a.suggest = tool.NewFunc("suggest_improvements", "Suggest healthier alternatives or improvements",
		func(_ context.Context, in suggestInput) (core.Suggestions, error) {
			return SuggestImprovements(in.FoodClass), nil
		}).WithLogger(logger)

	a.BaseAgent = NewBaseAgent(core.AgentNutrition, "Food classification and nutrition estimation", nil,
		a.classify, a.portion, a.nutrition, a.suggest)
	a.SetLogger(logger)
	return a
}

// Execute analyzes the task's image. The default mode is a full estimate;
// classify_only stops after classification.
func (a *NutritionAgent) Execute(ctx context.Context, task core.Task, _ *core.Session) (core.Result, error) {
	a.RecordExecution()

	if task.Nutrition == nil || task.Nutrition.Image == "" {
		return core.Result{}, core.ErrNoImage
	}
	mode := task.Nutrition.Mode
	if mode == "" {
		mode = core.NutritionModeEstimate
	}

	cls, err := a.classify.Call(ctx, classifyInput{Image: task.Nutrition.Image, TopK: a.opts.TopK})
	if err != nil {
		return core.Result{}, err
	}
	if mode == core.NutritionModeClassifyOnly {
		return core.Result{Nutrition: &core.NutritionResult{
			Mode:           mode,
			Classification: cls,
			Confidence:     cls.Confidence,
		}}, nil
	}

	portion, err := a.portion.Call(ctx, portionInput{FoodClass: cls.TopClass, UserHints: task.Nutrition.UserHints})
	if err != nil {
		return core.Result{}, err
	}
	facts, err := a.nutrition.Call(ctx, nutritionInput{FoodClass: cls.TopClass, PortionGrams: portion.PortionGrams, Confidence: cls.Confidence})
	if err != nil {
		return core.Result{}, err
	}
	suggestions, err := a.suggest.Call(ctx, suggestInput{FoodClass: cls.TopClass})
	if err != nil {
		return core.Result{}, err
	}

	a.Logger().Debug("nutrition.estimated", "food", cls.TopClass, "calories", facts.Calories)

	return core.Result{Nutrition: &core.NutritionResult{
		Mode:           mode,
		Classification: cls,
		Portion:        &portion,
		Nutrition:      &facts,
		Suggestions:    &suggestions,
		Confidence:     cls.Confidence,
	}}, nil
}
