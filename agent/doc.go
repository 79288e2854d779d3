// Package agent contains the coaching agents and the BaseAgent they embed.
//
//   - PoseAgent analyzes exercise form from a frame sequence
//   - NutritionAgent classifies a food image and estimates nutrition
//   - MindfulnessAgent produces micro-lessons, breathing guides and journal prompts
//
// Each agent owns a fixed set of typed tools (see package tool) and depends
// on a narrow inference capability (PoseEstimator, FoodClassifier,
// LessonWriter) so deterministic stand-ins can be swapped for real models at
// wiring time. Agents never write session history or memory; the engine is
// the only writer.
package agent
