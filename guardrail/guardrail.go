// Package guardrail implements the safety policy applied around every agent
// call: a keyword pre-check on the enriched task, a rate limit on session
// history, and an output pass that scrubs medical advice, blocks self-harm
// content and injects the coaching disclaimer.
package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
)

// Default policy values.
var (
	DefaultMedicalKeywords = []string{
		"diagnose", "diagnosis", "prescribe", "prescription", "treatment",
		"cure", "disease", "illness", "symptom", "medical condition",
		"see a doctor", "consult a physician", "medical professional",
	}

	DefaultSelfHarmKeywords = []string{
		"suicide", "self-harm", "hurt yourself", "end your life",
	}

	DefaultDangerousExerciseKeywords = []string{
		"ignore pain", "push through injury", "ignore doctor", "ignore medical advice",
	}
)

// DefaultDisclaimer is appended to mindfulness lessons.
const DefaultDisclaimer = "This is for educational purposes only and not medical advice."

// DefaultHistoryCeiling is the session history length above which requests are rejected.
const DefaultHistoryCeiling = 100

// Reasons reported by the validator.
const (
	ReasonRateLimit       = "rate limit exceeded"
	ReasonMedicalRemoved  = "medical advice detected and removed"
	ReasonDisclaimerAdded = "disclaimer added"
)

// Options configures a Validator. Keyword lists are matched as
// case-insensitive substrings of the JSON projection of the checked value.
type Options struct {
	MedicalKeywords           []string
	SelfHarmKeywords          []string
	DangerousExerciseKeywords []string
	Disclaimer                string
	HistoryCeiling            int
	Logger                    logging.Logger
}

// Validator is a stateless policy evaluator safe for concurrent use.
type Validator struct {
	medical    []string
	selfHarm   []string
	dangerous  []string
	disclaimer string
	ceiling    int
	logger     logging.Logger
}

// New creates a Validator with the default policy.
func New(optFns ...func(o *Options)) *Validator {
	opts := Options{
		MedicalKeywords:           DefaultMedicalKeywords,
		SelfHarmKeywords:          DefaultSelfHarmKeywords,
		DangerousExerciseKeywords: DefaultDangerousExerciseKeywords,
		Disclaimer:                DefaultDisclaimer,
		HistoryCeiling:            DefaultHistoryCeiling,
		Logger:                    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Validator{
		medical:    lower(opts.MedicalKeywords),
		selfHarm:   lower(opts.SelfHarmKeywords),
		dangerous:  lower(opts.DangerousExerciseKeywords),
		disclaimer: opts.Disclaimer,
		ceiling:    opts.HistoryCeiling,
		logger:     logging.OrNoOp(opts.Logger),
	}
}

// Validate checks an enriched task before execution. The first match wins in
// the order dangerous exercise advice, self-harm, rate limit.
func (v *Validator) Validate(_ context.Context, agentID core.AgentID, task core.Task, sess *core.Session) core.GuardrailResult {
	text := project(task)

	if kw, ok := firstMatch(text, v.dangerous); ok {
		v.logger.Warn("guardrail.input.rejected", "agent", agentID, "category", "dangerous_exercise", "keyword", kw)
		return core.GuardrailResult{Reason: "dangerous exercise advice detected: " + kw}
	}
	if kw, ok := firstMatch(text, v.selfHarm); ok {
		v.logger.Warn("guardrail.input.rejected", "agent", agentID, "category", "self_harm", "keyword", kw)
		return core.GuardrailResult{Reason: "self-harm content detected: " + kw}
	}
	if sess != nil && v.ceiling > 0 && sess.HistoryLen() > v.ceiling {
		v.logger.Warn("guardrail.input.rejected", "agent", agentID, "category", "rate_limit", "history", sess.HistoryLen())
		return core.GuardrailResult{Reason: ReasonRateLimit}
	}
	return core.GuardrailResult{Allowed: true}
}

// ValidateOutput checks a result before release.
//
// Medical advice is scrubbed sentence by sentence; self-harm content in the
// (scrubbed) result is a hard rejection; mindfulness lessons without the
// disclaimer get it appended. Any rewrite is returned in Sanitized.
func (v *Validator) ValidateOutput(_ context.Context, agentID core.AgentID, result core.Result, _ *core.Session) core.GuardrailResult {
	var reasons []string
	current := result
	rewritten := false

	before := project(current)
	if _, found := firstMatch(before, v.medical); found {
		sanitized, err := v.SanitizeResult(current)
		if err != nil {
			return core.GuardrailResult{Reason: fmt.Sprintf("sanitization failed: %v", err)}
		}
		// a keyword found only in field names leaves the text as is
		if project(sanitized) != before {
			v.logger.Warn("guardrail.output.medical", "agent", agentID)
			current = sanitized
			rewritten = true
			reasons = append(reasons, ReasonMedicalRemoved)
		}
	}

	if kw, found := firstMatch(project(current), v.selfHarm); found {
		v.logger.Warn("guardrail.output.rejected", "agent", agentID, "keyword", kw)
		return core.GuardrailResult{Reason: "self-harm content in output: " + kw}
	}

	if agentID == core.AgentMindfulness && current.Mindfulness != nil && v.disclaimer != "" {
		lesson := current.Mindfulness.MicroLesson.LessonText
		if !strings.Contains(strings.ToLower(lesson), strings.ToLower(v.disclaimer)) {
			m := *current.Mindfulness
			m.MicroLesson.LessonText = v.AddDisclaimer(lesson)
			current.Mindfulness = &m
			rewritten = true
			reasons = append(reasons, ReasonDisclaimerAdded)
		}
	}

	out := core.GuardrailResult{Allowed: true, Reason: strings.Join(reasons, "; ")}
	if rewritten {
		out.Sanitized = &current
	}
	return out
}

// AddDisclaimer appends the disclaimer unless text already carries it.
func (v *Validator) AddDisclaimer(text string) string {
	if strings.Contains(strings.ToLower(text), strings.ToLower(v.disclaimer)) {
		return text
	}
	if strings.TrimSpace(text) == "" {
		return v.disclaimer
	}
	return text + " " + v.disclaimer
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// SanitizeText removes every sentence that contains a medical keyword.
// Text without any keyword is returned unchanged; remaining sentences keep
// their original wording and punctuation and are joined by a single space.
func (v *Validator) SanitizeText(text string) string {
	if _, found := firstMatch(strings.ToLower(text), v.medical); !found {
		return text
	}
	var kept []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s == "" || strings.Trim(s, ".!?") == "" {
			continue
		}
		if _, found := firstMatch(strings.ToLower(s), v.medical); found {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, " ")
}

// SanitizeOutput applies SanitizeText to every string at every depth of a
// decoded JSON tree. Other values are returned untouched.
func (v *Validator) SanitizeOutput(tree any) any {
	switch t := tree.(type) {
	case string:
		return v.SanitizeText(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = v.SanitizeOutput(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = v.SanitizeOutput(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = v.SanitizeText(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = v.SanitizeText(val)
		}
		return out
	default:
		return tree
	}
}

// SanitizeResult applies SanitizeOutput to a typed result. The typed
// payloads go through a JSON round-trip; Extra is walked in place so its
// non-string values keep their Go types.
func (v *Validator) SanitizeResult(r core.Result) (core.Result, error) {
	extra := r.Extra
	r.Extra = nil

	raw, err := marshal(r)
	if err != nil {
		return core.Result{}, fmt.Errorf("encode result: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return core.Result{}, fmt.Errorf("decode result: %w", err)
	}
	clean, err := marshal(v.SanitizeOutput(tree))
	if err != nil {
		return core.Result{}, fmt.Errorf("encode sanitized result: %w", err)
	}
	var out core.Result
	if err := json.Unmarshal(clean, &out); err != nil {
		return core.Result{}, fmt.Errorf("decode sanitized result: %w", err)
	}
	if extra != nil {
		out.Extra, _ = v.SanitizeOutput(extra).(map[string]any)
	}
	return out, nil
}

// project renders v as lower-cased JSON for keyword scanning.
func project(v any) string {
	raw, err := marshal(v)
	if err != nil {
		return strings.ToLower(fmt.Sprintf("%v", v))
	}
	return strings.ToLower(string(raw))
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func firstMatch(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

var _ core.Guardrail = (*Validator)(nil)
