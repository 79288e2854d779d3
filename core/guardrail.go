package core

import "context"

// GuardrailResult is the transient verdict of a policy check. Sanitized is
// set only when the checked result was rewritten and must replace the
// original.
type GuardrailResult struct {
	Allowed   bool    `json:"allowed"`
	Reason    string  `json:"reason,omitempty"`
	Sanitized *Result `json:"-"`
}

// Guardrail validates tasks before execution and results before release.
type Guardrail interface {
	Validate(ctx context.Context, agentID AgentID, task Task, sess *Session) GuardrailResult
	ValidateOutput(ctx context.Context, agentID AgentID, result Result, sess *Session) GuardrailResult
}
