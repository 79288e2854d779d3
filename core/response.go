package core

import (
	"encoding/json"
	"time"
)

// ReasonCode classifies why an AgentResponse failed.
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonAgentNotFound     ReasonCode = "agent_not_found"
	ReasonGuardrailRejected ReasonCode = "guardrail_rejected"
	ReasonAgentFailed       ReasonCode = "agent_failed"
	ReasonOutputBlocked     ReasonCode = "output_blocked"
	ReasonTimeout           ReasonCode = "timeout"
	ReasonPersistFailed     ReasonCode = "persist_failed"
)

// AgentResponse is the uniform outcome of one orchestrated agent call. When
// Success is false, Error is non-empty and Payload is nil.
type AgentResponse struct {
	AgentID       AgentID       `json:"agent"`
	Success       bool          `json:"success"`
	Payload       *Result       `json:"data,omitempty"`
	Error         string        `json:"error,omitempty"`
	Reason        ReasonCode    `json:"reason,omitempty"`
	ExecutionTime time.Duration `json:"-"`
	ToolsUsed     []string      `json:"tools_used"`
	Timestamp     time.Time     `json:"timestamp"`
}

// ExecutionTimeSeconds reports the execution time as fractional seconds.
func (r AgentResponse) ExecutionTimeSeconds() float64 {
	return r.ExecutionTime.Seconds()
}

// MarshalJSON adds execution_time_seconds to the wire representation.
func (r AgentResponse) MarshalJSON() ([]byte, error) {
	type plain AgentResponse
	return json.Marshal(struct {
		plain
		ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	}{plain: plain(r), ExecutionTimeSeconds: r.ExecutionTimeSeconds()})
}

// UnmarshalJSON restores ExecutionTime from execution_time_seconds.
func (r *AgentResponse) UnmarshalJSON(data []byte) error {
	type plain AgentResponse
	aux := struct {
		*plain
		ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ExecutionTime = time.Duration(aux.ExecutionTimeSeconds * float64(time.Second))
	return nil
}

// FailedResponse builds a failed response for agentID.
func FailedResponse(agentID AgentID, reason ReasonCode, msg string, elapsed time.Duration) AgentResponse {
	return AgentResponse{
		AgentID:       agentID,
		Success:       false,
		Error:         msg,
		Reason:        reason,
		ExecutionTime: elapsed,
		ToolsUsed:     []string{},
		Timestamp:     time.Now(),
	}
}
