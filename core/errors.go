package core

import "errors"

var (
	// ErrAgentNotFound is returned when a request names an agent that is not registered.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrDuplicateAgent is returned when two agents share the same identifier.
	ErrDuplicateAgent = errors.New("duplicate agent")

	// ErrSessionNotFound is returned when no context or memory exists for a session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoFrames is returned by the pose agent when the task carries no frames.
	ErrNoFrames = errors.New("no frames provided")

	// ErrNoImage is returned by the nutrition agent when the task carries no image.
	ErrNoImage = errors.New("no image provided")

	// ErrInvalidTask is returned when a task does not carry the payload an agent expects.
	ErrInvalidTask = errors.New("invalid task")
)
