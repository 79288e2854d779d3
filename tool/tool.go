// Package tool exposes agent capabilities as named, typed tools with call
// accounting and consistent error normalization. Agents own their tools and
// publish them through a Registry so the orchestrator and HTTP layer can
// list what is available.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/coachmesh/logging"
)

// Tool describes a registered capability.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// Calls returns how many times the tool has been invoked.
	Calls() int64
}

// Error codes carried by ToolError.
const (
	CodeExecution = "EXECUTION_ERROR"
	CodeCanceled  = "CANCELED"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Err     error  `json:"-"`                 // Underlying cause
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Func adapts a typed Go function into a Tool. The parameter schema is
// derived from In. A Func is safe for concurrent use.
type Func[In, Out any] struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, in In) (Out, error)
	calls       atomic.Int64
	logger      logging.Logger
}

// NewFunc constructs a Func.
func NewFunc[In, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) *Func[In, Out] {
	var zero In
	return &Func[In, Out]{
		name:        name,
		description: description,
		parameters:  SchemaOf(zero),
		fn:          fn,
		logger:      logging.NoOpLogger{},
	}
}

// WithLogger sets the logger used for call tracing and returns f.
func (f *Func[In, Out]) WithLogger(l logging.Logger) *Func[In, Out] {
	f.logger = logging.OrNoOp(l)
	return f
}

// Name returns the unique tool name.
func (f *Func[In, Out]) Name() string { return f.name }

// Description returns the short natural language description.
func (f *Func[In, Out]) Description() string { return f.description }

// Parameters returns the schema derived from the input type.
func (f *Func[In, Out]) Parameters() map[string]any { return f.parameters }

// Calls returns the number of invocations so far.
func (f *Func[In, Out]) Calls() int64 { return f.calls.Load() }

// Call invokes the wrapped function. Errors are returned as *ToolError:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	context cancellation            -> *ToolError{Code: "CANCELED"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
func (f *Func[In, Out]) Call(ctx context.Context, in In) (Out, error) {
	f.calls.Add(1)
	start := time.Now()

	out, err := f.fn(ctx, in)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			f.logger.Error("tool.call.error", "tool", f.name, "error", toolErr.Message)
			return out, toolErr
		}

		code := CodeExecution
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = CodeCanceled
		}
		f.logger.Error("tool.call.error", "tool", f.name, "error", err.Error())
		return out, &ToolError{Tool: f.name, Message: err.Error(), Code: code, Err: err}
	}

	f.logger.Debug("tool.call.success", "tool", f.name, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

var _ Tool = (*Func[struct{}, struct{}])(nil)
