// Package logging provides a minimal logging interface and adapters for coachmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the orchestrator, memory manager and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - ZapAdapter backed by go.uber.org/zap (JSON or console encoding)
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - ObservedLogger for asserting on log output in tests
//
// Usage:
//
//	logger := logging.NewZapLogger(&logging.Config{Level: logging.LogLevelInfo, Format: "json"})
//	orch := engine.New(registry, func(o *engine.Options) { o.Logger = logger })
package logging
