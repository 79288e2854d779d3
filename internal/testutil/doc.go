// Package testutil contains helpers shared by tests: fluent builders for
// tasks and sessions, and stub agents (a testify mock and a function-backed
// agent) for exercising the orchestrator without domain logic. They are not
// intended for production usage.
package testutil
