// Package core provides the foundational domain types and contracts used by
// coachmesh. It defines the core abstractions for:
//
//   - Agents (pose analysis, nutrition estimation, mindfulness coaching)
//   - Tasks and Results (tagged variants, one payload per agent kind)
//   - Sessions (per-conversation context holding an append-only response history)
//   - Memory (interaction entries, retrieved context, preferences and patterns)
//   - Pluggable stores for session context and long-lived memory
//
// The package keeps implementation concerns (persistence, orchestration,
// concrete agents) out of scope, exposing small interfaces so alternative
// backends can be swapped in without touching the orchestrator.
package core
