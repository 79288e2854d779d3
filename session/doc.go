// Package session houses concrete implementations of core.SessionStore.
//
// InMemoryStore keeps live sessions in a process local map, serializes
// commits per session and evicts idle sessions through Sweep or Run.
package session
