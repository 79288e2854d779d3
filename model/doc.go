// Package model holds the provider-agnostic pieces of the LLM-backed lesson
// writers: prompt construction, response cleanup and provider metadata.
//
// Providers (openai, anthropic) implement agent.LessonWriter on top of their
// vendor SDKs so agents stay decoupled from any particular model API.
package model
