package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ObservedLogger is a zap-backed Logger whose entries can be inspected in tests.
type ObservedLogger struct {
	*ZapAdapter
	observed *observer.ObservedLogs
}

// NewObservedLogger creates a logger recording every entry at debug level and above.
func NewObservedLogger() *ObservedLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &ObservedLogger{ZapAdapter: NewZapAdapter(zap.New(core)), observed: observed}
}

// All returns all logged entries.
func (o *ObservedLogger) All() []observer.LoggedEntry {
	return o.observed.All()
}

// FilterMessage returns entries whose message equals msg.
func (o *ObservedLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return o.observed.FilterMessage(msg)
}

// Reset clears all logged entries.
func (o *ObservedLogger) Reset() {
	o.observed.TakeAll()
}
