package memory

import (
	"context"
	"time"

	"github.com/hupe1980/coachmesh/core"
)

// Journal is a durable write-through log behind the in-memory indices.
//
// Clears are recorded as tombstones rather than deletions because a single
// entry lives in both the session and the user index: clearing one must not
// drop it from the other. Replay yields entries oldest first together with
// their index membership after tombstones are applied.
type Journal interface {
	Append(ctx context.Context, entry core.MemoryEntry) error
	ClearSession(ctx context.Context, sessionID string, at time.Time) error
	ClearUser(ctx context.Context, userID string, at time.Time) error
	Replay(ctx context.Context, fn func(entry core.MemoryEntry, inSession, inUser bool) error) error
	Close() error
}
