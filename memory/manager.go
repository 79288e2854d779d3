package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
)

// Defaults for Options.
const (
	DefaultMaxSessionEntries = 1000
	DefaultUserMultiplier    = 10
	DefaultTrendCap          = 100
	DefaultContextLimit      = 10
)

// Options configures a Manager.
type Options struct {
	// MaxSessionEntries caps the per-session index (N). The per-user index
	// is capped at UserMultiplier * N.
	MaxSessionEntries int
	UserMultiplier    int
	// TrendCap bounds the form score trend kept per agent.
	TrendCap int
	// DefaultLimit is used by GetContext when limit <= 0.
	DefaultLimit int
	// Journal enables write-through persistence. Nil keeps memory volatile.
	Journal Journal
	Logger  logging.Logger
	// Now is the clock used for entry timestamps.
	Now func() time.Time
}

// Manager is the in-process MemoryStore. It keeps two bounded FIFO indices
// (per session and per user) and incrementally maintained per-agent
// pattern summaries.
//
// Concurrency: the index maps are guarded only for lookup and insert; each
// bucket carries its own lock so unrelated sessions and users never contend.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*bucket
	users    map[string]*bucket

	patternsMu sync.Mutex
	patterns   map[core.AgentID]*patterns

	logger logging.Logger
}

type bucket struct {
	mu      sync.RWMutex
	entries *ring[core.MemoryEntry]
}

type patterns struct {
	frequency map[string]int
	trend     *ring[core.ScorePoint]
}

// New creates a Manager with in-memory defaults.
func New(optFns ...func(o *Options)) *Manager {
	opts := Options{
		MaxSessionEntries: DefaultMaxSessionEntries,
		UserMultiplier:    DefaultUserMultiplier,
		TrendCap:          DefaultTrendCap,
		DefaultLimit:      DefaultContextLimit,
		Logger:            logging.NoOpLogger{},
		Now:               time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSessionEntries <= 0 {
		opts.MaxSessionEntries = DefaultMaxSessionEntries
	}
	if opts.UserMultiplier <= 0 {
		opts.UserMultiplier = DefaultUserMultiplier
	}
	if opts.TrendCap <= 0 {
		opts.TrendCap = DefaultTrendCap
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultContextLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*bucket),
		users:    make(map[string]*bucket),
		patterns: make(map[core.AgentID]*patterns),
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// StoreInteraction records one interaction. The task is stored without its
// memory enrichment.
func (m *Manager) StoreInteraction(ctx context.Context, sessionID, userID string, agentID core.AgentID, task core.Task, result core.Result, metadata map[string]string) error {
	entry := core.MemoryEntry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		AgentID:   agentID,
		Task:      task.WithoutMemory().Clone(),
		Result:    result,
		Timestamp: m.opts.Now(),
		Metadata:  copyMetadata(metadata),
	}

	m.insert(entry, true, userID != "")

	if m.opts.Journal != nil {
		if err := m.opts.Journal.Append(ctx, entry); err != nil {
			m.logger.Error("memory.journal.append_failed", "session_id", sessionID, "error", err.Error())
		}
	}
	return nil
}

func (m *Manager) insert(entry core.MemoryEntry, inSession, inUser bool) {
	if inSession {
		b := m.bucketFor(m.sessions, entry.SessionID, m.opts.MaxSessionEntries)
		b.mu.Lock()
		if b.entries.push(entry) {
			m.logger.Debug("memory.session.evicted", "session_id", entry.SessionID)
		}
		b.mu.Unlock()
	}
	if inUser && entry.UserID != "" {
		b := m.bucketFor(m.users, entry.UserID, m.opts.MaxSessionEntries*m.opts.UserMultiplier)
		b.mu.Lock()
		b.entries.push(entry)
		b.mu.Unlock()
	}
	m.updatePatterns(entry)
}

func (m *Manager) bucketFor(index map[string]*bucket, key string, capacity int) *bucket {
	m.mu.RLock()
	b, ok := index[key]
	m.mu.RUnlock()
	if ok {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = index[key]; ok {
		return b
	}
	b = &bucket{entries: newRing[core.MemoryEntry](capacity)}
	index[key] = b
	return b
}

func (m *Manager) lookup(index map[string]*bucket, key string) (*bucket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := index[key]
	return b, ok
}

func (m *Manager) updatePatterns(entry core.MemoryEntry) {
	if entry.AgentID != core.AgentPose {
		return
	}
	m.patternsMu.Lock()
	defer m.patternsMu.Unlock()

	p, ok := m.patterns[entry.AgentID]
	if !ok {
		p = &patterns{frequency: map[string]int{}, trend: newRing[core.ScorePoint](m.opts.TrendCap)}
		m.patterns[entry.AgentID] = p
	}
	if ex := entry.Task.ExerciseType(); ex != "" {
		p.frequency[ex]++
	}
	if score, ok := entry.Result.FormScore(); ok {
		p.trend.push(core.ScorePoint{Score: score, Timestamp: entry.Timestamp})
	}
}

// GetContext returns the retrieved memory for an agent call.
func (m *Manager) GetContext(_ context.Context, sessionID, userID string, agentID core.AgentID, limit int) (core.MemoryContext, error) {
	if limit <= 0 {
		limit = m.opts.DefaultLimit
	}
	keep := func(e core.MemoryEntry) bool { return agentID == "" || e.AgentID == agentID }

	out := core.MemoryContext{
		SessionHistory:  []core.HistoryItem{},
		UserPreferences: core.Preferences{FavoriteExercises: []string{}, CommonMoods: []string{}},
	}

	if b, ok := m.lookup(m.sessions, sessionID); ok {
		b.mu.RLock()
		out.SessionHistory = toItems(b.entries.tail(limit, keep))
		b.mu.RUnlock()
	}

	if userID != "" {
		out.UserHistory = []core.HistoryItem{}
		if b, ok := m.lookup(m.users, userID); ok {
			b.mu.RLock()
			all := b.entries.items()
			out.UserHistory = toItems(b.entries.tail(limit, keep))
			b.mu.RUnlock()

			filtered := all[:0:0]
			for _, e := range all {
				if keep(e) {
					filtered = append(filtered, e)
				}
			}
			out.UserPreferences = extractPreferences(filtered)
		}
	}

	if agentID != "" {
		out.Patterns = m.Patterns(agentID)
	}
	return out, nil
}

// Patterns returns a snapshot of the pattern summary for agentID.
func (m *Manager) Patterns(agentID core.AgentID) core.PatternSummary {
	m.patternsMu.Lock()
	defer m.patternsMu.Unlock()
	p, ok := m.patterns[agentID]
	if !ok {
		return core.PatternSummary{}
	}
	freq := make(map[string]int, len(p.frequency))
	for k, v := range p.frequency {
		freq[k] = v
	}
	return core.PatternSummary{ExerciseFrequency: freq, FormScoreTrend: p.trend.items()}
}

func extractPreferences(entries []core.MemoryEntry) core.Preferences {
	exercises := map[string]struct{}{}
	moods := map[string]struct{}{}
	for _, e := range entries {
		switch e.AgentID {
		case core.AgentPose:
			if ex := e.Task.ExerciseType(); ex != "" {
				exercises[ex] = struct{}{}
			}
		case core.AgentMindfulness:
			if mood, ok := e.Result.Mood(); ok {
				moods[mood] = struct{}{}
			}
		}
	}
	return core.Preferences{FavoriteExercises: sortedKeys(exercises), CommonMoods: sortedKeys(moods)}
}

// SessionSummary reports the memory view of a session.
func (m *Manager) SessionSummary(_ context.Context, sessionID string) (core.MemorySummary, error) {
	b, ok := m.lookup(m.sessions, sessionID)
	if !ok {
		return core.MemorySummary{}, fmt.Errorf("memory summary %s: %w", sessionID, core.ErrSessionNotFound)
	}
	b.mu.RLock()
	entries := b.entries.items()
	b.mu.RUnlock()
	if len(entries) == 0 {
		return core.MemorySummary{}, fmt.Errorf("memory summary %s: %w", sessionID, core.ErrSessionNotFound)
	}

	agents := map[core.AgentID]struct{}{}
	for _, e := range entries {
		agents[e.AgentID] = struct{}{}
	}
	used := make([]core.AgentID, 0, len(agents))
	for a := range agents {
		used = append(used, a)
	}
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })

	start, end := entries[0].Timestamp, entries[len(entries)-1].Timestamp
	return core.MemorySummary{
		SessionID:         sessionID,
		TotalInteractions: len(entries),
		AgentsUsed:        used,
		Duration:          end.Sub(start),
		DurationSeconds:   end.Sub(start).Seconds(),
		StartTime:         start,
		EndTime:           end,
	}, nil
}

// ClearSession drops the session index. Entries remain in the user index.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if m.opts.Journal != nil {
		if err := m.opts.Journal.ClearSession(ctx, sessionID, m.opts.Now()); err != nil {
			return fmt.Errorf("journal clear session %s: %w", sessionID, err)
		}
	}
	return nil
}

// ClearUserMemory drops the user index. Entries remain in session indices.
func (m *Manager) ClearUserMemory(ctx context.Context, userID string) error {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
	if m.opts.Journal != nil {
		if err := m.opts.Journal.ClearUser(ctx, userID, m.opts.Now()); err != nil {
			return fmt.Errorf("journal clear user %s: %w", userID, err)
		}
	}
	return nil
}

// SessionLen returns the number of entries held for a session.
func (m *Manager) SessionLen(sessionID string) int {
	return m.count(m.sessions, sessionID)
}

// UserLen returns the number of entries held for a user.
func (m *Manager) UserLen(userID string) int {
	return m.count(m.users, userID)
}

func (m *Manager) count(index map[string]*bucket, key string) int {
	b, ok := m.lookup(index, key)
	if !ok {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries.len()
}

// Restore rebuilds indices and pattern summaries from the journal. It is
// meant to run once at startup before the manager serves requests.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.opts.Journal == nil {
		return 0, nil
	}
	n := 0
	err := m.opts.Journal.Replay(ctx, func(e core.MemoryEntry, inSession, inUser bool) error {
		m.insert(e, inSession, inUser)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("replay journal: %w", err)
	}
	m.logger.Info("memory.restored", "entries", n)
	return n, nil
}

// Close releases the journal, if any.
func (m *Manager) Close() error {
	if m.opts.Journal == nil {
		return nil
	}
	return m.opts.Journal.Close()
}

func toItems(entries []core.MemoryEntry) []core.HistoryItem {
	out := make([]core.HistoryItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Item())
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copyMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
