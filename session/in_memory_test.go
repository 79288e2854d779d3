package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/coachmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_FirstWriteWins(t *testing.T) {
	s := NewInMemoryStore()

	a := s.GetOrCreate("s1", "alice")
	b := s.GetOrCreate("s1", "bob")

	assert.Same(t, a, b)
	assert.Equal(t, "alice", b.Owner())
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_GetUnknown(t *testing.T) {
	s := NewInMemoryStore()
	_, ok := s.Get("missing")
	assert.False(t, ok)

	err := s.Commit("missing", func(*core.Session) error { return nil })
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_CommitAppends(t *testing.T) {
	s := NewInMemoryStore()
	s.GetOrCreate("s1", "")

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Commit("s1", func(sess *core.Session) error {
				sess.AppendResponse(core.AgentResponse{AgentID: core.AgentPose, Success: true, Error: fmt.Sprint(i)})
				return nil
			})
		}(i)
	}
	wg.Wait()

	sess, ok := s.Get("s1")
	require.True(t, ok)
	assert.Equal(t, n, sess.HistoryLen())
}

func TestInMemoryStore_CommitPropagatesError(t *testing.T) {
	s := NewInMemoryStore()
	s.GetOrCreate("s1", "")
	boom := fmt.Errorf("boom")
	assert.ErrorIs(t, s.Commit("s1", func(*core.Session) error { return boom }), boom)
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore()
	s.GetOrCreate("s1", "u1")
	s.Delete("s1")
	s.Delete("s1")

	_, ok := s.Get("s1")
	assert.False(t, ok)

	fresh := s.GetOrCreate("s1", "u2")
	assert.Equal(t, "u2", fresh.Owner(), "deleted sessions behave as never seen")
	assert.Zero(t, fresh.HistoryLen())
}

func TestInMemoryStore_Sweep(t *testing.T) {
	var evicted []string
	s := NewInMemoryStore(func(o *Options) {
		o.IdleTimeout = time.Minute
		o.OnEvict = func(id string) { evicted = append(evicted, id) }
	})
	s.GetOrCreate("old", "")
	s.GetOrCreate("new", "")

	now := time.Now()
	assert.Zero(t, s.Sweep(now), "nothing is idle yet")

	n := s.Sweep(now.Add(2 * time.Minute))
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"old", "new"}, evicted)
	assert.Zero(t, s.Len())
}

func TestInMemoryStore_SweepDisabled(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.IdleTimeout = 0 })
	s.GetOrCreate("s1", "")
	assert.Zero(t, s.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_SweepSkipsCommitting(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.IdleTimeout = time.Minute })
	s.GetOrCreate("busy", "")

	inCommit := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Commit("busy", func(*core.Session) error {
			close(inCommit)
			<-release
			return nil
		})
	}()
	<-inCommit

	assert.Zero(t, s.Sweep(time.Now().Add(time.Hour)))
	close(release)
	<-done
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryStore_RunStopsOnCancel(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.IdleTimeout = time.Nanosecond })
	s.GetOrCreate("s1", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
