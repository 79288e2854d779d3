// Package badgerstore persists memory entries in BadgerDB. It implements
// memory.Journal so a memory.Manager survives restarts.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/memory"
)

// Key layout:
//
//	e/<unix nanos, 20 digits>/<entry id>  entry JSON
//	ts/<session id>                       session tombstone (unix nanos)
//	tu/<user id>                          user tombstone (unix nanos)
var (
	entryPrefix       = []byte("e/")
	sessionTombPrefix = []byte("ts/")
	userTombPrefix    = []byte("tu/")
)

// Options configures a Journal.
type Options struct {
	// InMemory runs badger without touching disk. Dir is ignored.
	InMemory bool
	// Retention expires entries after the given duration. Zero keeps them
	// until they are cleared.
	Retention time.Duration
	Logger    logging.Logger
}

// Journal is a badger backed memory.Journal.
type Journal struct {
	db     *badger.DB
	opts   Options
	logger logging.Logger
}

var _ memory.Journal = (*Journal)(nil)

// Open opens (or creates) a journal in dir.
func Open(dir string, optFns ...func(o *Options)) (*Journal, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	bopts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory journal: %w", err)
	}
	return &Journal{db: db, opts: opts, logger: logging.OrNoOp(opts.Logger)}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func entryKey(e core.MemoryEntry) []byte {
	return []byte(fmt.Sprintf("e/%020d/%s", e.Timestamp.UnixNano(), e.ID))
}

// Append writes one entry.
func (j *Journal) Append(_ context.Context, e core.MemoryEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", e.ID, err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(entryKey(e), data)
		if j.opts.Retention > 0 {
			entry = entry.WithTTL(j.opts.Retention)
		}
		return txn.SetEntry(entry)
	})
}

// ClearSession records a session tombstone at the given time.
func (j *Journal) ClearSession(_ context.Context, sessionID string, at time.Time) error {
	return j.tombstone(sessionTombPrefix, sessionID, at)
}

// ClearUser records a user tombstone at the given time.
func (j *Journal) ClearUser(_ context.Context, userID string, at time.Time) error {
	return j.tombstone(userTombPrefix, userID, at)
}

func (j *Journal) tombstone(prefix []byte, id string, at time.Time) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(at.UnixNano()))
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(append([]byte{}, prefix...), id...), buf)
	})
}

// Replay walks all live entries oldest first. Entries hidden by both a
// session and a user tombstone are compacted away afterwards.
func (j *Journal) Replay(ctx context.Context, fn func(entry core.MemoryEntry, inSession, inUser bool) error) error {
	var dead [][]byte

	err := j.db.View(func(txn *badger.Txn) error {
		sessions, err := loadTombstones(txn, sessionTombPrefix)
		if err != nil {
			return err
		}
		users, err := loadTombstones(txn, userTombPrefix)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		opts.PrefetchSize = 100
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()

			var e core.MemoryEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				j.logger.Warn("memory.journal.skip_corrupt", "key", string(item.Key()), "error", err.Error())
				continue
			}

			inSession := alive(sessions, e.SessionID, e.Timestamp)
			inUser := e.UserID != "" && alive(users, e.UserID, e.Timestamp)
			if !inSession && !inUser {
				dead = append(dead, item.KeyCopy(nil))
				continue
			}
			if err := fn(e, inSession, inUser); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(dead) == 0 {
		return nil
	}
	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range dead {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("compact journal: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("compact journal: %w", err)
	}
	j.logger.Debug("memory.journal.compacted", "entries", len(dead))
	return nil
}

func loadTombstones(txn *badger.Txn, prefix []byte) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		id := string(item.Key()[len(prefix):])
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("tombstone %s: bad length %d", id, len(val))
			}
			out[id] = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func alive(tombs map[string]time.Time, id string, ts time.Time) bool {
	at, ok := tombs[id]
	return !ok || ts.After(at)
}
