// Package queue implements the durable offline session queue on top of an
// embedded Badger store. A record exists in the queue iff the server has not
// yet acknowledged it; puts and deletes are atomic per record.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
)

// Key prefix for queued session records.
const recordKeyPrefix = "session:"

// ErrStorageUnavailable reports that the underlying store could not be opened
// or written. Callers must not drop the session silently; it is surfaced so
// the submission can be retried.
var ErrStorageUnavailable = errors.New("offline queue storage unavailable")

// Entry is one queued record together with its store key.
type Entry struct {
	Key     string
	Session models.QueuedSession
}

// Queue is a durable key-value queue of sessions awaiting delivery.
type Queue struct {
	db  *badger.DB
	log *zap.Logger
}

// Open opens (creating if absent) the Badger store at path. Opening is
// idempotent and safe to run again after a crash.
func Open(path string, log *zap.Logger) (*Queue, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger db: %v", ErrStorageUnavailable, err)
	}
	return &Queue{db: db, log: log}, nil
}

// Close releases the underlying store.
func (q *Queue) Close() error {
	return q.db.Close()
}

// NewKey returns a locally unique key that sorts in creation order, so a
// drain processes records oldest first.
func NewKey(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString())
}

// Put stores a queued session under key. The write is all-or-nothing; a
// concurrent reader never observes a half-written record.
func (q *Queue) Put(key string, session models.QueuedSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal queued session: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

// Delete removes the record under key. Deleting an absent key is not an error.
func (q *Queue) Delete(key string) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(recordKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStorageUnavailable, key, err)
	}
	return nil
}

// Entries returns a consistent snapshot of all queued records in key order.
// An empty queue yields an empty slice.
func (q *Queue) Entries() ([]Entry, error) {
	entries := []Entry{}

	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())[len(recordKeyPrefix):]

			var session models.QueuedSession
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			entries = append(entries, Entry{Key: key, Session: session})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	return entries, nil
}

// StartGC runs Badger value-log garbage collection on an interval until ctx
// is cancelled. Queued photos can be large, so reclaiming space after drains
// matters on small devices.
func (q *Queue) StartGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					if err := q.db.RunValueLogGC(0.5); err != nil {
						break
					}
					q.log.Info("queue value log compacted")
				}
			}
		}
	}()
}
