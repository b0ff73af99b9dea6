// Package badgerstore persists the store tree in an embedded BadgerDB and
// uses Badger's native prefix subscriptions for change events.
package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/rs/zerolog"

	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Store implements store.Store on BadgerDB. Keys are the raw paths.
type Store struct {
	db      *badger.DB
	owned   bool
	logger  zerolog.Logger
	markers atomic.Uint64
}

const (
	// maxIncrementAttempts bounds the retries of a conflicting increment.
	maxIncrementAttempts = 100

	// readyPrefix starts the private keys written to confirm that a
	// subscription is attached. Store paths never start with a NUL byte.
	readyPrefix  = "\x00ready/"
	readyTimeout = 5 * time.Second
	readyPoll    = 5 * time.Millisecond
)

// Open opens (or creates) a Badger database in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, owned: true, logger: zerolog.Nop()}, nil
}

// New wraps an already opened database. Close leaves db open.
func New(db *badger.DB) *Store {
	return &Store{db: db, logger: zerolog.Nop()}
}

// WithLogger sets the logger used for subscription failures.
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.logger = l
	return s
}

// Close closes the database if this Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Read decodes the value at path into dst.
func (s *Store) Read(ctx context.Context, path string, dst any) (bool, error) {
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return true, store.Decode(data, dst)
}

// Write replaces the value at path.
func (s *Store) Write(ctx context.Context, path string, v any) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	data, err := store.Encode(v)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(path), data); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	})
}

// Delete removes path and its descendants.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(path)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if store.Covers(path, string(key)) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return wb.Flush()
}

// List returns the direct children of prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := store.ValidatePath(prefix); err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name, ok := store.ChildName(prefix, string(item.Key()))
			if !ok {
				continue
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[name] = data
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return out, nil
}

// Subscribe streams Badger's change feed for path to fn. Deletions arrive
// once per removed key. It returns once the feed is attached, so a write
// made after Subscribe returns is always delivered.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Event)) (func(), error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	marker := []byte(readyPrefix + strconv.FormatUint(s.markers.Add(1), 10))
	match := []pb.Match{{Prefix: []byte(path)}, {Prefix: marker}}

	ready := make(chan struct{})
	var once sync.Once

	go func() {
		err := s.db.Subscribe(subCtx, func(kvs *badger.KVList) error {
			for _, kv := range kvs.Kv {
				if bytes.Equal(kv.Key, marker) {
					once.Do(func() { close(ready) })
					continue
				}
				key := string(kv.Key)
				if !store.Covers(path, key) {
					continue
				}
				if len(kv.Value) == 0 {
					fn(store.Event{Path: key, Deleted: true})
					continue
				}
				fn(store.Event{Path: key, Value: kv.Value})
			}
			return nil
		}, match)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Str("path", path).Msg("badger subscription ended")
		}
	}()

	if err := s.awaitAttached(subCtx, marker, ready); err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	return cancel, nil
}

// awaitAttached writes marker until the subscriber reports seeing it.
// Badger registers subscribers asynchronously, so the first writes may be
// missed.
func (s *Store) awaitAttached(ctx context.Context, marker []byte, ready <-chan struct{}) error {
	defer func() {
		_ = s.db.Update(func(txn *badger.Txn) error { return txn.Delete(marker) })
	}()

	deadline := time.NewTimer(readyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(readyPoll)
	defer tick.Stop()

	for {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(marker, []byte{1})
		}); err != nil {
			return err
		}
		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("badger subscription did not attach")
		case <-tick.C:
		}
	}
}

// IncrementFields adds deltas to the object at path in one serializable
// transaction. Transactions that lose a conflict to a concurrent update
// are retried.
func (s *Store) IncrementFields(ctx context.Context, path string, deltas map[string]int64) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return incrementTxn(txn, path, deltas)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("increment %s: %w", path, err)
}

func incrementTxn(txn *badger.Txn, path string, deltas map[string]int64) error {
	var current []byte
	item, err := txn.Get([]byte(path))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("read %s: %w", path, err)
	default:
		if current, err = item.ValueCopy(nil); err != nil {
			return err
		}
	}

	data, err := store.AddFields(current, deltas)
	if err != nil {
		return err
	}
	return txn.Set([]byte(path), data)
}
