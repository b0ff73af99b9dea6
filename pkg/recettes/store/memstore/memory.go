package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/cognicore/recettes/pkg/recettes/store"
)

// Store is an in-memory implementation of store.Store for tests and local
// development.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	hub    *store.Hub

	// failWrites makes every mutation return the given error; used to
	// exercise best-effort callers.
	failWrites error
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		values: make(map[string][]byte),
		hub:    store.NewHub(),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// FailWrites makes subsequent writes fail with err; nil restores normal
// behavior.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// Read decodes the value stored at path.
func (s *Store) Read(ctx context.Context, path string, dst any) (bool, error) {
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	s.mu.RLock()
	data, ok := s.values[path]
	s.mu.RUnlock()

	if !ok {
		return false, nil
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

	s.mu.Lock()
	if s.failWrites != nil {
		err := s.failWrites
		s.mu.Unlock()
		return err
	}
	s.values[path] = data
	s.mu.Unlock()

	s.hub.Publish(store.Event{Path: path, Value: copyBytes(data)})
	return nil
}

// Delete removes path and its descendants.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	s.mu.Lock()
	if s.failWrites != nil {
		err := s.failWrites
		s.mu.Unlock()
		return err
	}
	for key := range s.values {
		if store.Covers(path, key) {
			delete(s.values, key)
		}
	}
	s.mu.Unlock()

	s.hub.Publish(store.Event{Path: path, Deleted: true})
	return nil
}

// List returns the direct children of prefix.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := store.ValidatePath(prefix); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte)
	for key, data := range s.values {
		if name, ok := store.ChildName(prefix, key); ok {
			out[name] = copyBytes(data)
		}
	}
	return out, nil
}

// Subscribe registers fn for changes at path or below.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Event)) (func(), error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, path, fn), nil
}

// IncrementFields adds deltas to the integer fields of the object at path
// under the store lock.
func (s *Store) IncrementFields(ctx context.Context, path string, deltas map[string]int64) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	s.mu.Lock()
	if s.failWrites != nil {
		err := s.failWrites
		s.mu.Unlock()
		return err
	}
	data, err := store.AddFields(s.values[path], deltas)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.values[path] = data
	s.mu.Unlock()

	s.hub.Publish(store.Event{Path: path, Value: copyBytes(data)})
	return nil
}

// Keys returns every stored path under prefix, for debugging and tests.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.values {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

func copyBytes(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
