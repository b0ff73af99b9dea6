package store

import (
	"context"
)

// Store is the key-value tree every persistent piece of the app lives in.
// Paths are slash-separated ("users/u1/preferences"); values are JSON.
type Store interface {
	Close() error

	// Read decodes the value at path into dst. It reports false when
	// nothing is stored there.
	Read(ctx context.Context, path string, dst any) (bool, error)

	// Write replaces the whole value at path.
	Write(ctx context.Context, path string, v any) error

	// Delete removes the value at path and everything below it.
	Delete(ctx context.Context, path string) error

	// List returns the raw values of the direct children of prefix, keyed
	// by child name.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// Subscribe calls fn for every change at path or below it until the
	// returned cancel func is called or ctx is done.
	Subscribe(ctx context.Context, path string, fn func(Event)) (func(), error)
}

// Incrementer is implemented by stores that can add to integer fields of a
// JSON object atomically, without a client-side read-modify-write.
type Incrementer interface {
	IncrementFields(ctx context.Context, path string, deltas map[string]int64) error
}

// Event describes a change pushed to subscribers
type Event struct {
	Path    string
	Value   []byte // raw JSON; nil when Deleted
	Deleted bool
}

// Recipe is a published recipe as stored under recettes/{id}
type Recipe struct {
	ID           string `json:"-"`
	Nom          string `json:"nom"`
	Ingredients  string `json:"ingredients"`
	Instructions string `json:"instructions,omitempty"`
	Image        string `json:"image,omitempty"`
	AuthorID     string `json:"authorId,omitempty"`
	AuthorName   string `json:"authorName,omitempty"`
	CreatedAt    int64  `json:"createdAt,omitempty"` // unix millis
}
